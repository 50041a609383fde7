package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountClass string

const (
	AccountClassAsset     AccountClass = "ASSET"
	AccountClassLiability AccountClass = "LIABILITY"
	AccountClassEquity    AccountClass = "EQUITY"
	AccountClassIncome    AccountClass = "INCOME"
	AccountClassExpense   AccountClass = "EXPENSE"
)

type Account struct {
	ID        int64
	Name      string
	Class     AccountClass
	Entity    string
	IsActive  bool
	CreatedAt time.Time
}

type AccountBalance struct {
	AccountID int64
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// BalanceDelta is the signed effect of one journal line on the account's
// balance, following the account class convention: debits increase asset and
// expense accounts, credits increase liability, equity and income accounts.
func BalanceDelta(class AccountClass, direction LineDirection, amount decimal.Decimal) decimal.Decimal {
	switch class {
	case AccountClassAsset, AccountClassExpense:
		if direction == LineDebit {
			return amount
		}
		return amount.Neg()
	default:
		if direction == LineCredit {
			return amount
		}
		return amount.Neg()
	}
}
