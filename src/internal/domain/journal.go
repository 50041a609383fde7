package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineDirection string

const (
	LineDebit  LineDirection = "DEBIT"
	LineCredit LineDirection = "CREDIT"
)

type EntryStatus string

const (
	EntryStatusPosted  EntryStatus = "POSTED"
	EntryStatusPending EntryStatus = "PENDING"
)

const (
	EntrySourceAnchor       = "ANCHOR"
	EntrySourceIntercompany = "INTERCOMPANY"
)

type JournalEntry struct {
	ID          string
	JournalID   string
	Date        time.Time
	Description string
	Source      string
	Status      EntryStatus
	ExternalRef *string
	Mirrored    bool
	MirroredAt  *time.Time
	CreatedAt   time.Time
}

type JournalLine struct {
	ID             string
	JournalEntryID string
	AccountID      int64
	Direction      LineDirection
	Amount         decimal.Decimal
	LineNumber     int
}

// LineTotals returns the debit and credit sums for a candidate set of lines.
func LineTotals(lines []JournalLine) (decimal.Decimal, decimal.Decimal) {
	debits := decimal.Zero
	credits := decimal.Zero

	for _, line := range lines {
		if line.Direction == LineDebit {
			debits = debits.Add(line.Amount)
			continue
		}
		credits = credits.Add(line.Amount)
	}

	return debits, credits
}
