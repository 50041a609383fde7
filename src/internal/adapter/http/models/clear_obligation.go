package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const maxIntentIDLength = 128

type ClearObligationRequest struct {
	IntentID   string          `json:"intentId"`
	UserID     string          `json:"userId"`
	AnchorType string          `json:"anchorType"`
	Units      int64           `json:"units"`
	Amount     decimal.Decimal `json:"amount"`
}

func (r ClearObligationRequest) Validate() error {
	var errs []string

	intentID := strings.TrimSpace(r.IntentID)
	if intentID == "" {
		errs = append(errs, "intentId is required")
	}
	if len(intentID) > maxIntentIDLength {
		errs = append(errs, "intentId must be at most 128 characters")
	}
	if strings.ContainsAny(intentID, " \t\n") {
		errs = append(errs, "intentId must not contain whitespace")
	}
	if strings.TrimSpace(r.UserID) == "" {
		errs = append(errs, "userId is required")
	}
	if !isAnchorType(strings.TrimSpace(r.AnchorType)) {
		errs = append(errs, "anchorType must be 2-32 uppercase letters")
	}
	if r.Units <= 0 {
		errs = append(errs, "units must be greater than zero")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		errs = append(errs, "amount must be greater than zero")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type ClearObligationResponse struct {
	IntentID        string `json:"intentId"`
	AuthorizationID string `json:"authorizationId"`
	Status          string `json:"status"`
	Proof           string `json:"proof,omitempty"`
	Message         string `json:"message,omitempty"`
}

type AnchorObligationResponse struct {
	AnchorType      string `json:"anchorType"`
	TotalAuthorized string `json:"totalAuthorized"`
	TotalFulfilled  string `json:"totalFulfilled"`
	TotalExpired    string `json:"totalExpired"`
	Halted          bool   `json:"halted"`
}

func isAnchorType(value string) bool {
	if len(value) < 2 || len(value) > 32 {
		return false
	}
	for _, c := range value {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
