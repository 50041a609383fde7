package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// translateError maps driver-level constraint failures onto domain sentinels
// so services never import pq directly.
func translateError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateKey)
		case pqCheckViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrInternalConsistency)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
