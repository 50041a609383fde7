package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/mirror"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
)

const (
	mirrorBatchSize  = 50
	mirrorMaxBackoff = 5 * time.Minute
)

// MirrorService replays committed journal entries to the external mirror in
// commit order. The mirror is strictly behind the ledger; a mirror outage
// never blocks clearing, it only grows the lag.
type MirrorService struct {
	ledgerRepo repo_interfaces.LedgerRepository
	publisher  service_interfaces.MirrorPublisher
	interval   time.Duration
	nudge      chan struct{}
	lag        atomic.Int64
}

func NewMirrorService(ledgerRepo repo_interfaces.LedgerRepository, publisher service_interfaces.MirrorPublisher, interval time.Duration) *MirrorService {
	return &MirrorService{
		ledgerRepo: ledgerRepo,
		publisher:  publisher,
		interval:   interval,
		nudge:      make(chan struct{}, 1),
	}
}

// Nudge asks for a dispatch pass ahead of the next tick. Safe to call from
// any goroutine; a pending nudge is not queued twice.
func (s *MirrorService) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Lag reports how many committed entries the mirror has not yet received.
func (s *MirrorService) Lag() int64 {
	return s.lag.Load()
}

// Run dispatches until the context is cancelled, backing off exponentially
// while the mirror stays unreachable.
func (s *MirrorService) Run(ctx context.Context) {
	backoff := s.interval

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.nudge:
		case <-time.After(backoff):
		}

		if err := s.Dispatch(ctx); err != nil {
			logger.Error("mirror dispatch failed", err, logger.Fields{
				"backoff": backoff.String(),
				"lag":     s.Lag(),
			})
			backoff *= 2
			if backoff > mirrorMaxBackoff {
				backoff = mirrorMaxBackoff
			}
			continue
		}
		backoff = s.interval
	}
}

// Dispatch publishes one batch of unmirrored entries and marks each one
// mirrored only after the publish succeeded. Entries are published oldest
// first; the pass stops at the first failure so order is preserved.
func (s *MirrorService) Dispatch(ctx context.Context) error {
	entries, err := s.ledgerRepo.ListUnmirroredEntries(ctx, mirrorBatchSize)
	if err != nil {
		return err
	}
	s.lag.Store(int64(len(entries)))

	for _, entry := range entries {
		lines, err := s.ledgerRepo.GetEntryLines(ctx, entry.ID)
		if err != nil {
			return err
		}

		if err := s.publisher.Publish(ctx, mirror.Record{Entry: entry, Lines: lines}); err != nil {
			return err
		}

		if err := s.ledgerRepo.MarkMirrored(ctx, entry.ID); err != nil {
			return err
		}
		s.lag.Add(-1)
	}

	return nil
}
