package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
	"github.com/stretchr/testify/require"
)

func postTestTransfers(t *testing.T, f *fixture, count int) []domain.JournalEntry {
	t.Helper()

	entries := make([]domain.JournalEntry, 0, count)
	for i := 0; i < count; i++ {
		entry, err := f.ledger.PostTransfer(context.Background(), fmt.Sprintf("transfer %d", i), domain.EntrySourceAnchor, nil,
			[]service_interfaces.Movement{
				{AccountID: f.userAccount.ID, Direction: domain.LineDebit, Amount: decimal.RequireFromString("1.00")},
				{AccountID: f.anchorAccount.ID, Direction: domain.LineCredit, Amount: decimal.RequireFromString("1.00")},
			})
		require.NoError(t, err)
		entries = append(entries, entry)
	}
	return entries
}

func TestDispatch_PublishesInCommitOrderAndMarks(t *testing.T) {
	f := newFixture(t)
	entries := postTestTransfers(t, f, 3)
	publisher := &capturingMirrorPublisher{}
	service := NewMirrorService(f.store, publisher, time.Second)

	require.NoError(t, service.Dispatch(context.Background()))

	require.Equal(t, 3, publisher.count())
	for i, record := range publisher.records {
		require.Equal(t, entries[i].ID, record.Entry.ID)
		require.Len(t, record.Lines, 2)
	}

	remaining, err := f.store.ListUnmirroredEntries(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, remaining)
	require.Equal(t, int64(0), service.Lag())
}

func TestDispatch_StopsAtFirstFailurePreservingOrder(t *testing.T) {
	f := newFixture(t)
	entries := postTestTransfers(t, f, 3)
	publisher := &capturingMirrorPublisher{failAt: 2}
	service := NewMirrorService(f.store, publisher, time.Second)

	require.Error(t, service.Dispatch(context.Background()))

	// Only the first entry got through and got marked.
	require.Equal(t, 1, publisher.count())
	remaining, err := f.store.ListUnmirroredEntries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	require.Equal(t, entries[1].ID, remaining[0].ID)
	require.Equal(t, int64(2), service.Lag())

	// The next pass resumes from where the failure happened.
	publisher.failAt = 0
	require.NoError(t, service.Dispatch(context.Background()))
	require.Equal(t, 3, publisher.count())
	require.Equal(t, entries[1].ID, publisher.records[1].Entry.ID)
	require.Equal(t, entries[2].ID, publisher.records[2].Entry.ID)
	require.Equal(t, int64(0), service.Lag())
}

func TestDispatch_IsANoOpWhenEverythingIsMirrored(t *testing.T) {
	f := newFixture(t)
	publisher := &capturingMirrorPublisher{}
	service := NewMirrorService(f.store, publisher, time.Second)

	require.NoError(t, service.Dispatch(context.Background()))
	require.Equal(t, 0, publisher.count())
	require.Equal(t, int64(0), service.Lag())
}
