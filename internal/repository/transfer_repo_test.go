package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"tipwall/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureTransferIsKeyedByTipAndKind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransferRepository(db)
	ctx := context.Background()

	first, err := repo.Ensure(ctx, "tip-1", domain.TransferKindPayout, "dest-a", 100)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, first.Status)

	again, err := repo.Ensure(ctx, "tip-1", domain.TransferKindPayout, "dest-b", 999)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "dest-a", again.Destination)
	assert.Equal(t, uint64(100), again.Lamports)

	fee, err := repo.Ensure(ctx, "tip-1", domain.TransferKindFee, "vault", 7)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fee.ID)

	list, err := repo.ListByTip(ctx, "tip-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestTransferLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransferRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	tr, err := repo.Ensure(ctx, "tip-2", domain.TransferKindRefund, "payer", 500)
	require.NoError(t, err)

	require.NoError(t, repo.MarkSubmitted(ctx, tr, "sig-1", now))
	require.NoError(t, repo.MarkFailed(ctx, tr, errors.New("blockhash expired")))
	require.NoError(t, repo.MarkSubmitted(ctx, tr, "sig-2", now))
	require.NoError(t, repo.MarkConfirmed(ctx, tr, now))

	list, err := repo.ListByTip(ctx, "tip-2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, domain.TransferStatusConfirmed, got.Status)
	assert.Equal(t, "sig-2", got.Signature)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.LastError)
	assert.NotNil(t, got.ConfirmedAt)
}

func TestMarkSubmittedSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransferRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	a, err := repo.Ensure(ctx, "tip-3", domain.TransferKindPayout, "creator", 100)
	require.NoError(t, err)
	b, err := repo.Ensure(ctx, "tip-3", domain.TransferKindPayout, "creator", 100)
	require.NoError(t, err)

	require.NoError(t, repo.MarkSubmitted(ctx, a, "sig-a", now))
	assert.ErrorIs(t, repo.MarkSubmitted(ctx, b, "sig-b", now), ErrTransferBusy)

	list, err := repo.ListByTip(ctx, "tip-3")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sig-a", list[0].Signature)
	assert.Equal(t, 1, list[0].Attempts)
}

func TestMarkFailedKeepsNewerSubmission(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransferRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	a, err := repo.Ensure(ctx, "tip-4", domain.TransferKindPayout, "creator", 100)
	require.NoError(t, err)
	require.NoError(t, repo.MarkSubmitted(ctx, a, "sig-1", now))

	// b is a copy taken while sig-1 was live.
	list, err := repo.ListByTip(ctx, "tip-4")
	require.NoError(t, err)
	b := list[0]

	require.NoError(t, repo.MarkFailed(ctx, a, errors.New("signature not found")))
	require.NoError(t, repo.MarkSubmitted(ctx, a, "sig-2", now))

	assert.ErrorIs(t, repo.MarkFailed(ctx, &b, errors.New("signature not found")), ErrTransferBusy)
	assert.Equal(t, domain.TransferStatusSubmitted, b.Status)

	list, err = repo.ListByTip(ctx, "tip-4")
	require.NoError(t, err)
	got := list[0]
	assert.Equal(t, domain.TransferStatusSubmitted, got.Status)
	assert.Equal(t, "sig-2", got.Signature)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.LastError)
}
