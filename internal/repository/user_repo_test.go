package repository

import (
	"context"
	"testing"

	"tipwall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	xid := "12345"
	u := &models.User{TwitterID: &xid, TwitterHandle: "Alice_Builds"}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByHandle(ctx, "@alice_builds")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = repo.GetByTwitterID(ctx, xid)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.GetByHandle(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	got.WalletAddress = "Wallet111"
	require.NoError(t, repo.Update(ctx, got))
	again, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wallet111", again.WalletAddress)
	assert.True(t, again.CanReceivePayouts())
}
