package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tipwall/internal/database"
	"tipwall/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.NewSQLite(dsn)
	require.NoError(t, err)
	return db
}

func seedCreator(t *testing.T, db *gorm.DB, handle string) *models.User {
	t.Helper()
	u := &models.User{TwitterHandle: handle, DisplayName: handle, WalletAddress: "Creator1111111111111111111111111111111111111"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func seedTip(t *testing.T, db *gorm.DB, creatorID uint, status string, expiresAt time.Time) *models.Tip {
	t.Helper()
	tip := &models.Tip{
		CreatorID:       creatorID,
		TipperWallet:    "Tipper11111111111111111111111111111111111111",
		AmountLamports:  20_000_000,
		FeeBps:          700,
		ReferencePubkey: uuid.NewString(),
		QuestionText:    "what is up?",
		Status:          status,
		ExpiresAt:       expiresAt,
	}
	require.NoError(t, NewTipRepository(db).Create(context.Background(), tip))
	return tip
}
