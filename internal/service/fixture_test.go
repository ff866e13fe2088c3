package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"tipwall/config"
	"tipwall/internal/database"
	"tipwall/internal/dedupe"
	"tipwall/internal/metrics"
	"tipwall/internal/models"
	"tipwall/internal/repository"
	"tipwall/internal/ws"
	"tipwall/pkg/solana"
	"tipwall/pkg/solana/solanatest"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	db         *gorm.DB
	clock      *clock
	wallet     *solanatest.Wallet
	feeAddr    string
	tips       *repository.TipRepository
	users      *repository.UserRepository
	answers    *repository.AnswerRepository
	transfers  *repository.TransferRepository
	notifs     *repository.NotificationRepository
	hub        *ws.Hub
	metrics    *metrics.Metrics
	logHook    *test.Hook
	notifier   *NotificationService
	tipSvc     *TipService
	settlement *SettlementService
	watcher    *WatcherService
	sweep      *SweepService
}

func newAddress(t *testing.T) string {
	t.Helper()
	a, err := solana.NewReference()
	require.NoError(t, err)
	return a
}

type fixtureOpts struct {
	expireUnfunded bool
	dedupe         dedupe.Store
}

func newFixture(t *testing.T, opts ...fixtureOpts) *fixture {
	t.Helper()
	var o fixtureOpts
	if len(opts) > 0 {
		o = opts[0]
	}
	db, err := database.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		clock:     &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		wallet:    solanatest.NewWallet(newAddress(t)),
		feeAddr:   newAddress(t),
		tips:      repository.NewTipRepository(db),
		users:     repository.NewUserRepository(db),
		answers:   repository.NewAnswerRepository(db),
		transfers: repository.NewTransferRepository(db),
		notifs:    repository.NewNotificationRepository(db),
		hub:       ws.NewHub(),
		metrics:   metrics.New(),
		logHook:   hook,
	}
	f.notifier = NewNotificationService(f.notifs, f.users, nil, f.hub, log)
	f.tipSvc = NewTipService(f.tips, f.answers, f.users, f.wallet.Address(), 48*time.Hour, log)
	f.tipSvc.now = f.clock.Now
	f.settlement = NewSettlementService(db, f.wallet, SettlementOptions{
		FeeAddress:    f.feeAddr,
		ResubmitAfter: 2 * time.Minute,
		Notifier:      f.notifier,
		Metrics:       f.metrics,
		Logger:        log,
		Now:           f.clock.Now,
	})
	f.watcher = NewWatcherService(f.tips, f.wallet.Address(), o.dedupe, f.notifier, f.metrics, log)
	f.watcher.now = f.clock.Now
	f.sweep = NewSweepService(f.tips, f.settlement, SweepOptions{
		BatchSize:      50,
		ExpireUnfunded: o.expireUnfunded,
		Metrics:        f.metrics,
		Logger:         log,
		Now:            f.clock.Now,
	})
	return f
}

func (f *fixture) creator(handle string, pro bool) *models.User {
	f.t.Helper()
	u := &models.User{TwitterHandle: handle, DisplayName: handle, WalletAddress: newAddress(f.t), ProCreator: pro}
	require.NoError(f.t, f.users.Create(f.ctx, u))
	return u
}

// tipIn inserts a tip directly in the given status.
func (f *fixture) tipIn(creator *models.User, status string, lamports uint64, expiresIn time.Duration) *models.Tip {
	f.t.Helper()
	tip := &models.Tip{
		CreatorID:       creator.ID,
		TipperWallet:    newAddress(f.t),
		AmountLamports:  lamports,
		FeeBps:          700,
		ReferencePubkey: newAddress(f.t),
		QuestionText:    "how do you ship so fast?",
		Status:          status,
		ExpiresAt:       f.clock.Now().Add(expiresIn),
	}
	require.NoError(f.t, f.tips.Create(f.ctx, tip))
	return tip
}

func (f *fixture) reload(id string) *models.Tip {
	f.t.Helper()
	tip, err := f.tips.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return tip
}

func (f *fixture) transfer(tipID, kind string) models.Transfer {
	f.t.Helper()
	list, err := f.transfers.ListByTip(f.ctx, tipID)
	require.NoError(f.t, err)
	for _, tr := range list {
		if tr.Kind == kind {
			return tr
		}
	}
	f.t.Fatalf("no %s transfer for tip %s", kind, tipID)
	return models.Transfer{}
}

func paymentEvent(sig, vault, ref string, lamports uint64) solana.EnhancedTransaction {
	payer := "Payer" + sig
	return solana.EnhancedTransaction{
		Signature: sig,
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: payer, ToUserAccount: vault, Amount: lamports},
		},
		AccountData: []solana.AccountData{{Account: payer}, {Account: vault}},
		Instructions: []solana.Instruction{{
			ProgramID: "11111111111111111111111111111111",
			Accounts:  []string{payer, vault, ref},
		}},
	}
}

type fakeUploader struct {
	url string
	err error
}

func (u *fakeUploader) UploadAvatar(_ context.Context, _ io.Reader, _ uint) (string, error) {
	return u.url, u.err
}

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: "s", AccessExpiry: time.Hour, Issuer: "tipwall"}}
}
