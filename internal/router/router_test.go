package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tipwall/config"
	"tipwall/internal/auth"
	"tipwall/internal/database"
	"tipwall/internal/metrics"
	"tipwall/internal/models"
	"tipwall/internal/repository"
	"tipwall/pkg/solana"
	"tipwall/pkg/solana/solanatest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type env struct {
	t      *testing.T
	cfg    *config.Config
	db     *gorm.DB
	wallet *solanatest.Wallet
	app    *Router
}

func newAddress(t *testing.T) string {
	t.Helper()
	a, err := solana.NewReference()
	require.NoError(t, err)
	return a
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cfg := &config.Config{
		Server:  config.ServerConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}, RateLimit: 1000, RateWindow: time.Minute},
		JWT:     config.JWTConfig{Secret: "s", AccessExpiry: time.Hour, Issuer: "tipwall"},
		Solana:  config.SolanaConfig{ResubmitAfter: 2 * time.Minute},
		Webhook: config.WebhookConfig{HeliusSecret: "helius", MaxEvents: 2},
		Cron:    config.CronConfig{Secret: "cron", BatchSize: 50},
		Tips:    config.TipConfig{AnswerTimeout: 48 * time.Hour},
	}
	log, _ := test.NewNullLogger()
	wallet := solanatest.NewWallet(newAddress(t))
	app := Setup(cfg, db, Deps{Wallet: wallet, Metrics: metrics.New(), Logger: log})
	return &env{t: t, cfg: cfg, db: db, wallet: wallet, app: app}
}

func (e *env) user(handle string) (*models.User, string) {
	e.t.Helper()
	u := &models.User{TwitterHandle: handle, DisplayName: handle, WalletAddress: newAddress(e.t)}
	require.NoError(e.t, repository.NewUserRepository(e.db).Create(e.t.Context(), u))
	tok, err := auth.GenerateAccessToken(&e.cfg.JWT, u.ID, handle)
	require.NoError(e.t, err)
	return u, tok
}

func (e *env) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.app.Engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func payment(sig, vault, ref string, lamports uint64) solana.EnhancedTransaction {
	payer := "Payer" + sig
	return solana.EnhancedTransaction{
		Signature:       sig,
		NativeTransfers: []solana.NativeTransfer{{FromUserAccount: payer, ToUserAccount: vault, Amount: lamports}},
		AccountData:     []solana.AccountData{{Account: payer}, {Account: vault}, {Account: ref}},
	}
}

func TestTipLifecycle(t *testing.T) {
	e := newEnv(t)
	alice, aliceTok := e.user("alice")
	_, bobTok := e.user("bob")
	payer := newAddress(t)

	w := e.do(http.MethodPost, "/api/v1/tips", "", map[string]any{
		"creator":      "@Alice",
		"tipSol":       0.02,
		"questionText": "what should I build next?",
		"tipperWallet": payer,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	tipID := created["tipId"].(string)
	ref := created["reference"].(string)
	assert.EqualValues(t, 700, created["feeBps"])
	assert.True(t, strings.HasPrefix(created["solanaPayUrl"].(string), "solana:"+e.wallet.Address()))

	w = e.do(http.MethodPost, "/api/v1/webhooks/helius", "", []solana.EnhancedTransaction{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/v1/webhooks/helius", "", []solana.EnhancedTransaction{
		payment("fund-1", e.wallet.Address(), ref, 20_000_000),
	}, "x-helius-secret", "helius")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	hook := decode(t, w)
	assert.Equal(t, true, hook["ok"])
	assert.EqualValues(t, 1, hook["processed"])
	assert.EqualValues(t, 0, hook["failed"])

	w = e.do(http.MethodGet, "/api/v1/tips/"+tipID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "funded", decode(t, w)["tip"].(map[string]any)["status"])

	w = e.do(http.MethodPost, "/api/v1/tips/"+tipID+"/answer", "", map[string]string{"content": "ship it"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/api/v1/tips/"+tipID+"/answer", bobTok, map[string]string{"content": "ship it"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/v1/tips/"+tipID+"/answer", aliceTok, map[string]string{"content": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "content")

	w = e.do(http.MethodPost, "/api/v1/tips/"+tipID+"/answer", aliceTok, map[string]string{"content": "ship it"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	answered := decode(t, w)
	assert.Equal(t, true, answered["ok"])
	assert.NotEmpty(t, answered["releaseSig"])
	assert.Equal(t, uint64(18_600_000), e.wallet.SentTo(alice.WalletAddress))

	w = e.do(http.MethodPost, "/api/v1/tips/"+tipID+"/answer", aliceTok, map[string]string{"content": "again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Not funded", decode(t, w)["error"])

	w = e.do(http.MethodGet, "/api/v1/tips/"+tipID, "", nil)
	tip := decode(t, w)["tip"].(map[string]any)
	assert.Equal(t, "released", tip["status"])
	assert.Equal(t, "ship it", tip["answer"].(map[string]any)["answer_text"])

	w = e.do(http.MethodGet, "/api/v1/me/tips?status=answered", aliceTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["tips"], 1)
}

func TestCreateTipErrors(t *testing.T) {
	e := newEnv(t)
	e.user("alice")

	w := e.do(http.MethodPost, "/api/v1/tips", "", map[string]any{"creator": "alice", "tipSol": 0.02, "questionText": "q", "tipperWallet": newAddress(t)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "questionText")

	w = e.do(http.MethodPost, "/api/v1/tips", "", map[string]any{"creator": "nobody", "tipSol": 0.02, "questionText": "hello?", "tipperWallet": newAddress(t)})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/v1/tips", "", map[string]any{"creator": "alice", "tipSol": 0.02, "questionText": "hello?", "tipperWallet": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid wallet address", decode(t, w)["error"])

	w = e.do(http.MethodPost, "/api/v1/tips", "", map[string]any{"creator": "alice", "tipSol": 0, "questionText": "hello?", "tipperWallet": newAddress(t)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/v1/tips/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeclineRefunds(t *testing.T) {
	e := newEnv(t)
	alice, aliceTok := e.user("alice")
	payer := newAddress(t)

	w := e.do(http.MethodPost, "/api/v1/tips", "", map[string]any{"creator": "alice", "tipSol": "0.1", "questionText": "hello?", "tipperWallet": payer})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	e.do(http.MethodPost, "/api/v1/webhooks/helius", "", []solana.EnhancedTransaction{
		payment("fund-1", e.wallet.Address(), created["reference"].(string), 100_000_000),
	}, "x-helius-secret", "helius")

	w = e.do(http.MethodPost, "/api/v1/tips/"+created["tipId"].(string)+"/decline", aliceTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["refundSig"])
	assert.Equal(t, uint64(100_000_000), e.wallet.SentTo(payer))
	assert.Zero(t, e.wallet.SentTo(alice.WalletAddress))
}

func TestWebhookBatchLimit(t *testing.T) {
	e := newEnv(t)
	batch := []solana.EnhancedTransaction{{Signature: "a"}, {Signature: "b"}, {Signature: "c"}}
	w := e.do(http.MethodPost, "/api/v1/webhooks/helius", "", batch, "x-helius-secret", "helius")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/helius", strings.NewReader("{not json"))
	req.Header.Set("x-helius-secret", "helius")
	rec := httptest.NewRecorder()
	e.app.Engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCronEndpoint(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/v1/cron/refund-expired", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/v1/cron/refund-expired", "", nil, "x-cron-secret", "cron")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["ok"])
	assert.EqualValues(t, 0, out["refunded"])
	assert.Empty(t, out["failed"])
}

func TestCreatorEndpoints(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user("alice")

	w := e.do(http.MethodGet, "/api/v1/creators/alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["creator"].(map[string]any)["accepting_tips"])
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/v1/creators/ghost", "", nil).Code)

	w = e.do(http.MethodPost, "/api/v1/me/wallet", tok, map[string]string{"address": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	addr := newAddress(t)
	w = e.do(http.MethodPost, "/api/v1/me/wallet", tok, map[string]string{"address": addr})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, addr, decode(t, w)["wallet_address"])

	w = e.do(http.MethodPut, "/api/v1/me/profile", tok, map[string]any{"telegram_handle": "no!"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "telegram_handle")

	w = e.do(http.MethodPut, "/api/v1/me/profile", tok, map[string]any{"bio": "hi", "telegram_handle": "@alice_tg", "price_sol": "0.05"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "alice_tg", user["telegram_handle"])
	assert.EqualValues(t, 50_000_000, user["price_lamports"])

	w = e.do(http.MethodPost, "/api/v1/me/fcm-token", tok, map[string]string{"token": "device"})
	assert.Equal(t, http.StatusOK, w.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.app.Engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	w = e.do(http.MethodGet, "/api/v1/leaderboard", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/v1/me/notifications", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", "", nil).Code)

	w := e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tipwall_http_requests_total")

	w = e.do(http.MethodGet, "/ws/tips", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
