package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"tipwall/config"
	"tipwall/internal/auth"
	"tipwall/internal/database"
	"tipwall/internal/repository"
	"tipwall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func init() { gin.SetMode(gin.TestMode) }

func newXOAuth(t *testing.T, provider *httptest.Server) (*XOAuthHandler, *gin.Engine) {
	t.Helper()
	db, err := database.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	cfg := &config.Config{
		JWT:   config.JWTConfig{Secret: "s", AccessExpiry: time.Hour, Issuer: "tipwall"},
		OAuth: config.OAuthConfig{XClientID: "client", XClientSecret: "secret", XRedirectURL: "http://localhost/cb"},
	}
	log, _ := test.NewNullLogger()
	h := NewXOAuthHandler(cfg, service.NewAuthService(cfg, repository.NewUserRepository(db)), log)
	if provider != nil {
		h.endpoint = oauth2.Endpoint{AuthURL: provider.URL + "/authorize", TokenURL: provider.URL + "/token", AuthStyle: oauth2.AuthStyleInHeader}
		h.userInfoURL = provider.URL + "/users/me"
	}
	r := gin.New()
	r.GET("/auth/x", h.Redirect)
	r.GET("/auth/x/callback", h.Callback)
	return h, r
}

func TestXRedirectUsesPKCE(t *testing.T) {
	_, r := newXOAuth(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/x", nil))
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "twitter.com", loc.Host)
	assert.Equal(t, "S256", loc.Query().Get("code_challenge_method"))
	assert.NotEmpty(t, loc.Query().Get("code_challenge"))

	cookies := map[string]string{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c.Value
	}
	assert.Equal(t, loc.Query().Get("state"), cookies[stateCookie])
	assert.NotEmpty(t, cookies[verifierCookie])
}

func TestXCallbackRejectsBadState(t *testing.T) {
	_, r := newXOAuth(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/auth/x/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "real"})
	req.AddCookie(&http.Cookie{Name: verifierCookie, Value: "v"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestXCallbackSignsIn(t *testing.T) {
	var gotVerifier string
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotVerifier = r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"99","username":"alice","name":"Alice","profile_image_url":"https://pbs.twimg.com/a.jpg"}}`))
	})
	provider := httptest.NewServer(mux)
	defer provider.Close()

	h, r := newXOAuth(t, provider)
	req := httptest.NewRequest(http.MethodGet, "/auth/x/callback?code=abc&state=st", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "st"})
	req.AddCookie(&http.Cookie{Name: verifierCookie, Value: "the-verifier"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "the-verifier", gotVerifier)

	var out struct {
		AccessToken string `json:"access_token"`
		IsNew       bool   `json:"is_new"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.IsNew)
	claims, err := auth.ParseAccessToken(&h.cfg.JWT, out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Handle)
}

func TestXOAuthNotConfigured(t *testing.T) {
	h, r := newXOAuth(t, nil)
	h.cfg.OAuth.XClientID = ""
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
