package handler

import (
	"encoding/json"
	"net/http"

	"tipwall/config"
	"tipwall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	xUserInfoURL   = "https://api.twitter.com/2/users/me?user.fields=profile_image_url"
	stateCookie    = "x_oauth_state"
	verifierCookie = "x_oauth_verifier"
	cookieMaxAge   = 600
)

var xEndpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// XOAuthHandler signs creators in with X using OAuth 2.0 with PKCE.
type XOAuthHandler struct {
	cfg         *config.Config
	authSvc     *service.AuthService
	log         logrus.FieldLogger
	endpoint    oauth2.Endpoint
	userInfoURL string
}

func NewXOAuthHandler(cfg *config.Config, authSvc *service.AuthService, log logrus.FieldLogger) *XOAuthHandler {
	return &XOAuthHandler{cfg: cfg, authSvc: authSvc, log: log, endpoint: xEndpoint, userInfoURL: xUserInfoURL}
}

func (h *XOAuthHandler) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.OAuth.XClientID,
		ClientSecret: h.cfg.OAuth.XClientSecret,
		RedirectURL:  h.cfg.OAuth.XRedirectURL,
		Scopes:       []string{"users.read", "tweet.read"},
		Endpoint:     h.endpoint,
	}
}

func (h *XOAuthHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.cfg.Server.Env == "production", true)
}

// Redirect sends the user to the X consent screen. State and the PKCE
// verifier ride along in short-lived cookies.
func (h *XOAuthHandler) Redirect(c *gin.Context) {
	if h.cfg.OAuth.XClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "X OAuth not configured"})
		return
	}
	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()
	h.setCookie(c, stateCookie, state, cookieMaxAge)
	h.setCookie(c, verifierCookie, verifier, cookieMaxAge)
	url := h.OAuth2Config().AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	c.Redirect(http.StatusFound, url)
}

type xUserResponse struct {
	Data service.XProfile `json:"data"`
}

// Callback exchanges the code, fetches the X profile and returns a JWT.
func (h *XOAuthHandler) Callback(c *gin.Context) {
	if h.cfg.OAuth.XClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "X OAuth not configured"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}
	verifier, err := c.Cookie(verifierCookie)
	if err != nil || verifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing verifier"})
		return
	}
	h.setCookie(c, stateCookie, "", -1)
	h.setCookie(c, verifierCookie, "", -1)

	ctx := c.Request.Context()
	conf := h.OAuth2Config()
	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		h.log.WithError(err).Warn("[X OAuth] Code exchange failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "exchange failed"})
		return
	}
	resp, err := conf.Client(ctx, tok).Get(h.userInfoURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get user info"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		h.log.WithField("status", resp.StatusCode).Warn("[X OAuth] User info request rejected")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get user info"})
		return
	}
	var info xUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "invalid user info"})
		return
	}
	u, access, isNew, err := h.authSvc.LoginWithX(ctx, info.Data)
	if err != nil {
		h.log.WithError(err).Error("[X OAuth] Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	h.log.WithFields(logrus.Fields{"user_id": u.ID, "handle": u.TwitterHandle, "new": isNew}).Info("[X OAuth] Signed in")
	c.JSON(http.StatusOK, gin.H{"user": u, "access_token": access, "is_new": isNew})
}
