package auth

import (
	"testing"
	"time"

	"tipwall/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{Secret: "s3cret", AccessExpiry: time.Hour, Issuer: "tipwall"}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 42, "alice")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Handle)
	assert.Equal(t, "42", claims.Subject)
}

func TestParseRejectsBadTokens(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 1, "a")
	require.NoError(t, err)

	other := *cfg
	other.Secret = "different"
	_, err = ParseAccessToken(&other, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := *cfg
	wrongIssuer.Issuer = "someone-else"
	_, err = ParseAccessToken(&wrongIssuer, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := *cfg
	expired.AccessExpiry = -time.Minute
	old, err := GenerateAccessToken(&expired, 1, "a")
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken(cfg, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
