package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SharedSecret guards machine-to-machine endpoints (payment webhook, cron)
// with a static secret header. An unset secret rejects every request.
func SharedSecret(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false})
			return
		}
		c.Next()
	}
}
