package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cliforge/codeassist-gateway/internal/ipguard"
	"github.com/cliforge/codeassist-gateway/internal/util"
)

// APIKeyAuth rejects requests that don't present one of keys, checked
// against the Authorization: Bearer header, OpenAI's api-key-less
// x-goog-api-key / x-api-key headers, and the Gemini "?key=" query
// parameter. An empty keys list disables authentication entirely.
func APIKeyAuth(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		presented := extractAPIKey(c)
		if presented == "" || !util.InArray(keys, presented) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "invalid or missing API key", "type": "authentication_error"},
			})
			return
		}
		c.Next()
	}
}

func extractAPIKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return key
		}
	}
	if key := c.GetHeader("x-goog-api-key"); key != "" {
		return key
	}
	if key := c.GetHeader("x-api-key"); key != "" {
		return key
	}
	return c.Query("key")
}

// IPGuard rejects requests from IPs the guard has blocked, and records an
// auth-failure violation once the downstream handler rejects the request
// (detected by status code after c.Next()).
func IPGuard(guard *ipguard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guard == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if blocked, reason, expiresAt := guard.Check(ip); blocked {
			_ = reason
			_ = expiresAt
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"message": "too many failed requests from this address", "type": "blocked"},
			})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			guard.RecordViolation(ip, ipguard.ViolationAuthFailure)
		case http.StatusNotFound:
			guard.RecordViolation(ip, ipguard.ViolationNotFound)
		}
	}
}
