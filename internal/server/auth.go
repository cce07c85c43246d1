package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// apiKeyRequired guards mutating endpoints with the shared API key, accepted
// either as X-API-Key or as a bearer token. When no key is configured the
// check is disabled, which only makes sense for local development.
func (s *Server) apiKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := s.Config.Auth.APIKey
		if expected == "" {
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = bearerToken(c)
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// cronAuth guards the external cron trigger. It accepts the cron secret as a
// bearer token, and falls back to the regular API key so manual triggering
// keeps working.
func (s *Server) cronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.Config.Auth.CronSecret
		apiKey := s.Config.Auth.APIKey
		if secret == "" && apiKey == "" {
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			token = c.GetHeader("X-API-Key")
		}

		if secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1 {
			c.Next()
			return
		}
		if apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1 {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unauthorized",
		})
		c.Abort()
	}
}
