package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crowdqueue/crowdqueue/pkg/jwt"
)

// ContextUserKey is where the middleware stashes the caller's user id.
const ContextUserKey = "user_id"

// Middleware validates the guest token and sets user_id in the gin context.
// The token is accepted from the auth cookie, a bearer header, or the token
// query param (websocket clients cannot set headers).
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing auth token"})
			return
		}

		claims, err := jwt.ValidateToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextUserKey, claims.UserID)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie("auth_token"); err == nil && cookie != "" {
		return cookie
	}
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}

// CallerID returns the authenticated user id set by Middleware.
func CallerID(c *gin.Context) string {
	return c.GetString(ContextUserKey)
}
