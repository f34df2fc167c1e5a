// README: Bearer-token auth middleware. Resolves the caller's identity
// once and stashes it in the gin context for handlers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"usta/internal/auth"
	"usta/internal/types"
)

const (
	ctxKeyUID  = "caller_uid"
	ctxKeyRole = "caller_role"
)

// Auth verifies the bearer token and rejects unauthenticated requests.
// Websocket upgrades may carry the token as a "token" query parameter
// instead, since browser websocket clients cannot set headers.
func Auth(verifier auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		id, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxKeyUID, id.UserID)
		c.Set(ctxKeyRole, id.Role)
		c.Next()
	}
}

// RequireRole gates a route to one role; Auth must run first.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
		c.Next()
	}
}

func CallerUID(c *gin.Context) types.ID {
	if v, ok := c.Get(ctxKeyUID); ok {
		if id, ok := v.(types.ID); ok {
			return id
		}
	}
	return ""
}

func CallerRole(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyRole); ok {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
