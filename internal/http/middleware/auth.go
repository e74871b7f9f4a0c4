// README: Bearer-token auth middleware; resolves the acting organization and role for handlers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reposition/internal/infra"
	"reposition/internal/types"
)

const actorKey = "actor"

func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		actor, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// Caller returns the actor stored by Auth.
func Caller(c *gin.Context) (types.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return types.Actor{}, false
	}
	a, ok := v.(types.Actor)
	return a, ok
}
