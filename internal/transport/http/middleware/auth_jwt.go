package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gaht-identity/internal/core/token"
	resp "gaht-identity/internal/transport/http/response"
)

// Context keys populated after a token passes verification.
const (
	KeyUsername = "username"
	KeyRole     = "role"
)

// AuthJWT authorizes requests from the bearer token alone: signature, expiry
// and issuer are checked without a storage round trip.
func AuthJWT(iss *token.Issuer, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		claims, err := iss.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if requireRole != "" && claims.Role != requireRole {
			c.AbortWithStatusJSON(http.StatusForbidden, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Set(KeyUsername, claims.Subject)
		c.Set(KeyRole, claims.Role)
		c.Next()
	}
}
