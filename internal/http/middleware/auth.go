package middleware

import (
	"net/http"
	"strings"

	"marketplace/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authUserKey = "auth_user"

// RequireAdmin validates the bearer JWT issued by the auth handler and
// rejects anything without role=admin. The payment admin surface sits
// entirely behind this.
func RequireAdmin(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(raw, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token tidak ditemukan"})
			return
		}
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token tidak valid"})
			return
		}

		role, _ := claims["role"].(string)
		if role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "butuh role admin"})
			return
		}

		userID, _ := claims["user_id"].(float64)
		c.Set(authUserKey, domain.RequestContext{UserID: domain.ID(userID), Role: role})
		c.Next()
	}
}

// GetAuthUser returns the authenticated context set by RequireAdmin.
func GetAuthUser(c *gin.Context) (domain.RequestContext, bool) {
	v, ok := c.Get(authUserKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	rc, ok := v.(domain.RequestContext)
	return rc, ok
}
