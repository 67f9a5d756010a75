package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cookbook/internal/authz"
)

// ключи контекста gin
const (
	CtxUserID  = "user_id"
	CtxIsStaff = "is_staff"
)

func bearer(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tokenStr := strings.TrimSpace(parts[1])
	return tokenStr, tokenStr != ""
}

// AuthMiddleware требует валидный access-токен.
func AuthMiddleware(tokens *authz.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxIsStaff, claims.IsStaff)
		c.Next()
	}
}

// OptionalAuth кладёт пользователя в контекст, если токен есть и валиден; иначе запрос анонимный.
func OptionalAuth(tokens *authz.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearer(c); ok {
			if claims, err := tokens.Parse(tokenStr); err == nil {
				c.Set(CtxUserID, claims.UserID)
				c.Set(CtxIsStaff, claims.IsStaff)
			}
		}
		c.Next()
	}
}
