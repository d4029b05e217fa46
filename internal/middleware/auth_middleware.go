package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/chgk-bot/pkg/auth"
)

// AdminSubjectKey - ключ контекста Gin с субъектом токена
const AdminSubjectKey = "admin_subject"

// AuthMiddleware проверяет токены администратора
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware создает middleware аутентификации
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// RequireAdmin пропускает только запросы с действительным токеном администратора.
// Токен берется из заголовка Authorization: Bearer, либо из ?token= для websocket.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
				return
			}
			token = parts[1]
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			return
		}

		claims, err := m.jwtService.ParseToken(token)
		if err != nil {
			errorType := "token_invalid"
			if errors.Is(err, auth.ErrTokenExpired) {
				errorType = "token_expired"
			}
			log.Printf("[AuthMiddleware] Отклонен токен с IP %s: %v", c.ClientIP(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": errorType})
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}
