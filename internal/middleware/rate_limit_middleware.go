package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/chgk-bot/internal/domain/repository"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests - максимальное количество запросов за Window
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// AdminLoginRateLimitConfig - строгий лимит для входа в админ-API (защита от перебора пароля)
func AdminLoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 5,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:admin:login",
	}
}

// AdminAPIRateLimitConfig - общий лимит для защищенных маршрутов
func AdminAPIRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 120,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:admin:api",
	}
}

// RateLimiter ограничивает частоту запросов счетчиками в кеше
type RateLimiter struct {
	cache repository.CacheRepository
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(cache repository.CacheRepository) *RateLimiter {
	return &RateLimiter{cache: cache}
}

// Limit возвращает Gin middleware с заданной конфигурацией.
// Ключ формируется из IP и шаблона маршрута.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, clientIP, path)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rl.cache.Increment(ctx, key)
		if err != nil {
			// При ошибке кеша пропускаем запрос (fail-open), но логируем
			log.Printf("[RateLimiter] Cache error for key %s: %v. Allowing request (fail-open).", key, err)
			c.Next()
			return
		}
		if count == 1 {
			if err := rl.cache.Expire(ctx, key, cfg.Window); err != nil {
				log.Printf("[RateLimiter] Failed to set TTL for key %s: %v", key, err)
			}
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		retryAfter := int(cfg.Window.Seconds())

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if int(count) > cfg.MaxRequests {
			log.Printf("[RateLimiter] Rate limit exceeded for IP=%s path=%s. Count=%d, Limit=%d",
				clientIP, path, count, cfg.MaxRequests)

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
