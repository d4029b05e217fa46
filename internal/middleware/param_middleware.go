package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// WindowKey - ключ контекста Gin с окном аналитики
const WindowKey = "window"

// MaxWindowHours ограничивает окно аналитики
const MaxWindowHours = 24 * 90

// ExtractWindowQuery извлекает окно аналитики из параметра ?hours=.
// Отсутствующий параметр дает 0 (окно по умолчанию).
func ExtractWindowQuery(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query(paramName)
		if raw == "" {
			c.Set(WindowKey, time.Duration(0))
			c.Next()
			return
		}
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 1 || hours > MaxWindowHours {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			return
		}
		c.Set(WindowKey, time.Duration(hours)*time.Hour)
		c.Next()
	}
}
