package dto

import (
	"time"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// LoginRequest - тело запроса входа в админ-API
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse содержит выданный токен
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReplenishRequest - параметры ручного пополнения
type ReplenishRequest struct {
	CursorStart *int64 `json:"cursor_start" binding:"omitempty,min=0"`
	MaxBatches  int    `json:"max_batches" binding:"omitempty,min=1,max=100"`
}

// PoolStatsResponse описывает состояние пула
type PoolStatsResponse struct {
	*entity.PoolStats
	ReplenishBusy bool `json:"replenish_busy"`
}

// AnalyticsResponse описывает активность игроков за окно
type AnalyticsResponse struct {
	*entity.UsageAnalytics
	WindowHours float64 `json:"window_hours"`
}
