package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
)

func (s *Service) window(w time.Duration) time.Duration {
	if w <= 0 {
		return s.config.AnalyticsWindow
	}
	return w
}

// Analytics возвращает число начатых игр и активных чатов за окно
func (s *Service) Analytics(ctx context.Context, window time.Duration) (*entity.UsageAnalytics, error) {
	since := s.now().UTC().Add(-s.window(window))
	sessions, chats, err := s.deps.LogRepo.CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("usage analytics: %w", err)
	}
	return &entity.UsageAnalytics{Since: since, Sessions: sessions, ActiveChats: chats}, nil
}

// SessionLogs возвращает журнал начатых игр за окно
func (s *Service) SessionLogs(ctx context.Context, window time.Duration) ([]entity.GameSessionLog, error) {
	return s.deps.LogRepo.ListSince(ctx, s.now().UTC().Add(-s.window(window)))
}

// PoolStats возвращает состояние пула, кешируя его на PoolStatsTTL
func (s *Service) PoolStats(ctx context.Context) (*entity.PoolStats, error) {
	if s.deps.CacheRepo != nil {
		var cached entity.PoolStats
		err := s.deps.CacheRepo.GetJSON(ctx, poolStatsKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[Game] Ошибка чтения кеша статистики пула: %v", err)
		}
	}

	stats, err := s.deps.QuestionRepo.PoolStats(ctx)
	if err != nil {
		return nil, err
	}
	if s.deps.CacheRepo != nil {
		if err := s.deps.CacheRepo.SetJSON(ctx, poolStatsKey, stats, s.config.PoolStatsTTL); err != nil {
			log.Printf("[Game] Ошибка записи кеша статистики пула: %v", err)
		}
	}
	return stats, nil
}

// InvalidatePoolStats сбрасывает кеш статистики пула (после пополнения)
func (s *Service) InvalidatePoolStats(ctx context.Context) {
	if s.deps.CacheRepo == nil {
		return
	}
	if err := s.deps.CacheRepo.Delete(ctx, poolStatsKey); err != nil {
		log.Printf("[Game] Ошибка сброса кеша статистики пула: %v", err)
	}
}
