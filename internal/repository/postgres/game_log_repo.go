package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// GameSessionLogRepo реализует repository.GameSessionLogRepository
type GameSessionLogRepo struct {
	db *gorm.DB
}

// NewGameSessionLogRepo создает репозиторий журнала игр
func NewGameSessionLogRepo(db *gorm.DB) *GameSessionLogRepo {
	return &GameSessionLogRepo{db: db}
}

// CountSince считает начатые игры и уникальные чаты начиная с since
func (r *GameSessionLogRepo) CountSince(ctx context.Context, since time.Time) (int64, int64, error) {
	var sessions, chats int64
	base := r.db.WithContext(ctx).Model(&entity.GameSessionLog{}).Where("started_at >= ?", since)

	if err := base.Session(&gorm.Session{}).Count(&sessions).Error; err != nil {
		return 0, 0, fmt.Errorf("count sessions: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Distinct("chat_id").Count(&chats).Error; err != nil {
		return 0, 0, fmt.Errorf("count active chats: %w", err)
	}
	return sessions, chats, nil
}

// ListSince возвращает записи журнала начиная с since, старые первыми
func (r *GameSessionLogRepo) ListSince(ctx context.Context, since time.Time) ([]entity.GameSessionLog, error) {
	var logs []entity.GameSessionLog
	err := r.db.WithContext(ctx).
		Where("started_at >= ?", since).
		Order("started_at, id").
		Find(&logs).Error
	return logs, err
}
