package repository

import (
	"context"
	"time"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// DeliveryFunc применяет факт доставки вопроса к сессии внутри транзакции.
// Возвращает запись журнала игр, если ее нужно добавить.
type DeliveryFunc func(session *entity.ChatSession, question *entity.Question) *entity.GameSessionLog

// ChatSessionRepository определяет методы для работы с игровыми сессиями чатов
type ChatSessionRepository interface {
	GetOrCreate(ctx context.Context, chatID int64, defaults entity.SelectionFilter) (*entity.ChatSession, error)
	Save(ctx context.Context, session *entity.ChatSession) error
	ListByState(ctx context.Context, state string) ([]entity.ChatSession, error)
	// RecordDelivery вставляет запись о показе вопроса и, только если она новая,
	// применяет apply к сессии. Повторная вставка возвращает false без ошибки.
	RecordDelivery(ctx context.Context, chatID, questionID int64, apply DeliveryFunc) (bool, error)
}

// GameSessionLogRepository дает доступ к журналу начатых игр
type GameSessionLogRepository interface {
	CountSince(ctx context.Context, since time.Time) (sessions int64, activeChats int64, err error)
	ListSince(ctx context.Context, since time.Time) ([]entity.GameSessionLog, error)
}
