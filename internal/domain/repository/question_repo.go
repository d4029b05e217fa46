package repository

import (
	"context"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// QuestionRepository определяет методы чтения пула вопросов
type QuestionRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Question, error)
	// FindByIDs возвращает уже сохраненные вопросы из списка id
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Question, error)
	// PickRandom выбирает случайный вопрос, еще не показанный в чате. ErrNotFound, если таких нет.
	PickRandom(ctx context.Context, chatID int64, filter entity.SelectionFilter) (*entity.Question, error)
	// PoolStats считает вопросы по уровням сложности
	PoolStats(ctx context.Context) (*entity.PoolStats, error)
}
