package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
)

// scoreExpr - средняя оценка сложности по доступным значениям (NULL, если оценок нет).
// Работает одинаково в PostgreSQL и SQLite.
const scoreExpr = `(CASE
	WHEN questions.pack_complexity_primary IS NOT NULL AND questions.pack_complexity_secondary IS NOT NULL
		THEN (questions.pack_complexity_primary + questions.pack_complexity_secondary) / 2.0
	ELSE COALESCE(questions.pack_complexity_primary, questions.pack_complexity_secondary)
END)`

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id int64) (*entity.Question, error) {
	var question entity.Question
	err := r.db.WithContext(ctx).First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// FindByIDs возвращает сохраненные вопросы по списку внешних id
func (r *QuestionRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Question, error) {
	out := make(map[int64]*entity.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var questions []entity.Question
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("find questions by ids: %w", err)
	}
	for i := range questions {
		out[questions[i].ID] = &questions[i]
	}
	return out, nil
}

// PickRandom выбирает случайный непоказанный в чате вопрос, подходящий под фильтр
func (r *QuestionRepo) PickRandom(ctx context.Context, chatID int64, filter entity.SelectionFilter) (*entity.Question, error) {
	query := r.db.WithContext(ctx).
		Model(&entity.Question{}).
		Where("questions.likes >= ?", filter.MinLikes).
		Where("NOT EXISTS (SELECT 1 FROM chat_question_usage u WHERE u.chat_id = ? AND u.question_id = questions.id)", chatID)

	if filter.MinTakePercent > 0 {
		query = query.Where("questions.take_percent >= ?", filter.MinTakePercent)
	}

	if filter.Difficulty != nil {
		lo, hi, inclusive := entity.DifficultyRange(*filter.Difficulty)
		query = query.Where(scoreExpr+" >= ?", lo)
		if inclusive {
			query = query.Where(scoreExpr+" <= ?", hi)
		} else {
			query = query.Where(scoreExpr+" < ?", hi)
		}
	}

	var question entity.Question
	err := query.Order("RANDOM()").Limit(1).Take(&question).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("pick random question for chat %d: %w", chatID, err)
	}
	return &question, nil
}

type complexityGroup struct {
	C1    *float64
	C2    *float64
	Total int64
}

// PoolStats считает вопросы по уровням сложности.
// Уровень вычисляется в Go, чтобы совпадать с entity.DifficultyBucket.
func (r *QuestionRepo) PoolStats(ctx context.Context) (*entity.PoolStats, error) {
	var groups []complexityGroup
	err := r.db.WithContext(ctx).
		Model(&entity.Question{}).
		Select("pack_complexity_primary AS c1, pack_complexity_secondary AS c2, COUNT(*) AS total").
		Group("pack_complexity_primary, pack_complexity_secondary").
		Scan(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("pool stats: %w", err)
	}

	stats := entity.NewPoolStats()
	for _, g := range groups {
		stats.Total += g.Total
		bucket, ok := entity.DifficultyBucket(g.C1, g.C2)
		if !ok {
			stats.Unbucketed += g.Total
			continue
		}
		stats.ByLevel[bucket] += g.Total
	}
	return stats, nil
}
