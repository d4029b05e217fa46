package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/domain/repository"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
)

// CrawlRepo реализует repository.CrawlRepository
type CrawlRepo struct {
	db *gorm.DB
}

// NewCrawlRepo создает репозиторий состояния краулера
func NewCrawlRepo(db *gorm.DB) *CrawlRepo {
	return &CrawlRepo{db: db}
}

// GetCursor возвращает курсор по имени
func (r *CrawlRepo) GetCursor(ctx context.Context, name string) (*entity.ParserState, error) {
	var state entity.ParserState
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// SetCursor создает или перезаписывает курсор
func (r *CrawlRepo) SetCursor(ctx context.Context, name string, cursor int64) error {
	return upsertCursor(r.db.WithContext(ctx), name, cursor)
}

// CommitBatch атомарно сохраняет паки, новые вопросы, дозаполнение раздатки и курсор
func (r *CrawlRepo) CommitBatch(ctx context.Context, name string, batch *repository.CrawlBatch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(batch.Packs) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "pub_date", "complexity_primary", "complexity_secondary", "source_url", "updated_at",
				}),
			}).Create(&batch.Packs).Error
			if err != nil {
				return fmt.Errorf("upsert packs: %w", err)
			}
		}

		if len(batch.Questions) > 0 {
			// Вопрос создается один раз: повторная вставка того же id игнорируется
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(&batch.Questions, 100).Error
			if err != nil {
				return fmt.Errorf("insert questions: %w", err)
			}
		}

		now := time.Now().UTC()
		for _, q := range batch.Backfills {
			err := tx.Model(&entity.Question{}).
				Where("id = ?", q.ID).
				Updates(map[string]interface{}{
					"razdatka_text":    q.RazdatkaText,
					"razdatka_pic_url": q.RazdatkaPicURL,
					"updated_at":       now,
				}).Error
			if err != nil {
				return fmt.Errorf("backfill question %d: %w", q.ID, err)
			}
		}

		return upsertCursor(tx, name, batch.Cursor)
	})
}

func upsertCursor(db *gorm.DB, name string, cursor int64) error {
	state := entity.ParserState{Name: name, Cursor: cursor, UpdatedAt: time.Now().UTC()}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"cursor", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("save parser cursor %q: %w", name, err)
	}
	return nil
}
