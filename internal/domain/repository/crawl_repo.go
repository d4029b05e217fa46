package repository

import (
	"context"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// CrawlBatch - все изменения одного батча краулера, применяемые одной транзакцией
type CrawlBatch struct {
	Packs     []entity.Pack
	Questions []entity.Question
	// Backfills содержат id и уже дополненные поля раздатки
	Backfills []entity.Question
	Cursor    int64
}

// CrawlRepository хранит курсор краулера и сохраняет результаты батчей
type CrawlRepository interface {
	GetCursor(ctx context.Context, name string) (*entity.ParserState, error)
	SetCursor(ctx context.Context, name string, cursor int64) error
	CommitBatch(ctx context.Context, name string, batch *CrawlBatch) error
}
