package postgres

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// newTestDB поднимает изолированную in-memory SQLite базу со схемой приложения
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.Pack{},
		&entity.Question{},
		&entity.ChatSession{},
		&entity.ChatQuestionUsage{},
		&entity.GameSessionLog{},
		&entity.ParserState{},
	))
	return db
}

func fp(v float64) *float64 { return &v }

func ip(v int) *int { return &v }

// seedQuestion сохраняет вопрос с указанными сложностью и лайками
func seedQuestion(t *testing.T, db *gorm.DB, id int64, c1, c2 *float64, likes int, take *float64) entity.Question {
	t.Helper()
	q := entity.Question{
		ID:                      id,
		PackID:                  1,
		NumberInPack:            int(id),
		Text:                    fmt.Sprintf("Вопрос %d", id),
		Answer:                  "ответ",
		Likes:                   likes,
		TakePercent:             take,
		PackComplexityPrimary:   c1,
		PackComplexitySecondary: c2,
	}
	require.NoError(t, db.Create(&q).Error)
	return q
}
