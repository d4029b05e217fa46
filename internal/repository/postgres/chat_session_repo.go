package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/domain/repository"
)

// errDuplicateUsage прерывает транзакцию, когда вопрос уже был показан в чате
var errDuplicateUsage = errors.New("question already delivered to chat")

// ChatSessionRepo реализует repository.ChatSessionRepository
type ChatSessionRepo struct {
	db *gorm.DB
}

// NewChatSessionRepo создает репозиторий игровых сессий
func NewChatSessionRepo(db *gorm.DB) *ChatSessionRepo {
	return &ChatSessionRepo{db: db}
}

// GetOrCreate возвращает сессию чата, создавая ее при первом обращении
func (r *ChatSessionRepo) GetOrCreate(ctx context.Context, chatID int64, defaults entity.SelectionFilter) (*entity.ChatSession, error) {
	db := r.db.WithContext(ctx)

	var session entity.ChatSession
	err := db.Where("chat_id = ?", chatID).Take(&session).Error
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load session for chat %d: %w", chatID, err)
	}

	created := entity.NewChatSession(chatID, defaults)
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoNothing: true,
	}).Create(created).Error
	if err != nil {
		return nil, fmt.Errorf("create session for chat %d: %w", chatID, err)
	}

	// Строку мог создать параллельный запрос - перечитываем
	if err := db.Where("chat_id = ?", chatID).Take(&session).Error; err != nil {
		return nil, fmt.Errorf("reload session for chat %d: %w", chatID, err)
	}
	return &session, nil
}

// Save сохраняет все поля сессии
func (r *ChatSessionRepo) Save(ctx context.Context, session *entity.ChatSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// ListByState возвращает сессии в заданном состоянии
func (r *ChatSessionRepo) ListByState(ctx context.Context, state string) ([]entity.ChatSession, error) {
	var sessions []entity.ChatSession
	err := r.db.WithContext(ctx).Where("state = ?", state).Order("id").Find(&sessions).Error
	return sessions, err
}

// RecordDelivery фиксирует показ вопроса и обновляет сессию одной транзакцией
func (r *ChatSessionRepo) RecordDelivery(ctx context.Context, chatID, questionID int64, apply repository.DeliveryFunc) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		usage := entity.ChatQuestionUsage{ChatID: chatID, QuestionID: questionID}
		if err := tx.Create(&usage).Error; err != nil {
			if isUniqueViolation(err) {
				return errDuplicateUsage
			}
			return fmt.Errorf("insert usage: %w", err)
		}

		var session entity.ChatSession
		if err := tx.Where("chat_id = ?", chatID).Take(&session).Error; err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		var question entity.Question
		if err := tx.First(&question, questionID).Error; err != nil {
			return fmt.Errorf("load question: %w", err)
		}

		logEntry := apply(&session, &question)
		if err := tx.Save(&session).Error; err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		if logEntry != nil {
			if err := tx.Create(logEntry).Error; err != nil {
				return fmt.Errorf("insert game session log: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, errDuplicateUsage) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record delivery chat=%d question=%d: %w", chatID, questionID, err)
	}
	return true, nil
}
