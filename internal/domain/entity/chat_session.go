package entity

import (
	"time"
)

// Состояния игровой сессии чата
const (
	SessionStateIdle              = "IDLE"
	SessionStateQuestionActive    = "QUESTION_ACTIVE"
	SessionStateAnswerPendingNext = "ANSWER_PENDING_NEXT"
	SessionStateWaitingReplenish  = "WAITING_REPLENISH"
)

// ChatSession хранит состояние игры в одном чате. Создается лениво, никогда не удаляется.
type ChatSession struct {
	ID                            uint      `gorm:"primaryKey" json:"id"`
	ChatID                        int64     `gorm:"not null;uniqueIndex:uq_chat_sessions_chat_id" json:"chat_id"`
	State                         string    `gorm:"size:64;not null" json:"state"`
	CurrentQuestionID             *int64    `json:"current_question_id"`
	CurrentQuestionMessageID      *int      `json:"current_question_message_id"`
	SelectedDifficulty            *int      `json:"selected_difficulty"`
	SelectedMinLikes              int       `gorm:"not null" json:"selected_min_likes"`
	SelectedMinTakePercent        float64   `gorm:"not null" json:"selected_min_take_percent"`
	SessionAskedCount             int       `gorm:"not null" json:"session_asked_count"`
	SessionTakenCount             int       `gorm:"not null" json:"session_taken_count"`
	SessionComplexityPrimarySum   float64   `gorm:"not null" json:"session_complexity_primary_sum"`
	SessionComplexitySecondarySum float64   `gorm:"not null" json:"session_complexity_secondary_sum"`
	SessionComplexityCount        int       `gorm:"not null" json:"session_complexity_count"`
	LockVersion                   int       `gorm:"not null" json:"lock_version"`
	UpdatedAt                     time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// NewChatSession создает сессию в состоянии IDLE с фильтрами по умолчанию
func NewChatSession(chatID int64, defaults SelectionFilter) *ChatSession {
	s := &ChatSession{ChatID: chatID, State: SessionStateIdle}
	s.applyFilter(defaults)
	return s
}

// Filter возвращает фильтр выбора вопросов, сохраненный в сессии
func (s *ChatSession) Filter() SelectionFilter {
	f := SelectionFilter{
		MinLikes:       s.SelectedMinLikes,
		MinTakePercent: s.SelectedMinTakePercent,
	}
	if s.SelectedDifficulty != nil {
		d := *s.SelectedDifficulty
		f.Difficulty = &d
	}
	return f
}

func (s *ChatSession) applyFilter(f SelectionFilter) {
	s.SelectedDifficulty = nil
	if f.Difficulty != nil {
		d := *f.Difficulty
		s.SelectedDifficulty = &d
	}
	s.SelectedMinLikes = f.MinLikes
	s.SelectedMinTakePercent = f.MinTakePercent
}

// BeginGame сбрасывает счетчики и сохраняет фильтры новой игры
func (s *ChatSession) BeginGame(f SelectionFilter) {
	s.applyFilter(f)
	s.SessionAskedCount = 0
	s.SessionTakenCount = 0
	s.SessionComplexityPrimarySum = 0
	s.SessionComplexitySecondarySum = 0
	s.SessionComplexityCount = 0
	s.CurrentQuestionID = nil
	s.CurrentQuestionMessageID = nil
}

// SetQuestion делает вопрос текущим и переводит сессию в QUESTION_ACTIVE
func (s *ChatSession) SetQuestion(questionID int64) {
	id := questionID
	s.CurrentQuestionID = &id
	s.CurrentQuestionMessageID = nil
	s.State = SessionStateQuestionActive
}

// ClearQuestion убирает текущий вопрос
func (s *ChatSession) ClearQuestion() {
	s.CurrentQuestionID = nil
	s.CurrentQuestionMessageID = nil
}

// IsCurrent проверяет, что вопрос является текущим в сессии
func (s *ChatSession) IsCurrent(questionID int64) bool {
	return s.CurrentQuestionID != nil && *s.CurrentQuestionID == questionID
}

// ApplyDelivery учитывает фактически отправленный вопрос.
// Возвращает true, если это первый вопрос игры.
func (s *ChatSession) ApplyDelivery(q *Question, messageID int) bool {
	if messageID != 0 {
		mid := messageID
		s.CurrentQuestionMessageID = &mid
	}
	s.SessionAskedCount++
	if q.HasComplexity() {
		s.SessionComplexityCount++
		if q.PackComplexityPrimary != nil {
			s.SessionComplexityPrimarySum += *q.PackComplexityPrimary
		}
		if q.PackComplexitySecondary != nil {
			s.SessionComplexitySecondarySum += *q.PackComplexitySecondary
		}
	}
	return s.SessionAskedCount == 1
}

// Stats возвращает статистику текущей игры
func (s *ChatSession) Stats() SessionStats {
	stats := SessionStats{
		Asked: s.SessionAskedCount,
		Taken: s.SessionTakenCount,
	}
	if s.SessionComplexityCount > 0 {
		n := float64(s.SessionComplexityCount)
		primary := s.SessionComplexityPrimarySum / n
		secondary := s.SessionComplexitySecondarySum / n
		stats.ComplexityPrimaryAvg = &primary
		stats.ComplexitySecondaryAvg = &secondary
	}
	return stats
}

// Reset возвращает сессию в IDLE и сбрасывает фильтры к значениям по умолчанию
func (s *ChatSession) Reset(defaults SelectionFilter) {
	s.State = SessionStateIdle
	s.ClearQuestion()
	s.applyFilter(defaults)
	s.LockVersion++
}

// SessionStats - итоги игры, которые показываются по /stop
type SessionStats struct {
	Asked                  int      `json:"asked"`
	Taken                  int      `json:"taken"`
	ComplexityPrimaryAvg   *float64 `json:"complexity_primary_avg"`
	ComplexitySecondaryAvg *float64 `json:"complexity_secondary_avg"`
}
