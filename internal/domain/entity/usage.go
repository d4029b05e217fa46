package entity

import "time"

// ChatQuestionUsage фиксирует, что вопрос был показан в чате.
// Уникальность (chat_id, question_id) гарантирует отсутствие повторов.
type ChatQuestionUsage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatID     int64     `gorm:"not null;uniqueIndex:uq_chat_question_usage" json:"chat_id"`
	QuestionID int64     `gorm:"not null;uniqueIndex:uq_chat_question_usage;index" json:"question_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (ChatQuestionUsage) TableName() string {
	return "chat_question_usage"
}

// GameSessionLog - запись о начале игры (первый реально отправленный вопрос)
type GameSessionLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ChatID         int64     `gorm:"not null;index" json:"chat_id"`
	StartedAt      time.Time `gorm:"not null;index" json:"started_at"`
	Difficulty     *int      `json:"difficulty"`
	MinLikes       int       `gorm:"not null" json:"min_likes"`
	MinTakePercent float64   `gorm:"not null" json:"min_take_percent"`
}

// TableName определяет имя таблицы для GORM
func (GameSessionLog) TableName() string {
	return "game_session_logs"
}

// ParserStateMain - имя единственного курсора краулера
const ParserStateMain = "main"

// ParserState хранит курсор краулера (убывающий id пака)
type ParserState struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	Cursor    int64     `gorm:"not null" json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ParserState) TableName() string {
	return "parser_state"
}
