package entity

import (
	"fmt"
	"time"
)

// Pack представляет пакет вопросов с gotquestions.online
type Pack struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title               string    `gorm:"size:1000;not null" json:"title"`
	PubDate             string    `gorm:"size:128;not null" json:"pub_date"`
	ComplexityPrimary   *float64  `json:"complexity_primary"`
	ComplexitySecondary *float64  `json:"complexity_secondary"`
	SourceURL           string    `gorm:"size:1024;not null" json:"source_url"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Pack) TableName() string {
	return "packs"
}

// Bucket возвращает уровень сложности пака
func (p *Pack) Bucket() (int, bool) {
	return DifficultyBucket(p.ComplexityPrimary, p.ComplexitySecondary)
}

// PackURL формирует ссылку на страницу пака
func PackURL(baseURL string, packID int64) string {
	return fmt.Sprintf("%s/pack/%d", baseURL, packID)
}

// QuestionURL формирует ссылку на страницу вопроса
func QuestionURL(baseURL string, questionID int64) string {
	return fmt.Sprintf("%s/question/%d", baseURL, questionID)
}
