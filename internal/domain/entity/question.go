package entity

import (
	"strings"
	"time"
)

// Question представляет вопрос ЧГК из пула.
// Создается один раз на внешний id; при повторной встрече дозаполняется только раздатка.
type Question struct {
	ID                      int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	PackID                  int64     `gorm:"not null;index" json:"pack_id"`
	NumberInPack            int       `gorm:"not null" json:"number_in_pack"`
	Text                    string    `gorm:"type:text;not null" json:"text"`
	SourceURL               string    `gorm:"size:1024;not null" json:"source_url"`
	RazdatkaText            string    `gorm:"type:text;not null" json:"razdatka_text"`
	RazdatkaPicURL          string    `gorm:"size:1024;not null" json:"razdatka_pic_url"`
	Answer                  string    `gorm:"type:text;not null" json:"answer"`
	Zachet                  string    `gorm:"type:text;not null" json:"zachet"`
	Comment                 string    `gorm:"type:text;not null" json:"comment"`
	Sources                 string    `gorm:"type:text;not null" json:"sources"`
	Likes                   int       `gorm:"not null;index" json:"likes"`
	Dislikes                *int      `json:"dislikes"`
	TakeNum                 *int      `json:"take_num"`
	TakeDen                 *int      `json:"take_den"`
	TakePercent             *float64  `json:"take_percent"`
	PackComplexityPrimary   *float64  `json:"pack_complexity_primary"`
	PackComplexitySecondary *float64  `json:"pack_complexity_secondary"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// Bucket возвращает уровень сложности вопроса (наследуется от пака)
func (q *Question) Bucket() (int, bool) {
	return DifficultyBucket(q.PackComplexityPrimary, q.PackComplexitySecondary)
}

// HasComplexity сообщает, есть ли у вопроса хотя бы одна оценка сложности
func (q *Question) HasComplexity() bool {
	return q.PackComplexityPrimary != nil || q.PackComplexitySecondary != nil
}

// PictureURL возвращает абсолютную ссылку на картинку раздатки.
func (q *Question) PictureURL(baseURL string) string {
	if q.RazdatkaPicURL == "" {
		return ""
	}
	if strings.HasPrefix(q.RazdatkaPicURL, "/") {
		return strings.TrimRight(baseURL, "/") + q.RazdatkaPicURL
	}
	return q.RazdatkaPicURL
}

// Backfill дозаполняет пустые поля раздатки. Возвращает true, если что-то изменилось.
func (q *Question) Backfill(razdatkaText, razdatkaPic string) bool {
	changed := false
	if q.RazdatkaPicURL == "" && razdatkaPic != "" {
		q.RazdatkaPicURL = razdatkaPic
		changed = true
	}
	if q.RazdatkaText == "" && razdatkaText != "" {
		q.RazdatkaText = razdatkaText
		changed = true
	}
	return changed
}
