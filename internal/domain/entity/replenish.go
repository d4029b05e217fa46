package entity

import "time"

// ReplenishResult - итог одного запуска пополнения пула.
// Все поля заполнены даже для "пустого" запуска.
type ReplenishResult struct {
	RunID                          string        `json:"run_id"`
	Reason                         string        `json:"reason"`
	StartedAt                      time.Time     `json:"started_at"`
	Duration                       time.Duration `json:"duration"`
	PacksChecked                   int           `json:"packs_checked"`
	PacksFound                     int           `json:"packs_found"`
	PacksNotFound                  int           `json:"packs_not_found"`
	PacksFailedHTTP                int           `json:"packs_failed_http"`
	NetworkErrors                  int           `json:"network_errors"`
	NetworkRetries                 int           `json:"network_retries"`
	ParserErrors                   int           `json:"parser_errors"`
	Blocked                        bool          `json:"blocked"`
	Batches                        int           `json:"batches"`
	CursorBefore                   int64         `json:"cursor_before"`
	CursorAfter                    int64         `json:"cursor_after"`
	QuestionsSeen                  int           `json:"questions_seen"`
	QuestionsExisting              int           `json:"questions_existing"`
	QuestionsFilteredLikes         int           `json:"questions_filtered_likes"`
	QuestionsFilteredBucketMissing int           `json:"questions_filtered_bucket_missing"`
	AddedByLevel                   map[int]int   `json:"added_by_level"`
	AddedTotal                     int           `json:"added_total"`
}

// NewReplenishResult создает результат с заполненной разбивкой по уровням
func NewReplenishResult() *ReplenishResult {
	r := &ReplenishResult{AddedByLevel: make(map[int]int, MaxDifficulty)}
	for level := MinDifficulty; level <= MaxDifficulty; level++ {
		r.AddedByLevel[level] = 0
	}
	return r
}

// QuestionsExcluded - сколько вопросов отсечено всего
func (r *ReplenishResult) QuestionsExcluded() int {
	return r.QuestionsExisting + r.QuestionsFilteredLikes + r.QuestionsFilteredBucketMissing
}

// AddQuestion учитывает добавленный вопрос уровня level
func (r *ReplenishResult) AddQuestion(level int) {
	r.AddedByLevel[level]++
	r.AddedTotal++
}

// PoolStats - состояние пула вопросов по уровням сложности
type PoolStats struct {
	Total      int64         `json:"total"`
	ByLevel    map[int]int64 `json:"by_level"`
	Unbucketed int64         `json:"unbucketed"`
}

// NewPoolStats создает пустую статистику со всеми уровнями
func NewPoolStats() *PoolStats {
	s := &PoolStats{ByLevel: make(map[int]int64, MaxDifficulty)}
	for level := MinDifficulty; level <= MaxDifficulty; level++ {
		s.ByLevel[level] = 0
	}
	return s
}

// AllLevelsReach проверяет, что на каждом уровне не меньше target вопросов
func (s *PoolStats) AllLevelsReach(target int) bool {
	for level := MinDifficulty; level <= MaxDifficulty; level++ {
		if s.ByLevel[level] < int64(target) {
			return false
		}
	}
	return true
}

// UsageAnalytics - активность игроков за окно времени
type UsageAnalytics struct {
	Since       time.Time `json:"since"`
	Sessions    int64     `json:"sessions"`
	ActiveChats int64     `json:"active_chats"`
}
