package entity

import (
	"fmt"
	"math"
)

// SelectionFilter - критерии выбора вопроса для чата
type SelectionFilter struct {
	Difficulty     *int    `json:"difficulty,omitempty"`
	MinLikes       int     `json:"min_likes"`
	MinTakePercent float64 `json:"min_take_percent"`
}

// Validate проверяет корректность фильтра
func (f SelectionFilter) Validate() error {
	if f.Difficulty != nil && !IsValidDifficulty(*f.Difficulty) {
		return fmt.Errorf("difficulty must be in [%d, %d], got %d", MinDifficulty, MaxDifficulty, *f.Difficulty)
	}
	if f.MinLikes < 0 {
		return fmt.Errorf("min likes must be non-negative, got %d", f.MinLikes)
	}
	if math.IsNaN(f.MinTakePercent) || f.MinTakePercent < 0 || f.MinTakePercent > 100 {
		return fmt.Errorf("min take percent must be in [0, 100], got %.2f", f.MinTakePercent)
	}
	return nil
}

// Matches проверяет вопрос на соответствие фильтру (без учета истории чата)
func (f SelectionFilter) Matches(q *Question) bool {
	if q.Likes < f.MinLikes {
		return false
	}
	if f.MinTakePercent > 0 {
		if q.TakePercent == nil || *q.TakePercent < f.MinTakePercent {
			return false
		}
	}
	if f.Difficulty != nil {
		score, ok := DifficultyScore(q.PackComplexityPrimary, q.PackComplexitySecondary)
		if !ok {
			return false
		}
		lo, hi, inclusive := DifficultyRange(*f.Difficulty)
		if score < lo {
			return false
		}
		if score > hi || (score == hi && !inclusive) {
			return false
		}
	}
	return true
}
