package entity

import "math"

// Границы шкалы сложности
const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

// DifficultyScore возвращает среднее по доступным оценкам сложности пака.
// ok=false, если обе оценки отсутствуют.
func DifficultyScore(primary, secondary *float64) (score float64, ok bool) {
	var sum float64
	var n int
	if primary != nil {
		sum += *primary
		n++
	}
	if secondary != nil {
		sum += *secondary
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// DifficultyBucket вычисляет уровень сложности 1..10 из двух необязательных оценок.
// Округление "половина от нуля", чтобы уровень совпадал с интервалом [f-0.5, f+0.5).
func DifficultyBucket(primary, secondary *float64) (int, bool) {
	score, ok := DifficultyScore(primary, secondary)
	if !ok {
		return 0, false
	}
	bucket := int(math.Round(score))
	if bucket < MinDifficulty {
		bucket = MinDifficulty
	}
	if bucket > MaxDifficulty {
		bucket = MaxDifficulty
	}
	return bucket, true
}

// DifficultyRange возвращает интервал оценки для уровня: [lo, hi), для 10 верхняя граница включена.
func DifficultyRange(level int) (lo, hi float64, inclusiveHi bool) {
	f := float64(level)
	return f - 0.5, f + 0.5, level >= MaxDifficulty
}

// IsValidDifficulty проверяет, что уровень попадает в шкалу.
func IsValidDifficulty(level int) bool {
	return level >= MinDifficulty && level <= MaxDifficulty
}

// TakePercent считает процент взятия. ok=false, если данных нет.
func TakePercent(num, den *int) (float64, bool) {
	if num == nil || den == nil || *num == 0 || *den == 0 {
		return 0, false
	}
	return float64(*num) / float64(*den) * 100.0, true
}
