package game

import (
	"context"
	"time"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/domain/repository"
)

// Значения по умолчанию
const (
	DefaultNextDelay       = 2 * time.Second
	DefaultAnalyticsWindow = 24 * time.Hour
	DefaultPoolStatsTTL    = 30 * time.Second
)

// Config содержит настройки игровой логики
type Config struct {
	NextDelay       time.Duration          // Пауза между ответом и следующим вопросом
	Defaults        entity.SelectionFilter // Фильтры по умолчанию для /start без параметров
	AnalyticsWindow time.Duration
	PoolStatsTTL    time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		NextDelay:       DefaultNextDelay,
		Defaults:        entity.SelectionFilter{MinLikes: 1, MinTakePercent: 20},
		AnalyticsWindow: DefaultAnalyticsWindow,
		PoolStatsTTL:    DefaultPoolStatsTTL,
	}
}

// ReplenishTrigger запускает фоновое пополнение пула без ожидания
type ReplenishTrigger interface {
	Trigger(reason string) bool
}

// Dependencies содержит зависимости игрового сервиса
type Dependencies struct {
	QuestionRepo repository.QuestionRepository
	SessionRepo  repository.ChatSessionRepository
	LogRepo      repository.GameSessionLogRepository
	CacheRepo    repository.CacheRepository // может быть nil
	Replenish    ReplenishTrigger
	Config       *Config
}

// StartStatus - итог команды /start
type StartStatus int

const (
	StartQuestion StartStatus = iota
	StartWaiting
	StartAlreadyRunning
	StartReplenishPending
)

// StartOutcome описывает результат запуска игры
type StartOutcome struct {
	Status   StartStatus
	Question *entity.Question
	Filter   entity.SelectionFilter
}

// RevealStatus - итог команды /next
type RevealStatus int

const (
	RevealAnswer RevealStatus = iota
	RevealPending
	RevealWaiting
	RevealIdle
)

// RevealOutcome описывает результат показа ответа
type RevealOutcome struct {
	Status   RevealStatus
	Question *entity.Question
}

// AdvanceStatus - итог перехода к следующему вопросу
type AdvanceStatus int

const (
	AdvanceQuestion AdvanceStatus = iota
	AdvanceWaiting
	AdvanceSkipped
)

// AdvanceOutcome описывает результат перехода к следующему вопросу
type AdvanceOutcome struct {
	Status   AdvanceStatus
	Question *entity.Question
}

// AnswerStatus - итог проверки ответа
type AnswerStatus int

const (
	AnswerIgnored AnswerStatus = iota
	AnswerWrong
	AnswerCorrect
)

// AnswerOutcome описывает результат проверки ответа
type AnswerOutcome struct {
	Status   AnswerStatus
	ChatID   int64 // чат, в котором засчитан ответ
	Question *entity.Question
}

// Resumed - чат, в котором после пополнения появился вопрос
type Resumed struct {
	ChatID   int64
	Question *entity.Question
}

// AdvanceFunc выполняется по таймеру автоперехода
type AdvanceFunc func(ctx context.Context)
