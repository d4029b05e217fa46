package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
	"github.com/yourusername/chgk-bot/internal/pkg/matcher"
	"github.com/yourusername/chgk-bot/internal/service/pool"
)

const poolStatsKey = "pool:stats"

// Service управляет игровыми сессиями чатов.
// Все изменения сессии одного чата выполняются под мьютексом этого чата.
type Service struct {
	deps   *Dependencies
	config *Config
	locks  *chatLocks
	timers *Timers
	now    func() time.Time
}

// NewService создает игровой сервис
func NewService(deps *Dependencies) *Service {
	cfg := deps.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		deps:   deps,
		config: cfg,
		locks:  newChatLocks(),
		timers: NewTimers(),
		now:    time.Now,
	}
}

// Defaults возвращает фильтры по умолчанию
func (s *Service) Defaults() entity.SelectionFilter {
	return s.config.Defaults
}

// Close останавливает таймеры автоперехода
func (s *Service) Close() {
	s.timers.Close()
}

// Start начинает игру в чате
func (s *Service) Start(ctx context.Context, chatID int64, filter entity.SelectionFilter) (*StartOutcome, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	unlock := s.locks.lock(chatID)
	defer unlock()

	session, err := s.deps.SessionRepo.GetOrCreate(ctx, chatID, s.config.Defaults)
	if err != nil {
		return nil, err
	}

	switch session.State {
	case entity.SessionStateQuestionActive, entity.SessionStateAnswerPendingNext:
		return &StartOutcome{Status: StartAlreadyRunning, Filter: session.Filter()}, nil
	case entity.SessionStateWaitingReplenish:
		return &StartOutcome{Status: StartReplenishPending, Filter: session.Filter()}, nil
	}

	s.timers.Cancel(chatID)
	session.BeginGame(filter)

	question, err := s.pick(ctx, chatID, filter)
	if err != nil {
		return nil, err
	}
	if question == nil {
		session.State = entity.SessionStateWaitingReplenish
		if err := s.deps.SessionRepo.Save(ctx, session); err != nil {
			return nil, err
		}
		s.triggerReplenish(chatID)
		return &StartOutcome{Status: StartWaiting, Filter: filter}, nil
	}

	session.SetQuestion(question.ID)
	if err := s.deps.SessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	log.Printf("[Game] Чат %d: игра начата, вопрос %d", chatID, question.ID)
	return &StartOutcome{Status: StartQuestion, Question: question, Filter: filter}, nil
}

// Reveal показывает ответ на текущий вопрос и переводит чат в ожидание следующего
func (s *Service) Reveal(ctx context.Context, chatID int64) (*RevealOutcome, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	session, err := s.deps.SessionRepo.GetOrCreate(ctx, chatID, s.config.Defaults)
	if err != nil {
		return nil, err
	}

	switch session.State {
	case entity.SessionStateAnswerPendingNext:
		return &RevealOutcome{Status: RevealPending}, nil
	case entity.SessionStateWaitingReplenish:
		return &RevealOutcome{Status: RevealWaiting}, nil
	case entity.SessionStateIdle:
		return &RevealOutcome{Status: RevealIdle}, nil
	}

	s.timers.Cancel(chatID)
	var question *entity.Question
	if session.CurrentQuestionID != nil {
		question, err = s.deps.QuestionRepo.GetByID(ctx, *session.CurrentQuestionID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	session.State = entity.SessionStateAnswerPendingNext
	if err := s.deps.SessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	return &RevealOutcome{Status: RevealAnswer, Question: question}, nil
}

// ScheduleAdvance планирует fn через NextDelay, отменяя предыдущий таймер чата
func (s *Service) ScheduleAdvance(chatID int64, fn AdvanceFunc) {
	s.timers.Schedule(chatID, s.config.NextDelay, fn)
}

// Advance выбирает следующий вопрос для чата в состоянии ANSWER_PENDING_NEXT.
// Отмененный ctx или другое состояние означают, что переход уже не нужен.
func (s *Service) Advance(ctx context.Context, chatID int64) (*AdvanceOutcome, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	if ctx.Err() != nil {
		return &AdvanceOutcome{Status: AdvanceSkipped}, nil
	}

	session, err := s.deps.SessionRepo.GetOrCreate(ctx, chatID, s.config.Defaults)
	if err != nil {
		return nil, err
	}
	if session.State != entity.SessionStateAnswerPendingNext {
		return &AdvanceOutcome{Status: AdvanceSkipped}, nil
	}

	question, err := s.pick(ctx, chatID, session.Filter())
	if err != nil {
		return nil, err
	}
	if question == nil {
		session.ClearQuestion()
		session.State = entity.SessionStateWaitingReplenish
		if err := s.deps.SessionRepo.Save(ctx, session); err != nil {
			return nil, err
		}
		s.triggerReplenish(chatID)
		return &AdvanceOutcome{Status: AdvanceWaiting}, nil
	}

	session.SetQuestion(question.ID)
	if err := s.deps.SessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	return &AdvanceOutcome{Status: AdvanceQuestion, Question: question}, nil
}

// Resume пробует продолжить игру в чате, ожидающем пополнения
func (s *Service) Resume(ctx context.Context, chatID int64) (*AdvanceOutcome, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	session, err := s.deps.SessionRepo.GetOrCreate(ctx, chatID, s.config.Defaults)
	if err != nil {
		return nil, err
	}
	if session.State != entity.SessionStateWaitingReplenish {
		return &AdvanceOutcome{Status: AdvanceSkipped}, nil
	}

	question, err := s.pick(ctx, chatID, session.Filter())
	if err != nil {
		return nil, err
	}
	if question == nil {
		return &AdvanceOutcome{Status: AdvanceWaiting}, nil
	}

	session.SetQuestion(question.ID)
	if err := s.deps.SessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	log.Printf("[Game] Чат %d: игра продолжена после пополнения", chatID)
	return &AdvanceOutcome{Status: AdvanceQuestion, Question: question}, nil
}

// ResumeWaiting пробует продолжить все чаты в WAITING_REPLENISH
func (s *Service) ResumeWaiting(ctx context.Context) ([]Resumed, error) {
	sessions, err := s.deps.SessionRepo.ListByState(ctx, entity.SessionStateWaitingReplenish)
	if err != nil {
		return nil, fmt.Errorf("list waiting sessions: %w", err)
	}

	var resumed []Resumed
	var errs []error
	for _, session := range sessions {
		out, err := s.Resume(ctx, session.ChatID)
		if err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", session.ChatID, err))
			continue
		}
		if out.Status == AdvanceQuestion {
			resumed = append(resumed, Resumed{ChatID: session.ChatID, Question: out.Question})
		}
	}
	return resumed, errors.Join(errs...)
}

// SubmitAnswer проверяет ответ сначала в чате, затем в чате отправителя (анонимные админы, каналы)
func (s *Service) SubmitAnswer(ctx context.Context, chatID, senderChatID int64, text string) (*AnswerOutcome, error) {
	out, err := s.submitAnswer(ctx, chatID, text)
	if err != nil || out.Status != AnswerIgnored {
		return out, err
	}
	if senderChatID == 0 || senderChatID == chatID {
		return out, nil
	}
	return s.submitAnswer(ctx, senderChatID, text)
}

func (s *Service) submitAnswer(ctx context.Context, chatID int64, text string) (*AnswerOutcome, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	session, err := s.deps.SessionRepo.GetOrCreate(ctx, chatID, s.config.Defaults)
	if err != nil {
		return nil, err
	}
	if session.State != entity.SessionStateQuestionActive || session.CurrentQuestionID == nil {
		return &AnswerOutcome{Status: AnswerIgnored, ChatID: chatID}, nil
	}

	question, err := s.deps.QuestionRepo.GetByID(ctx, *session.CurrentQuestionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &AnswerOutcome{Status: AnswerIgnored, ChatID: chatID}, nil
		}
		return nil, err
	}

	if !matcher.IsCorrect(text, question.Answer, question.Zachet) {
		return &AnswerOutcome{Status: AnswerWrong, ChatID: chatID, Question: question}, nil
	}

	s.timers.Cancel(chatID)
	session.SessionTakenCount++
	session.State = entity.SessionStateAnswerPendingNext
	if err := s.deps.SessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	return &AnswerOutcome{Status: AnswerCorrect, ChatID: chatID, Question: question}, nil
}

// MarkQuestionPublished фиксирует, что вопрос отправлен в чат.
// Возвращает false, если вопрос уже был учтен для этого чата.
func (s *Service) MarkQuestionPublished(ctx context.Context, chatID, questionID int64, messageID int) (bool, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	return s.deps.SessionRepo.RecordDelivery(ctx, chatID, questionID,
		func(session *entity.ChatSession, question *entity.Question) *entity.GameSessionLog {
			if !session.IsCurrent(questionID) {
				return nil
			}
			if !session.ApplyDelivery(question, messageID) {
				return nil
			}
			filter := session.Filter()
			return &entity.GameSessionLog{
				ChatID:         chatID,
				StartedAt:      s.now().UTC(),
				Difficulty:     filter.Difficulty,
				MinLikes:       filter.MinLikes,
				MinTakePercent: filter.MinTakePercent,
			}
		})
}

// AbortDelivery сбрасывает сессию в IDLE, если вопрос не удалось отправить
func (s *Service) AbortDelivery(ctx context.Context, chatID, questionID int64) error {
	unlock := s.locks.lock(chatID)
	defer unlock()

	session, err := s.deps.SessionRepo.GetOrCreate(ctx, chatID, s.config.Defaults)
	if err != nil {
		return err
	}
	if !session.IsCurrent(questionID) {
		return nil
	}
	s.timers.Cancel(chatID)
	session.Reset(s.config.Defaults)
	log.Printf("[Game] Чат %d: отправка вопроса %d не удалась, игра остановлена", chatID, questionID)
	return s.deps.SessionRepo.Save(ctx, session)
}

// Stop завершает игру и возвращает ее статистику
func (s *Service) Stop(ctx context.Context, chatID int64) (entity.SessionStats, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	s.timers.Cancel(chatID)
	session, err := s.deps.SessionRepo.GetOrCreate(ctx, chatID, s.config.Defaults)
	if err != nil {
		return entity.SessionStats{}, err
	}
	stats := session.Stats()
	session.Reset(s.config.Defaults)
	if err := s.deps.SessionRepo.Save(ctx, session); err != nil {
		return entity.SessionStats{}, err
	}
	return stats, nil
}

// pick выбирает вопрос для чата; nil без ошибки, если подходящих нет
func (s *Service) pick(ctx context.Context, chatID int64, filter entity.SelectionFilter) (*entity.Question, error) {
	question, err := s.deps.QuestionRepo.PickRandom(ctx, chatID, filter)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return question, nil
}

func (s *Service) triggerReplenish(chatID int64) {
	if s.deps.Replenish == nil {
		return
	}
	if s.deps.Replenish.Trigger(pool.ReasonEmpty) {
		log.Printf("[Game] Чат %d: нет подходящих вопросов, запущено пополнение", chatID)
	}
}
