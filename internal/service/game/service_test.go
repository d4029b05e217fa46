package game

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
	"github.com/yourusername/chgk-bot/internal/service/pool"
)

func TestService_StartScenario(t *testing.T) {
	// Arrange
	store := newMemStore(question(1, 6), question(2, 8))
	trigger := new(MockReplenishTrigger)
	svc := newTestService(store, trigger)
	defer svc.Close()
	ctx := context.Background()
	const chatID = int64(-1001)

	// Act: старт
	start, err := svc.Start(ctx, chatID, entity.SelectionFilter{MinLikes: 1})
	require.NoError(t, err)
	require.Equal(t, StartQuestion, start.Status)
	require.NotNil(t, start.Question)
	first := start.Question.ID

	published, err := svc.MarkQuestionPublished(ctx, chatID, first, 501)
	require.NoError(t, err)

	// Assert
	assert.True(t, published)
	sess := store.session(chatID)
	assert.Equal(t, entity.SessionStateQuestionActive, sess.State)
	assert.Equal(t, 1, sess.SessionAskedCount)
	require.NotNil(t, sess.CurrentQuestionMessageID)
	assert.Equal(t, 501, *sess.CurrentQuestionMessageID)

	analytics, err := svc.Analytics(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), analytics.Sessions, "первая доставка начинает игру")

	// Act: /next
	reveal, err := svc.Reveal(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, RevealAnswer, reveal.Status)
	assert.Equal(t, first, reveal.Question.ID)
	assert.Equal(t, entity.SessionStateAnswerPendingNext, store.session(chatID).State)

	advance, err := svc.Advance(ctx, chatID)
	require.NoError(t, err)
	require.Equal(t, AdvanceQuestion, advance.Status)
	assert.NotEqual(t, first, advance.Question.ID)
	_, err = svc.MarkQuestionPublished(ctx, chatID, advance.Question.ID, 502)
	require.NoError(t, err)

	// Act: /stop
	stats, err := svc.Stop(ctx, chatID)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Asked)
	assert.Equal(t, 0, stats.Taken)
	require.NotNil(t, stats.ComplexityPrimaryAvg)
	assert.InDelta(t, 7.0, *stats.ComplexityPrimaryAvg, 1e-9)
	assert.Nil(t, store.session(chatID).CurrentQuestionID)
	assert.Equal(t, entity.SessionStateIdle, store.session(chatID).State)
	assert.Equal(t, 1, store.session(chatID).LockVersion)
	assert.Len(t, store.logs, 1)
	trigger.AssertNotCalled(t, "Trigger", mock.Anything)
}

func TestService_NeverRepeatsQuestionInChat(t *testing.T) {
	// Arrange
	store := newMemStore(question(1, 5))
	trigger := new(MockReplenishTrigger)
	trigger.On("Trigger", pool.ReasonEmpty).Return(true).Once()
	svc := newTestService(store, trigger)
	defer svc.Close()
	ctx := context.Background()

	// Act
	start, err := svc.Start(ctx, 10, entity.SelectionFilter{})
	require.NoError(t, err)
	_, err = svc.MarkQuestionPublished(ctx, 10, start.Question.ID, 1)
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, 10)
	require.NoError(t, err)
	advance, err := svc.Advance(ctx, 10)
	require.NoError(t, err)

	other, err := svc.Start(ctx, 20, entity.SelectionFilter{})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, AdvanceWaiting, advance.Status)
	assert.Equal(t, entity.SessionStateWaitingReplenish, store.session(10).State)
	assert.Nil(t, store.session(10).CurrentQuestionID)
	require.Equal(t, StartQuestion, other.Status, "другой чат может получить этот вопрос")
	assert.Equal(t, int64(1), other.Question.ID)
	trigger.AssertExpectations(t)
}

func TestService_EmptyPoolWaitsForReplenish(t *testing.T) {
	// Arrange
	store := newMemStore()
	trigger := new(MockReplenishTrigger)
	trigger.On("Trigger", pool.ReasonEmpty).Return(true).Once()
	svc := newTestService(store, trigger)
	defer svc.Close()
	ctx := context.Background()

	// Act
	start, err := svc.Start(ctx, 5, entity.SelectionFilter{Difficulty: ip(3)})
	require.NoError(t, err)
	again, err := svc.Start(ctx, 5, entity.SelectionFilter{})
	require.NoError(t, err)
	reveal, err := svc.Reveal(ctx, 5)
	require.NoError(t, err)

	stillWaiting, err := svc.Resume(ctx, 5)
	require.NoError(t, err)

	store.add(question(7, 9)) // другой уровень не подходит
	store.add(question(8, 3.2))
	resumed, err := svc.ResumeWaiting(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StartWaiting, start.Status)
	assert.Equal(t, StartReplenishPending, again.Status, "повторный старт при ожидании отклоняется")
	assert.Equal(t, RevealWaiting, reveal.Status)
	assert.Equal(t, AdvanceWaiting, stillWaiting.Status)
	require.Len(t, resumed, 1)
	assert.Equal(t, int64(5), resumed[0].ChatID)
	assert.Equal(t, int64(8), resumed[0].Question.ID)
	assert.Equal(t, entity.SessionStateQuestionActive, store.session(5).State)
	trigger.AssertExpectations(t)
}

func TestService_StartRejectedWhileRunning(t *testing.T) {
	store := newMemStore(question(1, 5), question(2, 5))
	svc := newTestService(store, new(MockReplenishTrigger))
	defer svc.Close()
	ctx := context.Background()

	_, err := svc.Start(ctx, 1, entity.SelectionFilter{})
	require.NoError(t, err)
	again, err := svc.Start(ctx, 1, entity.SelectionFilter{})

	require.NoError(t, err)
	assert.Equal(t, StartAlreadyRunning, again.Status)
}

func TestService_StartInvalidFilter(t *testing.T) {
	svc := newTestService(newMemStore(), new(MockReplenishTrigger))
	defer svc.Close()

	_, err := svc.Start(context.Background(), 1, entity.SelectionFilter{Difficulty: ip(11)})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = svc.Start(context.Background(), 1, entity.SelectionFilter{MinLikes: 1, MinTakePercent: math.NaN()})
	assert.True(t, errors.Is(err, apperrors.ErrValidation), "NaN в фильтре отклоняется до обращения к пулу")
}

func TestService_ConcurrentNextAdvancesOnce(t *testing.T) {
	// Arrange
	store := newMemStore(question(1, 5), question(2, 5), question(3, 5))
	svc := newTestService(store, new(MockReplenishTrigger))
	defer svc.Close()
	ctx := context.Background()
	start, err := svc.Start(ctx, 1, entity.SelectionFilter{})
	require.NoError(t, err)
	_, err = svc.MarkQuestionPublished(ctx, 1, start.Question.ID, 10)
	require.NoError(t, err)

	// Act
	var answers, pending int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Reveal(ctx, 1)
			if !assert.NoError(t, err) {
				return
			}
			switch out.Status {
			case RevealAnswer:
				atomic.AddInt32(&answers, 1)
			case RevealPending:
				atomic.AddInt32(&pending, 1)
			}
		}()
	}
	wg.Wait()

	var advanced int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Advance(ctx, 1)
			if assert.NoError(t, err) && out.Status == AdvanceQuestion {
				atomic.AddInt32(&advanced, 1)
			}
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, int32(1), answers)
	assert.Equal(t, int32(19), pending)
	assert.Equal(t, int32(1), advanced, "следующий вопрос выбирается один раз")
}

func TestService_SubmitAnswer(t *testing.T) {
	// Arrange
	store := newMemStore(question(1, 5))
	svc := newTestService(store, new(MockReplenishTrigger))
	defer svc.Close()
	ctx := context.Background()
	_, err := svc.Start(ctx, 100, entity.SelectionFilter{})
	require.NoError(t, err)

	// Act
	ignored, err := svc.SubmitAnswer(ctx, 999, 0, "Пушкин")
	require.NoError(t, err)
	wrong, err := svc.SubmitAnswer(ctx, 100, 0, "Лермонтов")
	require.NoError(t, err)
	correct, err := svc.SubmitAnswer(ctx, 100, 0, "  александр ПУШКИН! ")
	require.NoError(t, err)
	late, err := svc.SubmitAnswer(ctx, 100, 0, "Пушкин")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, AnswerIgnored, ignored.Status)
	assert.Equal(t, AnswerWrong, wrong.Status)
	assert.Equal(t, AnswerCorrect, correct.Status)
	assert.Equal(t, int64(100), correct.ChatID)
	assert.Equal(t, AnswerIgnored, late.Status, "после правильного ответа вопрос закрыт")
	sess := store.session(100)
	assert.Equal(t, 1, sess.SessionTakenCount)
	assert.Equal(t, entity.SessionStateAnswerPendingNext, sess.State)
}

func TestService_SubmitAnswerFallsBackToSenderChat(t *testing.T) {
	store := newMemStore(question(1, 5))
	svc := newTestService(store, new(MockReplenishTrigger))
	defer svc.Close()
	ctx := context.Background()
	_, err := svc.Start(ctx, -200, entity.SelectionFilter{})
	require.NoError(t, err)

	out, err := svc.SubmitAnswer(ctx, -300, -200, "пушкин")

	require.NoError(t, err)
	assert.Equal(t, AnswerCorrect, out.Status)
	assert.Equal(t, int64(-200), out.ChatID)
}

func TestService_MarkQuestionPublishedTwice(t *testing.T) {
	store := newMemStore(question(1, 5))
	svc := newTestService(store, new(MockReplenishTrigger))
	defer svc.Close()
	ctx := context.Background()
	start, err := svc.Start(ctx, 1, entity.SelectionFilter{})
	require.NoError(t, err)

	first, err := svc.MarkQuestionPublished(ctx, 1, start.Question.ID, 5)
	require.NoError(t, err)
	second, err := svc.MarkQuestionPublished(ctx, 1, start.Question.ID, 6)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, store.session(1).SessionAskedCount)
}

func TestService_AbortDeliveryKeepsQuestionAvailable(t *testing.T) {
	// Arrange
	store := newMemStore(question(1, 5))
	svc := newTestService(store, new(MockReplenishTrigger))
	defer svc.Close()
	ctx := context.Background()
	start, err := svc.Start(ctx, 1, entity.SelectionFilter{Difficulty: ip(5)})
	require.NoError(t, err)

	// Act
	err = svc.AbortDelivery(ctx, 1, start.Question.ID)

	// Assert
	require.NoError(t, err)
	sess := store.session(1)
	assert.Equal(t, entity.SessionStateIdle, sess.State)
	assert.Nil(t, sess.SelectedDifficulty, "фильтры сброшены к умолчаниям")
	assert.False(t, store.used(1, start.Question.ID))

	restart, err := svc.Start(ctx, 1, entity.SelectionFilter{})
	require.NoError(t, err)
	assert.Equal(t, StartQuestion, restart.Status)
}

func TestService_StopCancelsPendingAdvance(t *testing.T) {
	// Arrange
	store := newMemStore(question(1, 5), question(2, 5))
	svc := newTestService(store, new(MockReplenishTrigger))
	svc.config.NextDelay = 200 * time.Millisecond
	defer svc.Close()
	ctx := context.Background()
	start, err := svc.Start(ctx, 1, entity.SelectionFilter{})
	require.NoError(t, err)
	_, err = svc.MarkQuestionPublished(ctx, 1, start.Question.ID, 1)
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, 1)
	require.NoError(t, err)

	var fired int32
	svc.ScheduleAdvance(1, func(ctx context.Context) {
		out, err := svc.Advance(ctx, 1)
		if err == nil && out.Status == AdvanceQuestion {
			atomic.AddInt32(&fired, 1)
		}
	})

	// Act
	_, err = svc.Stop(ctx, 1)
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)

	// Assert
	assert.Zero(t, atomic.LoadInt32(&fired))
	assert.Equal(t, entity.SessionStateIdle, store.session(1).State)
	assert.False(t, svc.timers.Pending(1))
}

func TestService_ScheduledAdvanceRuns(t *testing.T) {
	store := newMemStore(question(1, 5), question(2, 5))
	svc := newTestService(store, new(MockReplenishTrigger))
	defer svc.Close()
	ctx := context.Background()
	start, err := svc.Start(ctx, 1, entity.SelectionFilter{})
	require.NoError(t, err)
	_, err = svc.MarkQuestionPublished(ctx, 1, start.Question.ID, 1)
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, 1)
	require.NoError(t, err)

	done := make(chan *AdvanceOutcome, 1)
	svc.ScheduleAdvance(1, func(ctx context.Context) {
		out, err := svc.Advance(ctx, 1)
		assert.NoError(t, err)
		done <- out
	})

	select {
	case out := <-done:
		assert.Equal(t, AdvanceQuestion, out.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("таймер не сработал")
	}
}

func TestService_PoolStatsCached(t *testing.T) {
	store := newMemStore(question(1, 5))
	cache := &countingCache{}
	cfg := DefaultConfig()
	svc := NewService(&Dependencies{QuestionRepo: store, SessionRepo: store, LogRepo: store, CacheRepo: cache, Config: cfg})
	defer svc.Close()
	ctx := context.Background()

	first, err := svc.PoolStats(ctx)
	require.NoError(t, err)
	store.add(question(2, 5))
	second, err := svc.PoolStats(ctx)
	require.NoError(t, err)
	svc.InvalidatePoolStats(ctx)
	third, err := svc.PoolStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Total)
	assert.Equal(t, int64(1), second.Total, "значение из кеша")
	assert.Equal(t, int64(2), third.Total)
}
