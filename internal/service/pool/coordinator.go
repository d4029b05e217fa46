package pool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/domain/repository"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
	"github.com/yourusername/chgk-bot/internal/service/crawler"
)

// Причины запуска пополнения
const (
	ReasonSchedule = "schedule"
	ReasonStartup  = "startup"
	ReasonEmpty    = "empty_pool"
	ReasonManual   = "manual"
	ReasonCLI      = "cli"
)

// LastResultKey - ключ кеша с итогом последнего запуска
const LastResultKey = "replenish:last"

// ErrReplenishInProgress возвращается, когда пополнение уже выполняется
var ErrReplenishInProgress = fmt.Errorf("replenish already in progress: %w", apperrors.ErrConflict)

// Replenisher выполняет один запуск пополнения
type Replenisher interface {
	Replenish(ctx context.Context, opts crawler.Options) *entity.ReplenishResult
	ResetCursor(ctx context.Context, cursor int64) error
}

// Listener получает итог каждого завершенного запуска
type Listener func(ctx context.Context, result *entity.ReplenishResult)

// Config содержит параметры запусков
type Config struct {
	Options  crawler.Options
	Interval time.Duration
	// RunTimeout ограничивает фоновый запуск
	RunTimeout time.Duration
}

// Coordinator гарантирует, что в процессе выполняется не больше одного пополнения
type Coordinator struct {
	replenisher Replenisher
	cache       repository.CacheRepository
	cfg         Config

	gate chan struct{}

	mu        sync.RWMutex
	listeners []Listener

	// baseCtx живет до Close; фоновые запуски не зависят от контекста запроса
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewCoordinator создает координатор пополнения. cache может быть nil.
func NewCoordinator(replenisher Replenisher, cache repository.CacheRepository, cfg Config) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		replenisher: replenisher,
		cache:       cache,
		cfg:         cfg,
		gate:        make(chan struct{}, 1),
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// OnComplete регистрирует слушателя завершенных запусков
func (c *Coordinator) OnComplete(listener Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

func (c *Coordinator) tryAcquire() bool {
	select {
	case c.gate <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Coordinator) release() {
	<-c.gate
}

// Busy сообщает, выполняется ли сейчас пополнение
func (c *Coordinator) Busy() bool {
	return len(c.gate) > 0
}

// Trigger запускает пополнение в фоне, если оно еще не идет. Никогда не блокирует.
func (c *Coordinator) Trigger(reason string) bool {
	if !c.tryAcquire() {
		return false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release()

		ctx := c.baseCtx
		if c.cfg.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.RunTimeout)
			defer cancel()
		}
		c.run(ctx, reason, c.cfg.Options)
	}()
	return true
}

// Ensure выполняет пополнение синхронно. Если пришлось ждать чужой запуск,
// возвращает пустой результат: пул уже пополнял кто-то другой.
func (c *Coordinator) Ensure(ctx context.Context) (*entity.ReplenishResult, error) {
	if c.tryAcquire() {
		defer c.release()
		return c.run(ctx, ReasonEmpty, c.cfg.Options), nil
	}

	select {
	case c.gate <- struct{}{}:
		c.release()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	result := entity.NewReplenishResult()
	result.Reason = ReasonEmpty
	return result, nil
}

// RunManual выполняет ручной запуск, при необходимости переставляя курсор.
// Возвращает ErrReplenishInProgress, если пополнение уже идет.
func (c *Coordinator) RunManual(ctx context.Context, reason string, cursorOverride *int64, maxBatches int) (*entity.ReplenishResult, error) {
	if !c.tryAcquire() {
		return nil, ErrReplenishInProgress
	}
	defer c.release()

	if cursorOverride != nil {
		if *cursorOverride < 0 {
			return nil, fmt.Errorf("%w: cursor must be non-negative", apperrors.ErrValidation)
		}
		if err := c.replenisher.ResetCursor(ctx, *cursorOverride); err != nil {
			return nil, fmt.Errorf("reset cursor: %w", err)
		}
		log.Printf("[Coordinator] Курсор переставлен на %d", *cursorOverride)
	}

	opts := c.cfg.Options
	if maxBatches > 0 {
		opts.MaxBatches = maxBatches
	}
	if reason == "" {
		reason = ReasonManual
	}
	return c.run(ctx, reason, opts), nil
}

// Run периодически запускает пополнение до отмены ctx. Interval 0 отключает цикл.
func (c *Coordinator) Run(ctx context.Context) {
	if c.cfg.Interval <= 0 {
		log.Println("[Coordinator] Фоновое пополнение отключено")
		return
	}
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !c.Trigger(ReasonSchedule) {
				log.Println("[Coordinator] Пропуск планового запуска: пополнение уже идет")
			}
		case <-ctx.Done():
			return
		}
	}
}

// LastResult возвращает итог последнего запуска из кеша
func (c *Coordinator) LastResult(ctx context.Context) (*entity.ReplenishResult, error) {
	if c.cache == nil {
		return nil, apperrors.ErrNotFound
	}
	var result entity.ReplenishResult
	if err := c.cache.GetJSON(ctx, LastResultKey, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close отменяет фоновые запуски и дожидается их завершения
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) run(ctx context.Context, reason string, opts crawler.Options) *entity.ReplenishResult {
	runID := uuid.NewString()
	log.Printf("[Coordinator] Запуск пополнения %s (причина: %s)", runID, reason)

	result := c.replenisher.Replenish(ctx, opts)
	result.RunID = runID
	result.Reason = reason

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, LastResultKey, result, 0); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Coordinator] Не удалось сохранить итог запуска: %v", err)
		}
	}

	c.mu.RLock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()

	// Слушатели получают собственный контекст: запуск мог завершиться по таймауту
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	for _, l := range listeners {
		l(notifyCtx, result)
	}
	return result
}
