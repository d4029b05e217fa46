package game

import (
	"context"
	"sync"
	"time"
)

// Timers хранит не больше одной отложенной задачи на чат.
// Новая задача отменяет предыдущую; отмененная задача не выполняется.
type Timers struct {
	mu      sync.Mutex
	pending map[int64]*pendingTask
	seq     uint64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type pendingTask struct {
	id     uint64
	cancel context.CancelFunc
}

// NewTimers создает реестр таймеров
func NewTimers() *Timers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Timers{
		pending: make(map[int64]*pendingTask),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Schedule планирует fn через delay, заменяя уже запланированную задачу чата
func (t *Timers) Schedule(chatID int64, delay time.Duration, fn AdvanceFunc) {
	ctx, cancel := context.WithCancel(t.baseCtx)

	t.mu.Lock()
	if prev, ok := t.pending[chatID]; ok {
		prev.cancel()
	}
	t.seq++
	id := t.seq
	t.pending[chatID] = &pendingTask{id: id, cancel: cancel}
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.finish(chatID, id, cancel)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	}()
}

// finish убирает задачу из реестра, если ее не заменили
func (t *Timers) finish(chatID int64, id uint64, cancel context.CancelFunc) {
	t.mu.Lock()
	if cur, ok := t.pending[chatID]; ok && cur.id == id {
		delete(t.pending, chatID)
	}
	t.mu.Unlock()
	cancel()
}

// Cancel отменяет задачу чата, если она есть
func (t *Timers) Cancel(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.pending[chatID]; ok {
		cur.cancel()
		delete(t.pending, chatID)
	}
}

// Pending сообщает, есть ли у чата запланированная задача
func (t *Timers) Pending(chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[chatID]
	return ok
}

// Close отменяет все задачи и дожидается их завершения
func (t *Timers) Close() {
	t.cancel()
	t.wg.Wait()
}
