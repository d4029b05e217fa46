package report

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// Report - отчет о запуске парсера
type Report struct {
	Title  string
	Text   string
	Result *entity.ReplenishResult
}

// New создает отчет по результату запуска
func New(result *entity.ReplenishResult, title string) *Report {
	return &Report{Title: title, Text: FormatReport(result, title), Result: result}
}

// Notifier доставляет отчеты в конкретный канал
type Notifier interface {
	Name() string
	Send(ctx context.Context, r *Report) error
}

// Manager рассылает отчеты всем настроенным получателям
type Manager struct {
	notifiers []Notifier
}

// NewManager создает менеджер отчетов
func NewManager(notifiers ...Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers сообщает, настроен ли хотя бы один получатель
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast отправляет отчет всем получателям и собирает ошибки
func (m *Manager) Broadcast(ctx context.Context, r *Report) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Listener возвращает слушателя координатора для фоновых запусков.
// Отчет отправляется, только если что-то добавлено или источник заблокировал запросы.
func (m *Manager) Listener(skipReasons ...string) func(ctx context.Context, result *entity.ReplenishResult) {
	skip := make(map[string]struct{}, len(skipReasons))
	for _, r := range skipReasons {
		skip[r] = struct{}{}
	}
	return func(ctx context.Context, result *entity.ReplenishResult) {
		if _, ok := skip[result.Reason]; ok || !Worth(result) || !m.HasNotifiers() {
			return
		}
		if err := m.Broadcast(ctx, New(result, TitleBackground)); err != nil {
			log.Printf("[Report] Ошибка отправки отчета: %v", err)
		}
	}
}
