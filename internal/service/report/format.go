package report

import (
	"fmt"
	"strings"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// Заголовки отчетов
const (
	TitleCLI        = "Отчет парсера (ручной CLI запуск)"
	TitleManual     = "Отчет парсера (ручной запуск)"
	TitleBackground = "Отчет парсера (фоновое пополнение)"
)

// FormatReport формирует текстовый отчет о запуске парсера
func FormatReport(result *entity.ReplenishResult, title string) string {
	levels := make([]string, 0, entity.MaxDifficulty)
	for level := entity.MinDifficulty; level <= entity.MaxDifficulty; level++ {
		levels = append(levels, fmt.Sprintf("%d:%d", level, result.AddedByLevel[level]))
	}
	blocked := "нет"
	if result.Blocked {
		blocked = "да"
	}

	var sb strings.Builder
	sb.WriteString(title + "\n")
	fmt.Fprintf(&sb, "Время: %.2f сек\n", result.Duration.Seconds())
	fmt.Fprintf(&sb, "Добавлено вопросов: %d\n", result.AddedTotal)
	fmt.Fprintf(&sb, "Паков проверено: %d\n", result.PacksChecked)
	fmt.Fprintf(&sb, "Паков найдено: %d\n", result.PacksFound)
	fmt.Fprintf(&sb, "Паков не найдено (404/пусто): %d\n", result.PacksNotFound)
	fmt.Fprintf(&sb, "Паков с HTTP-ошибками: %d\n", result.PacksFailedHTTP)
	fmt.Fprintf(&sb, "Батчей: %d\n", result.Batches)
	fmt.Fprintf(&sb, "Курсор: %d -> %d\n", result.CursorBefore, result.CursorAfter)
	fmt.Fprintf(&sb, "Сетевые ошибки: %d\n", result.NetworkErrors)
	fmt.Fprintf(&sb, "Сетевые ретраи: %d\n", result.NetworkRetries)
	fmt.Fprintf(&sb, "Ошибки парсера: %d\n", result.ParserErrors)
	fmt.Fprintf(&sb, "Блокировка (403/429): %s\n", blocked)
	fmt.Fprintf(&sb, "Вопросов найдено всего: %d\n", result.QuestionsSeen)
	fmt.Fprintf(&sb, "Вопросов отсечено всего: %d\n", result.QuestionsExcluded())
	fmt.Fprintf(&sb, "Отсечено как уже существующие: %d\n", result.QuestionsExisting)
	fmt.Fprintf(&sb, "Отсечено по фильтру лайков/рейтинга: %d\n", result.QuestionsFilteredLikes)
	fmt.Fprintf(&sb, "Отсечено без валидной сложности: %d\n", result.QuestionsFilteredBucketMissing)
	fmt.Fprintf(&sb, "Добавлено по уровням: %s", strings.Join(levels, " | "))
	return sb.String()
}

// Subject возвращает тему письма с отчетом
func Subject(result *entity.ReplenishResult) string {
	if result.Blocked {
		return fmt.Sprintf("ЧГК-бот: парсер заблокирован, добавлено %d", result.AddedTotal)
	}
	return fmt.Sprintf("ЧГК-бот: добавлено вопросов %d", result.AddedTotal)
}

// Worth сообщает, стоит ли отправлять отчет о фоновом запуске
func Worth(result *entity.ReplenishResult) bool {
	return result.AddedTotal > 0 || result.Blocked
}
