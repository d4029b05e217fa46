package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// Тексты ответов бота
const (
	msgUsageStart     = "Использование: /start [сложность 1-10|0|-] [мин. лайков] [мин. % взятия]. Пример: /start 6 1 30"
	msgUsageReplenish = "Использование: /replenish [курсор] [число батчей]. Пример: /replenish 5000 2"
	msgAlreadyRunning = "Игра уже запущена. Используй /next или /stop."
	msgReplenishWait  = "Пул пополняется, игра продолжится автоматически. Используй /stop, чтобы остановить."
	msgStartWaiting   = "Нет подходящих вопросов в пуле. Запущено пополнение, вопрос придет автоматически."
	msgPoolExhausted  = "Подходящие вопросы закончились. Пул пополняется, игра продолжится автоматически."
	msgNoActive       = "Сейчас нет активного вопроса. Используй /start."
	msgNextOnTheWay   = "Следующий вопрос уже в пути."
	msgStillWaiting   = "Вопросов пока нет, пул пополняется. Попробуй чуть позже."
	msgAck            = "Команда получена, обрабатываю..."
	msgAdminOnly      = "Команда доступна только администратору."
	msgInProgress     = "Пополнение уже выполняется, попробуй позже."
	msgDeliveryFailed = "Не удалось отправить вопрос. Игра остановлена, попробуй /start."
	msgInternalError  = "Ошибка при обработке команды. Попробуй еще раз через несколько секунд."
	defaultPlayerName = "Игрок"
	maxCaptionLength  = 1024
)

func formatFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatQuestion формирует HTML-карточку вопроса
func FormatQuestion(q *entity.Question) string {
	lines := []string{
		fmt.Sprintf("<b>Вопрос #%d</b>", q.NumberInPack),
		html.EscapeString(q.Text),
	}
	if q.RazdatkaText != "" {
		lines = append(lines, "", "<b>Раздатка:</b>", "<pre>"+html.EscapeString(q.RazdatkaText)+"</pre>")
	}
	dislikes := "н/д"
	if q.Dislikes != nil {
		dislikes = strconv.Itoa(*q.Dislikes)
	}
	lines = append(lines, "", fmt.Sprintf("👍 %d | 👎 %s", q.Likes, dislikes))
	if q.HasComplexity() {
		lines = append(lines, fmt.Sprintf("Сложность пака: %s · %s",
			formatFloat(q.PackComplexityPrimary), formatFloat(q.PackComplexitySecondary)))
	}
	if q.SourceURL != "" {
		lines = append(lines, "Источник вопроса: "+html.EscapeString(q.SourceURL))
	}
	return strings.Join(lines, "\n")
}

// FormatAnswer формирует HTML-карточку ответа
func FormatAnswer(q *entity.Question) string {
	answer := q.Answer
	if answer == "" {
		answer = "—"
	}
	lines := []string{"<b>Ответ:</b> " + html.EscapeString(answer)}
	if q.Zachet != "" {
		lines = append(lines, "<b>Зачет:</b> "+html.EscapeString(q.Zachet))
	}
	if q.Comment != "" {
		lines = append(lines, "<b>Комментарий:</b> "+html.EscapeString(q.Comment))
	}
	if q.Sources != "" {
		lines = append(lines, "<b>Источники:</b> "+html.EscapeString(q.Sources))
	}
	if q.TakeNum != nil && q.TakeDen != nil && *q.TakeNum > 0 && *q.TakeDen > 0 {
		percent := 0.0
		if q.TakePercent != nil {
			percent = *q.TakePercent
		}
		lines = append(lines, fmt.Sprintf("<b>Взяли:</b> %d/%d · %.2f%%", *q.TakeNum, *q.TakeDen, percent))
	}
	return strings.Join(lines, "\n")
}

// FormatStop формирует итоги игры
func FormatStop(stats entity.SessionStats) string {
	avg := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f", *v)
	}
	return fmt.Sprintf("Игра остановлена.\nСыграно: %d\nВзято (автораспознанных): %d\nСредняя сложность: %s · %s",
		stats.Asked, stats.Taken, avg(stats.ComplexityPrimaryAvg), avg(stats.ComplexitySecondaryAvg))
}

// FormatPoolStats формирует ответ на /stats
func FormatPoolStats(stats *entity.PoolStats, usage *entity.UsageAnalytics) string {
	levels := make([]string, 0, entity.MaxDifficulty)
	for level := entity.MinDifficulty; level <= entity.MaxDifficulty; level++ {
		levels = append(levels, fmt.Sprintf("%d:%d", level, stats.ByLevel[level]))
	}
	lines := []string{
		fmt.Sprintf("Вопросов в пуле: %d", stats.Total),
		"По уровням: " + strings.Join(levels, " | "),
		fmt.Sprintf("Без уровня: %d", stats.Unbucketed),
	}
	if usage != nil {
		lines = append(lines, fmt.Sprintf("С %s UTC: игр %d, активных чатов %d",
			usage.Since.UTC().Format("02.01.2006 15:04"), usage.Sessions, usage.ActiveChats))
	}
	return strings.Join(lines, "\n")
}

// FormatCorrect формирует поздравление с правильным ответом
func FormatCorrect(name string) string {
	return fmt.Sprintf("✅ %s, правильный ответ!", html.EscapeString(name))
}

// displayName возвращает имя автора сообщения
func displayName(msg *tgbotapi.Message) string {
	if msg.From != nil {
		name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if name == "" {
			name = msg.From.UserName
		}
		if name != "" {
			return name
		}
	}
	if msg.SenderChat != nil && msg.SenderChat.Title != "" {
		return msg.SenderChat.Title
	}
	return defaultPlayerName
}
