package report

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender - часть Telegram API, нужная для отправки отчета
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram отправляет отчет личным сообщением
type Telegram struct {
	sender MessageSender
	chatID int64
}

// NewTelegram создает Telegram-получателя отчетов
func NewTelegram(sender MessageSender, chatID int64) *Telegram {
	return &Telegram{sender: sender, chatID: chatID}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, r.Text)
	msg.DisableWebPagePreview = true
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send report to %d: %w", t.chatID, err)
	}
	return nil
}
