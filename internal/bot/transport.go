package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SecretHeader - заголовок с секретом webhook
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ErrBadSecret возвращается, если секрет webhook не совпал
var ErrBadSecret = fmt.Errorf("webhook secret mismatch")

// menuCommands - меню команд для личных и групповых чатов
func menuCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: cmdStart, Description: "Старт игры: /start [сложность 1-10] [лайки] [% взятия]"},
		{Command: cmdNext, Description: "Показать ответ и следующий вопрос"},
		{Command: cmdStop, Description: "Остановить игру и показать статистику"},
	}
}

// SetupCommands регистрирует меню команд
func (b *Bot) SetupCommands() error {
	scopes := []tgbotapi.BotCommandScope{
		tgbotapi.NewBotCommandScopeAllPrivateChats(),
		tgbotapi.NewBotCommandScopeAllGroupChats(),
	}
	for _, scope := range scopes {
		if _, err := b.api.Request(tgbotapi.NewSetMyCommandsWithScope(scope, menuCommands()...)); err != nil {
			return fmt.Errorf("set commands for %s: %w", scope.Type, err)
		}
	}
	return nil
}

// RunPolling получает обновления long polling до отмены ctx
func (b *Bot) RunPolling(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook before polling: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	log.Println("[Bot] Запущен long polling")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.Dispatch(update)
		}
	}
}

// SetWebhook регистрирует webhook, сбрасывая накопившиеся обновления
func (b *Bot) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{
		"url":                  url,
		"drop_pending_updates": strconv.FormatBool(true),
	}
	params.AddNonEmpty("secret_token", secret)
	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Printf("[Bot] Webhook установлен: %s", url)
	return nil
}

// DeleteWebhook снимает webhook при остановке
func (b *Bot) DeleteWebhook() error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// HandleWebhook проверяет секрет, разбирает обновление и ставит его в обработку
func (b *Bot) HandleWebhook(r *http.Request, secret string) error {
	if secret != "" && r.Header.Get(SecretHeader) != secret {
		return ErrBadSecret
	}
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	b.Dispatch(*update)
	return nil
}
