package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/chgk-bot/internal/bot"
)

// WebhookReceiver принимает обновления Telegram
type WebhookReceiver interface {
	HandleWebhook(r *http.Request, secret string) error
}

// WebhookHandler принимает webhook Telegram
type WebhookHandler struct {
	receiver WebhookReceiver
	secret   string
}

// NewWebhookHandler создает обработчик webhook
func NewWebhookHandler(receiver WebhookReceiver, secret string) *WebhookHandler {
	return &WebhookHandler{receiver: receiver, secret: secret}
}

// Handle принимает обновление. Обработка идет асинхронно, Telegram сразу получает 200.
func (h *WebhookHandler) Handle(c *gin.Context) {
	err := h.receiver.HandleWebhook(c.Request, h.secret)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, bot.ErrBadSecret):
		log.Printf("[WebhookHandler] Неверный секрет webhook с IP %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
	default:
		log.Printf("[WebhookHandler] Ошибка разбора обновления: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
	}
}
