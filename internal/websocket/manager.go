package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// Hub рассылает события живой ленты всем подключенным администраторам
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// NewHub создает хаб
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Serve регистрирует соединение и запускает его обработку.
// greeting, если не nil, отправляется клиенту первым.
func (h *Hub) Serve(conn *websocket.Conn, subject string, greeting *Event) error {
	client := newClient(h, conn, subject)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return fmt.Errorf("hub is closed")
	}
	h.clients[client] = struct{}{}
	if greeting != nil {
		if data, err := json.Marshal(greeting); err == nil {
			client.send <- data
		}
	}
	h.mu.Unlock()

	log.Printf("[WebSocket] Подключен %s (%s)", subject, client.ConnectionID)
	go client.writePump()
	go client.readPump()
	return nil
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closeSend()
		log.Printf("[WebSocket] Отключен %s (%s)", c.Subject, c.ConnectionID)
	}
}

// BroadcastJSON отправляет событие всем клиентам. Клиенты с переполненным буфером отключаются.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("[WebSocket] Буфер клиента %s переполнен, отключаю", c.ConnectionID)
			delete(h.clients, c)
			c.closeSend()
		}
	}
	return nil
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnReplenished публикует итог запуска пополнения
func (h *Hub) OnReplenished(_ context.Context, result *entity.ReplenishResult) {
	if err := h.BroadcastJSON(Event{Type: REPLENISH_COMPLETED, Data: result}); err != nil {
		log.Printf("[WebSocket] Ошибка рассылки итога пополнения: %v", err)
	}
}

// Close отключает всех клиентов
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.closeSend()
	}
}
