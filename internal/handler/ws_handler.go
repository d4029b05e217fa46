package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/chgk-bot/internal/middleware"
	"github.com/yourusername/chgk-bot/internal/websocket"
)

// WSHandler подключает администраторов к живой ленте событий
type WSHandler struct {
	hub      *websocket.Hub
	game     AdminGame
	upgrader gorillaws.Upgrader
}

// NewWSHandler создает обработчик WebSocket. allowedOrigins "*" разрешает любой Origin.
func NewWSHandler(hub *websocket.Hub, game AdminGame, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSHandler{
		hub:  hub,
		game: game,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Пустой Origin - не браузерный клиент
				if origin == "" || allowed["*"] || allowed[origin] {
					return true
				}
				log.Printf("[WSHandler] Отклонен Origin: %s", origin)
				return false
			},
		},
	}
}

// HandleConnection открывает соединение живой ленты
// GET /api/admin/events?token=...
func (h *WSHandler) HandleConnection(c *gin.Context) {
	var greeting *websocket.Event
	if stats, err := h.game.PoolStats(c.Request.Context()); err == nil {
		greeting = &websocket.Event{Type: websocket.POOL_STATS, Data: stats}
	} else {
		log.Printf("[WSHandler] Не удалось получить состояние пула: %v", err)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Ошибка upgrade: %v", err)
		return
	}
	if err := h.hub.Serve(conn, c.GetString(middleware.AdminSubjectKey), greeting); err != nil {
		log.Printf("[WSHandler] %v", err)
	}
}
