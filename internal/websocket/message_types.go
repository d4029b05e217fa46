package websocket

// Типы событий живой ленты админ-API
const (
	// REPLENISH_COMPLETED сообщает о завершении запуска пополнения
	REPLENISH_COMPLETED = "REPLENISH_COMPLETED"

	// POOL_STATS передает состояние пула сразу после подключения
	POOL_STATS = "POOL_STATS"
)

// Event - сообщение, отправляемое клиентам
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
