package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
)

// MemoryCache - кеш в памяти процесса для запуска без Redis.
// Время жизни ключей учитывается при чтении.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// NewMemoryCache создает пустой кеш в памяти
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

func (c *MemoryCache) load(key string) (memoryItem, bool) {
	item, ok := c.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		delete(c.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (c *MemoryCache) store(key, value string, expiration time.Duration) {
	item := memoryItem{value: value}
	if expiration > 0 {
		item.expiresAt = c.now().Add(expiration)
	}
	c.items[key] = item
}

// Get получает значение из кеша
func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.load(key)
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return item.value, nil
}

// Set сохраняет значение в кеше
func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, toString(value), expiration)
	return nil
}

// Delete удаляет значение из кеша
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Increment увеличивает счетчик на 1, сохраняя время жизни ключа
func (c *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, _ := c.load(key)
	var n int64
	if item.value != "" {
		if err := json.Unmarshal([]byte(item.value), &n); err != nil {
			return 0, err
		}
	}
	n++
	item.value = toString(n)
	c.items[key] = item
	return n, nil
}

// Expire задает время жизни ключа
func (c *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.load(key)
	if !ok {
		return nil
	}
	c.store(key, item.value, expiration)
	return nil
}

// SetJSON сохраняет структуру JSON в кеше
func (c *MemoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(data), expiration)
}

// GetJSON получает структуру JSON из кеша
func (c *MemoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
