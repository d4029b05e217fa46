package game

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/domain/repository"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
)

// MockReplenishTrigger реализует ReplenishTrigger
type MockReplenishTrigger struct {
	mock.Mock
}

func (m *MockReplenishTrigger) Trigger(reason string) bool {
	args := m.Called(reason)
	return args.Bool(0)
}

type usageKey struct {
	chatID     int64
	questionID int64
}

// memStore - хранилище пула, сессий и журнала в памяти
type memStore struct {
	mu        sync.Mutex
	questions map[int64]*entity.Question
	sessions  map[int64]*entity.ChatSession
	usage     map[usageKey]struct{}
	logs      []entity.GameSessionLog
	nextID    uint
	saveErr   error
}

var (
	_ repository.QuestionRepository       = (*memStore)(nil)
	_ repository.ChatSessionRepository    = (*memStore)(nil)
	_ repository.GameSessionLogRepository = (*memStore)(nil)
)

func newMemStore(questions ...entity.Question) *memStore {
	s := &memStore{
		questions: make(map[int64]*entity.Question),
		sessions:  make(map[int64]*entity.ChatSession),
		usage:     make(map[usageKey]struct{}),
	}
	for _, q := range questions {
		s.add(q)
	}
	return s
}

func (s *memStore) add(q entity.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = &q
}

func (s *memStore) GetByID(_ context.Context, id int64) (*entity.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *memStore) FindByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Question, error) {
	out := make(map[int64]*entity.Question)
	for _, id := range ids {
		if q, err := s.GetByID(ctx, id); err == nil {
			out[id] = q
		}
	}
	return out, nil
}

func (s *memStore) PickRandom(_ context.Context, chatID int64, filter entity.SelectionFilter) (*entity.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []int64
	for id, q := range s.questions {
		if _, used := s.usage[usageKey{chatID, id}]; used {
			continue
		}
		if filter.Matches(q) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	cp := *s.questions[candidates[rand.Intn(len(candidates))]]
	return &cp, nil
}

func (s *memStore) PoolStats(context.Context) (*entity.PoolStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := entity.NewPoolStats()
	for _, q := range s.questions {
		stats.Total++
		if level, ok := q.Bucket(); ok {
			stats.ByLevel[level]++
		} else {
			stats.Unbucketed++
		}
	}
	return stats, nil
}

func (s *memStore) GetOrCreate(_ context.Context, chatID int64, defaults entity.SelectionFilter) (*entity.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		s.nextID++
		sess = entity.NewChatSession(chatID, defaults)
		sess.ID = s.nextID
		s.sessions[chatID] = sess
	}
	cp := *sess
	return &cp, nil
}

func (s *memStore) Save(_ context.Context, session *entity.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *session
	s.sessions[session.ChatID] = &cp
	return nil
}

func (s *memStore) ListByState(_ context.Context, state string) ([]entity.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.ChatSession
	for _, sess := range s.sessions {
		if sess.State == state {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *memStore) RecordDelivery(_ context.Context, chatID, questionID int64, apply repository.DeliveryFunc) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey{chatID, questionID}
	if _, used := s.usage[key]; used {
		return false, nil
	}
	s.usage[key] = struct{}{}
	sess, ok := s.sessions[chatID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	q := *s.questions[questionID]
	if entry := apply(sess, &q); entry != nil {
		s.logs = append(s.logs, *entry)
	}
	return true, nil
}

func (s *memStore) CountSince(_ context.Context, since time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sessions int64
	chats := make(map[int64]struct{})
	for _, l := range s.logs {
		if !l.StartedAt.Before(since) {
			sessions++
			chats[l.ChatID] = struct{}{}
		}
	}
	return sessions, int64(len(chats)), nil
}

func (s *memStore) ListSince(_ context.Context, since time.Time) ([]entity.GameSessionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.GameSessionLog
	for _, l := range s.logs {
		if !l.StartedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) session(chatID int64) entity.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[chatID]
}

func (s *memStore) used(chatID, questionID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.usage[usageKey{chatID, questionID}]
	return ok
}

func fp(v float64) *float64 { return &v }

func ip(v int) *int { return &v }

func question(id int64, complexity float64) entity.Question {
	return entity.Question{
		ID:                    id,
		Text:                  "Вопрос",
		Answer:                "Пушкин",
		Zachet:                "Александр Пушкин",
		Likes:                 3,
		TakePercent:           fp(50),
		PackComplexityPrimary: fp(complexity),
	}
}

func newTestService(store *memStore, trigger ReplenishTrigger) *Service {
	cfg := DefaultConfig()
	cfg.NextDelay = 10 * time.Millisecond
	return NewService(&Dependencies{
		QuestionRepo: store,
		SessionRepo:  store,
		LogRepo:      store,
		Replenish:    trigger,
		Config:       cfg,
	})
}

// countingCache - минимальный кеш для проверки PoolStats
type countingCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *countingCache) Get(context.Context, string) (string, error) {
	return "", apperrors.ErrNotFound
}

func (c *countingCache) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}

func (c *countingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *countingCache) Increment(context.Context, string) (int64, error) {
	return 0, nil
}

func (c *countingCache) Expire(context.Context, string, time.Duration) error {
	return nil
}

func (c *countingCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = data
	return nil
}

func (c *countingCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}
