package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/domain/repository"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
)

// nextPage оборачивает payload в страницу с чанками self.__next_f.push, разбивая на части
func nextPage(payload string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><script>console.log(1)</script></head><body>")
	half := len(payload) / 2
	for _, part := range []string{payload[:half], payload[half:]} {
		quoted, _ := json.Marshal(part)
		sb.WriteString(`<script>self.__next_f.push([1,`)
		sb.Write(quoted)
		sb.WriteString(`])</script>`)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func packPage(pack map[string]interface{}) string {
	data, _ := json.Marshal(pack)
	return nextPage(`7:["$","div",null,{"pack":` + string(data) + `,"user":null}]`)
}

func listingPage(ids ...int64) string {
	packs := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		packs = append(packs, map[string]interface{}{"id": id, "title": "пак"})
	}
	data, _ := json.Marshal(packs)
	return nextPage(`5:{"packs":` + string(data) + `,"total":100}`)
}

// makePack собирает JSON пака с одним туром
func makePack(id int64, trueDl []interface{}, questions ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":      id,
		"title":   fmt.Sprintf("Пак %d", id),
		"pubDate": "2024-03-01",
		"trueDl":  trueDl,
		"tours":   []interface{}{map[string]interface{}{"questions": questions}},
	}
}

func makeQuestion(id int64, likes int) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"number":     1,
		"text":       fmt.Sprintf("Текст %d", id),
		"answer":     "Ответ",
		"zachet":     "",
		"comment":    "",
		"source":     "https://example.org",
		"totalLikes": likes,
	}
}

// siteStub - тестовый сайт вопросов
type siteStub struct {
	mu       sync.Mutex
	pages    map[int64]func(w http.ResponseWriter)
	listing  string
	requests map[int64]int
}

func newSiteStub() *siteStub {
	return &siteStub{pages: make(map[int64]func(w http.ResponseWriter)), requests: make(map[int64]int)}
}

func (s *siteStub) pack(id int64, body string) {
	s.pages[id] = func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(body))
	}
}

func (s *siteStub) status(id int64, code int) {
	s.pages[id] = func(w http.ResponseWriter) {
		w.WriteHeader(code)
	}
}

func (s *siteStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		if s.listing == "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(s.listing))
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/pack/"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.requests[id]++
	page, ok := s.pages[id]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	page(w)
}

func (s *siteStub) requested(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

func newTestSource(t *testing.T, site http.Handler, maxRetries int) (*GotQuestions, string) {
	t.Helper()
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	src := NewGotQuestions(SourceConfig{BaseURL: srv.URL, MaxRetries: maxRetries})
	src.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return src, srv.URL
}

// memoryStore - хранилище пула и курсора в памяти
type memoryStore struct {
	mu        sync.Mutex
	questions map[int64]entity.Question
	packs     map[int64]entity.Pack
	cursor    *int64
	commits   int
	commitErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{questions: make(map[int64]entity.Question), packs: make(map[int64]entity.Pack)}
}

var (
	_ repository.QuestionRepository = (*memoryStore)(nil)
	_ repository.CrawlRepository    = (*memoryStore)(nil)
)

func (m *memoryStore) GetByID(_ context.Context, id int64) (*entity.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &q, nil
}

func (m *memoryStore) FindByIDs(_ context.Context, ids []int64) (map[int64]*entity.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*entity.Question)
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			q := q
			out[id] = &q
		}
	}
	return out, nil
}

func (m *memoryStore) PickRandom(context.Context, int64, entity.SelectionFilter) (*entity.Question, error) {
	return nil, errors.New("not used")
}

func (m *memoryStore) PoolStats(context.Context) (*entity.PoolStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := entity.NewPoolStats()
	for _, q := range m.questions {
		stats.Total++
		if level, ok := q.Bucket(); ok {
			stats.ByLevel[level]++
		} else {
			stats.Unbucketed++
		}
	}
	return stats, nil
}

func (m *memoryStore) GetCursor(_ context.Context, name string) (*entity.ParserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor == nil {
		return nil, apperrors.ErrNotFound
	}
	return &entity.ParserState{Name: name, Cursor: *m.cursor}, nil
}

func (m *memoryStore) SetCursor(_ context.Context, _ string, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = &cursor
	return nil
}

func (m *memoryStore) CommitBatch(_ context.Context, _ string, batch *repository.CrawlBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	for _, p := range batch.Packs {
		m.packs[p.ID] = p
	}
	for _, q := range batch.Questions {
		if _, ok := m.questions[q.ID]; !ok {
			m.questions[q.ID] = q
		}
	}
	for _, q := range batch.Backfills {
		stored := m.questions[q.ID]
		stored.RazdatkaText = q.RazdatkaText
		stored.RazdatkaPicURL = q.RazdatkaPicURL
		m.questions[q.ID] = stored
	}
	cursor := batch.Cursor
	m.cursor = &cursor
	m.commits++
	return nil
}

func (m *memoryStore) cursorValue() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor == nil {
		return -1
	}
	return *m.cursor
}
