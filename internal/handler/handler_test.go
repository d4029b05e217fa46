package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/chgk-bot/internal/bot"
	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/handler/dto"
	"github.com/yourusername/chgk-bot/internal/middleware"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
	"github.com/yourusername/chgk-bot/internal/repository/redis"
	"github.com/yourusername/chgk-bot/internal/service/pool"
	"github.com/yourusername/chgk-bot/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockAdminGame - мок игровой аналитики
type MockAdminGame struct {
	mock.Mock
}

func (m *MockAdminGame) PoolStats(ctx context.Context) (*entity.PoolStats, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).(*entity.PoolStats)
	return out, args.Error(1)
}

func (m *MockAdminGame) Analytics(ctx context.Context, window time.Duration) (*entity.UsageAnalytics, error) {
	args := m.Called(ctx, window)
	out, _ := args.Get(0).(*entity.UsageAnalytics)
	return out, args.Error(1)
}

func (m *MockAdminGame) SessionLogs(ctx context.Context, window time.Duration) ([]entity.GameSessionLog, error) {
	args := m.Called(ctx, window)
	out, _ := args.Get(0).([]entity.GameSessionLog)
	return out, args.Error(1)
}

// MockAdminReplenisher - мок координатора пополнения
type MockAdminReplenisher struct {
	mock.Mock
}

func (m *MockAdminReplenisher) RunManual(ctx context.Context, reason string, cursorOverride *int64, maxBatches int) (*entity.ReplenishResult, error) {
	args := m.Called(ctx, reason, cursorOverride, maxBatches)
	out, _ := args.Get(0).(*entity.ReplenishResult)
	return out, args.Error(1)
}

func (m *MockAdminReplenisher) LastResult(ctx context.Context) (*entity.ReplenishResult, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).(*entity.ReplenishResult)
	return out, args.Error(1)
}

func (m *MockAdminReplenisher) Busy() bool {
	return m.Called().Bool(0)
}

// MockWebhookReceiver - мок приема обновлений
type MockWebhookReceiver struct {
	mock.Mock
}

func (m *MockWebhookReceiver) HandleWebhook(r *http.Request, secret string) error {
	return m.Called(r, secret).Error(0)
}

type testEnv struct {
	router      *gin.Engine
	game        *MockAdminGame
	replenisher *MockAdminReplenisher
	receiver    *MockWebhookReceiver
	token       string
}

func newTestEnv(t *testing.T) *testEnv {
	jwtService, err := auth.NewJWTService("0123456789abcdef-secret", time.Hour)
	require.NoError(t, err)
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	token, _, err := jwtService.GenerateToken(auth.RoleAdmin)
	require.NoError(t, err)

	env := &testEnv{
		game:        new(MockAdminGame),
		replenisher: new(MockAdminReplenisher),
		receiver:    new(MockWebhookReceiver),
		token:       token,
	}
	env.router = NewRouter(RouterConfig{
		Webhook:     NewWebhookHandler(env.receiver, "hook-secret"),
		WebhookPath: "/telegram/webhook",
		Admin:       NewAdminHandler(env.game, env.replenisher, jwtService, hash),
		Auth:        middleware.NewAuthMiddleware(jwtService),
		RateLimiter: middleware.NewRateLimiter(redis.NewMemoryCache()),
	})
	return env
}

func (e *testEnv) do(method, target string, body []byte, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/healthz"} {
		w := env.do(http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/admin/login", []byte(`{"password":"wrong"}`), false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/admin/login", []byte(`{}`), false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/admin/login", []byte(`{"password":"s3cret"}`), false)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t)

	var last int
	for i := 0; i < middleware.AdminLoginRateLimitConfig().MaxRequests+1; i++ {
		last = env.do(http.MethodPost, "/api/admin/login", []byte(`{"password":"wrong"}`), false).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/admin/pool/stats", nil, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env.game.AssertNotCalled(t, "PoolStats", mock.Anything)
}

func TestGetPoolStats(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	stats := entity.NewPoolStats()
	stats.Total = 42
	stats.ByLevel[5] = 40
	env.game.On("PoolStats", mock.Anything).Return(stats, nil)
	env.replenisher.On("Busy").Return(true)

	// Act
	w := env.do(http.MethodGet, "/api/admin/pool/stats", nil, true)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(42), body["total"])
	assert.Equal(t, true, body["replenish_busy"])
}

func TestReplenish(t *testing.T) {
	t.Run("успех", func(t *testing.T) {
		env := newTestEnv(t)
		cursor := int64(900)
		result := entity.NewReplenishResult()
		result.RunID = "run-1"
		env.replenisher.On("RunManual", mock.Anything, pool.ReasonManual, &cursor, 2).Return(result, nil)

		w := env.do(http.MethodPost, "/api/admin/replenish", []byte(`{"cursor_start":900,"max_batches":2}`), true)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"run_id":"run-1"`)
		env.replenisher.AssertExpectations(t)
	})

	t.Run("без тела", func(t *testing.T) {
		env := newTestEnv(t)
		env.replenisher.On("RunManual", mock.Anything, pool.ReasonManual, (*int64)(nil), 0).
			Return(entity.NewReplenishResult(), nil)

		w := env.do(http.MethodPost, "/api/admin/replenish", nil, true)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("уже идет", func(t *testing.T) {
		env := newTestEnv(t)
		env.replenisher.On("RunManual", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, pool.ErrReplenishInProgress)

		w := env.do(http.MethodPost, "/api/admin/replenish", []byte(`{}`), true)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("обрыв соединения не прерывает запуск", func(t *testing.T) {
		env := newTestEnv(t)
		alive := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
		env.replenisher.On("RunManual", alive, pool.ReasonManual, (*int64)(nil), 0).
			Return(entity.NewReplenishResult(), nil)

		reqCtx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/replenish", nil).WithContext(reqCtx)
		req.Header.Set("Authorization", "Bearer "+env.token)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		env.replenisher.AssertExpectations(t)
	})

	t.Run("неверные параметры", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodPost, "/api/admin/replenish", []byte(`{"max_batches":500}`), true)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env.replenisher.AssertNotCalled(t, "RunManual", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGetLastReplenish_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.replenisher.On("LastResult", mock.Anything).Return(nil, apperrors.ErrNotFound)

	w := env.do(http.MethodGet, "/api/admin/replenish/last", nil, true)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAnalytics(t *testing.T) {
	env := newTestEnv(t)
	since := time.Now().Add(-48 * time.Hour)
	env.game.On("Analytics", mock.Anything, 48*time.Hour).
		Return(&entity.UsageAnalytics{Since: since, Sessions: 5, ActiveChats: 3}, nil)

	w := env.do(http.MethodGet, "/api/admin/analytics?hours=48", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["sessions"])
	assert.Equal(t, float64(3), body["active_chats"])
	assert.Equal(t, float64(48), body["window_hours"])

	w = env.do(http.MethodGet, "/api/admin/analytics?hours=-1", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func sessionLogs() []entity.GameSessionLog {
	d := 6
	return []entity.GameSessionLog{
		{ID: 1, ChatID: -100500, StartedAt: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), Difficulty: &d, MinLikes: 1, MinTakePercent: 20},
		{ID: 2, ChatID: 42, StartedAt: time.Date(2026, 10, 16, 11, 0, 0, 0, time.UTC), MinLikes: 0},
	}
}

func TestExportSessions_CSV(t *testing.T) {
	env := newTestEnv(t)
	env.game.On("SessionLogs", mock.Anything, time.Duration(0)).Return(sessionLogs(), nil)

	w := env.do(http.MethodGet, "/api/admin/sessions/export", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	body := strings.TrimPrefix(w.Body.String(), "\xEF\xBB\xBF")
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1,'-100500,2026-10-16T10:00:00Z,6,1,20", lines[1], "отрицательный chat_id экранируется от формул")
	assert.Equal(t, "2,42,2026-10-16T11:00:00Z,,0,0", lines[2])
}

func TestExportSessions_XLSX(t *testing.T) {
	env := newTestEnv(t)
	env.game.On("SessionLogs", mock.Anything, 24*time.Hour).Return(sessionLogs(), nil)

	w := env.do(http.MethodGet, "/api/admin/sessions/export?hours=24&format=xlsx", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Игры")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Чат", rows[0][1])
	assert.Equal(t, "-100500", rows[1][1])
}

func TestExportSessions_BadFormat(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/admin/sessions/export?format=pdf", nil, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t)
	env.receiver.On("HandleWebhook", mock.Anything, "hook-secret").Return(nil).Once()
	env.receiver.On("HandleWebhook", mock.Anything, "hook-secret").Return(bot.ErrBadSecret).Once()
	env.receiver.On("HandleWebhook", mock.Anything, "hook-secret").Return(errors.New("bad json")).Once()

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/telegram/webhook", []byte(`{}`), false).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/telegram/webhook", []byte(`{}`), false).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/telegram/webhook", []byte(`{}`), false).Code)
}
