package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/handler/dto"
	"github.com/yourusername/chgk-bot/internal/handler/helper"
	"github.com/yourusername/chgk-bot/internal/middleware"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
	"github.com/yourusername/chgk-bot/internal/service/pool"
	"github.com/yourusername/chgk-bot/pkg/auth"
)

// manualRunTimeout ограничивает ручной запуск из админ-API
const manualRunTimeout = 30 * time.Minute

// AdminGame - игровая аналитика для админ-API
type AdminGame interface {
	PoolStats(ctx context.Context) (*entity.PoolStats, error)
	Analytics(ctx context.Context, window time.Duration) (*entity.UsageAnalytics, error)
	SessionLogs(ctx context.Context, window time.Duration) ([]entity.GameSessionLog, error)
}

// AdminReplenisher - управление пополнением пула
type AdminReplenisher interface {
	RunManual(ctx context.Context, reason string, cursorOverride *int64, maxBatches int) (*entity.ReplenishResult, error)
	LastResult(ctx context.Context) (*entity.ReplenishResult, error)
	Busy() bool
}

// AdminHandler обрабатывает запросы админ-API
type AdminHandler struct {
	game         AdminGame
	replenisher  AdminReplenisher
	jwtService   *auth.JWTService
	passwordHash string
}

// NewAdminHandler создает обработчик админ-API
func NewAdminHandler(game AdminGame, replenisher AdminReplenisher, jwtService *auth.JWTService, passwordHash string) *AdminHandler {
	return &AdminHandler{
		game:         game,
		replenisher:  replenisher,
		jwtService:   jwtService,
		passwordHash: passwordHash,
	}
}

// Login выдает токен администратора по паролю
// POST /api/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := auth.CheckPassword(h.passwordHash, req.Password); err != nil {
		log.Printf("[AdminHandler] Неудачная попытка входа с IP %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "error_type": "bad_credentials"})
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(auth.RoleAdmin)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// GetPoolStats возвращает состояние пула вопросов
// GET /api/admin/pool/stats
func (h *AdminHandler) GetPoolStats(c *gin.Context) {
	stats, err := h.game.PoolStats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PoolStatsResponse{PoolStats: stats, ReplenishBusy: h.replenisher.Busy()})
}

// Replenish выполняет ручное пополнение и возвращает его итог
// POST /api/admin/replenish
func (h *AdminHandler) Replenish(c *gin.Context) {
	var req dto.ReplenishRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	// Запуск не зависит от соединения: обрыв клиента не должен отбрасывать незакоммиченный батч.
	// Итог в любом случае доступен через /replenish/last и ленту событий.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), manualRunTimeout)
	defer cancel()
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Now().Add(manualRunTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Printf("[AdminHandler] Не удалось продлить write deadline: %v", err)
	}

	result, err := h.replenisher.RunManual(ctx, pool.ReasonManual, req.CursorStart, req.MaxBatches)
	if err != nil {
		h.handleError(c, err)
		return
	}
	log.Printf("[AdminHandler] Ручное пополнение %s: добавлено %d", result.RunID, result.AddedTotal)
	c.JSON(http.StatusOK, result)
}

// GetLastReplenish возвращает итог последнего запуска
// GET /api/admin/replenish/last
func (h *AdminHandler) GetLastReplenish(c *gin.Context) {
	result, err := h.replenisher.LastResult(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAnalytics возвращает число игр и активных чатов за окно
// GET /api/admin/analytics?hours=24
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	window := c.MustGet(middleware.WindowKey).(time.Duration)
	usage, err := h.game.Analytics(c.Request.Context(), window)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AnalyticsResponse{
		UsageAnalytics: usage,
		WindowHours:    time.Since(usage.Since).Round(time.Hour).Hours(),
	})
}

// ExportSessions выгружает журнал начатых игр в CSV или Excel
// GET /api/admin/sessions/export?hours=24&format=csv|xlsx
func (h *AdminHandler) ExportSessions(c *gin.Context) {
	window := c.MustGet(middleware.WindowKey).(time.Duration)
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}

	logs, err := h.game.SessionLogs(c.Request.Context(), window)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := helper.ExportFilename("sessions", time.Now())
	if format == "xlsx" {
		h.exportXLSX(c, logs, filename)
		return
	}
	h.exportCSV(c, logs, filename)
}

var exportHeaders = []string{"ID", "Чат", "Начало (UTC)", "Сложность", "Мин. лайков", "Мин. % взятия"}

func exportRow(l entity.GameSessionLog) []string {
	return []string{
		strconv.FormatUint(uint64(l.ID), 10),
		strconv.FormatInt(l.ChatID, 10),
		l.StartedAt.UTC().Format(time.RFC3339),
		helper.FormatOptionalInt(l.Difficulty),
		strconv.Itoa(l.MinLikes),
		strconv.FormatFloat(l.MinTakePercent, 'f', -1, 64),
	}
}

// exportCSV выгружает журнал с BOM для корректного UTF-8 в Excel
func (h *AdminHandler) exportCSV(c *gin.Context, logs []entity.GameSessionLog, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))
	c.Status(http.StatusOK)

	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(exportHeaders)
	for _, l := range logs {
		row := exportRow(l)
		for i := range row {
			row[i] = helper.SanitizeForExcel(row[i])
		}
		writer.Write(row)
	}
}

// exportXLSX выгружает журнал в Excel через StreamWriter
func (h *AdminHandler) exportXLSX(c *gin.Context, logs []entity.GameSessionLog, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Игры"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := make([]interface{}, len(exportHeaders))
	for i, v := range exportHeaders {
		headers[i] = v
	}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminHandler] Ошибка записи заголовков: %v", err)
	}

	for i, l := range logs {
		rowNum := i + 2
		var difficulty interface{} = ""
		if l.Difficulty != nil {
			difficulty = *l.Difficulty
		}
		row := []interface{}{l.ID, l.ChatID, l.StartedAt.UTC().Format(time.RFC3339), difficulty, l.MinLikes, l.MinTakePercent}
		if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), row); err != nil {
			log.Printf("[AdminHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminHandler] Ошибка при Flush: %v", err)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminHandler] Ошибка записи Excel в response: %v", err)
	}
}

// handleError переводит ошибки сервисов в HTTP ответ
func (h *AdminHandler) handleError(c *gin.Context, err error) {
	handleError(c, "AdminHandler", err)
}

func handleError(c *gin.Context, component string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("[%s] Internal server error: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
