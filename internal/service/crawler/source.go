package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// FetchStatus - итог загрузки одного пака
type FetchStatus int

const (
	FetchFound FetchStatus = iota
	FetchNotFound
	FetchHTTPFailed
	FetchNetworkError
	FetchParserError
)

// FetchResult описывает результат загрузки пака со всеми повторами
type FetchResult struct {
	Status  FetchStatus
	Pack    *rawPack
	Retries int
	Blocked bool
	Err     error
}

// PackSource загружает паки с сайта вопросов
type PackSource interface {
	FetchPack(ctx context.Context, packID int64) FetchResult
	LatestPackID(ctx context.Context) (int64, error)
}

// SourceConfig содержит настройки HTTP-источника
type SourceConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	UserAgent    string
}

// GotQuestions загружает страницы gotquestions.online
type GotQuestions struct {
	client *http.Client
	cfg    SourceConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGotQuestions создает HTTP-источник паков
func NewGotQuestions(cfg SourceConfig) *GotQuestions {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GotQuestions{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// statusError - ответ сервера с кодом, отличным от 200
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (g *GotQuestions) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &statusError{code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body %s: %w", url, err)
	}
	return string(body), nil
}

// FetchPack загружает пак с повторами: 404 и страница без данных - "не найден",
// 403/429 - блокировка, 5xx и сетевые ошибки - повтор с линейной паузой.
func (g *GotQuestions) FetchPack(ctx context.Context, packID int64) FetchResult {
	url := entity.PackURL(g.cfg.BaseURL, packID)
	var res FetchResult

	for attempt := 0; ; attempt++ {
		html, err := g.get(ctx, url)
		if err == nil {
			return g.parsePack(html, res)
		}
		res.Err = err

		var se *statusError
		retryable := true
		switch {
		case errors.As(err, &se) && se.code == http.StatusNotFound:
			res.Status = FetchNotFound
			return res
		case errors.As(err, &se) && (se.code == http.StatusForbidden || se.code == http.StatusTooManyRequests):
			res.Blocked = true
			res.Status = FetchHTTPFailed
		case errors.As(err, &se) && se.code < 500:
			res.Status = FetchHTTPFailed
			retryable = false
		default:
			res.Status = FetchNetworkError
		}

		if !retryable || attempt >= g.cfg.MaxRetries || ctx.Err() != nil {
			return res
		}
		if err := g.sleep(ctx, time.Duration(attempt+1)*g.cfg.RetryBackoff); err != nil {
			return res
		}
		res.Retries++
	}
}

func (g *GotQuestions) parsePack(html string, res FetchResult) FetchResult {
	res.Err = nil
	payload, err := decodeNextPayload(html)
	if err != nil {
		res.Status = FetchParserError
		res.Err = err
		return res
	}

	var pack rawPack
	if err := decodeAfterMarker(payload, packMarker, packPrefix, &pack); err != nil {
		if errors.Is(err, errMarkerMissing) {
			res.Status = FetchNotFound
			return res
		}
		res.Status = FetchParserError
		res.Err = err
		return res
	}
	res.Status = FetchFound
	res.Pack = &pack
	return res
}

// LatestPackID возвращает максимальный id пака со страницы-листинга
func (g *GotQuestions) LatestPackID(ctx context.Context) (int64, error) {
	html, err := g.get(ctx, g.cfg.BaseURL+"/")
	if err != nil {
		return 0, err
	}
	payload, err := decodeNextPayload(html)
	if err != nil {
		return 0, err
	}

	var packs []rawListingPack
	if err := decodeAfterMarker(payload, listingMarker, listingPrefix, &packs); err != nil {
		return 0, fmt.Errorf("listing: %w", err)
	}
	var maxID int64
	for _, p := range packs {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	if maxID == 0 {
		return 0, fmt.Errorf("listing: no pack ids")
	}
	return maxID, nil
}
