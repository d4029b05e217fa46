package report

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

const maxEmailAttempts = 3

// EmailSender - часть клиента Resend, нужная для отправки писем
type EmailSender interface {
	SendWithOptions(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) (*resend.SendEmailResponse, error)
}

// Email отправляет отчеты через Resend
type Email struct {
	from   string
	to     string
	sender EmailSender
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewEmail создает получателя отчетов по почте
func NewEmail(apiKey, from, to string) (*Email, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("email from and to are required")
	}
	return newEmail(resend.NewClient(apiKey).Emails, from, to), nil
}

func newEmail(sender EmailSender, from, to string) *Email {
	return &Email{from: from, to: to, sender: sender, sleep: sleepContext}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, r *Report) error {
	params := &resend.SendEmailRequest{
		From:    e.from,
		To:      []string{e.to},
		Subject: Subject(r.Result),
		Text:    r.Text,
		Html:    "<pre>" + html.EscapeString(r.Text) + "</pre>",
	}

	options := &resend.SendEmailOptions{}
	if r.Result != nil && r.Result.RunID != "" {
		options.IdempotencyKey = "replenish-" + r.Result.RunID
	}

	var lastErr error
	for attempt := 0; attempt < maxEmailAttempts; attempt++ {
		_, err := e.sender.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		wait, ok := retryDelay(err, attempt)
		if !ok {
			return fmt.Errorf("resend send failed: %w", err)
		}
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

// retryDelay определяет паузу перед повтором: rate limit и таймауты повторяются
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
