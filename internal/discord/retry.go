package discord

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig задает политику повторов при временных сбоях.
type RetryConfig struct {
	// MaxAttempts — общее число попыток, включая первую.
	MaxAttempts int
	// InitialInterval — пауза перед первым повтором.
	InitialInterval time.Duration
	// MaxInterval — верхняя граница паузы между повторами.
	MaxInterval time.Duration
}

// DefaultRetryConfig возвращает политику повторов по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     8,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// transientStatusError — ответ со статусом, который имеет смысл повторить.
type transientStatusError struct {
	StatusCode int
}

func (e *transientStatusError) Error() string {
	return fmt.Sprintf("transient response status %d", e.StatusCode)
}

// isTransientStatus сообщает, является ли статус временным сбоем.
func isTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// RetryTransport повторяет запрос при сетевых ошибках и временных статусах
// с экспоненциальной паузой. Остальные компоненты не отличают повторенный запрос от обычного.
type RetryTransport struct {
	next http.RoundTripper
	cfg  RetryConfig
	log  *slog.Logger
}

// NewRetryTransport создает транспорт поверх next.
func NewRetryTransport(next http.RoundTripper, cfg RetryConfig, log *slog.Logger) *RetryTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetryTransport{next: next, cfg: cfg, log: log}
}

func (t *RetryTransport) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if t.cfg.InitialInterval > 0 {
		b.InitialInterval = t.cfg.InitialInterval
	}
	if t.cfg.MaxInterval > 0 {
		b.MaxInterval = t.cfg.MaxInterval
	}
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(t.cfg.MaxAttempts-1))
}

// RoundTrip реализует http.RoundTripper.
// Если временный статус пришел на последней попытке, ответ возвращается как есть,
// чтобы вызывающий смог приложить тело к диагностике.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var (
		resp    *http.Response
		attempt int
	)

	op := func() error {
		attempt++

		r, err := t.next.RoundTrip(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		if isTransientStatus(r.StatusCode) && attempt < t.cfg.MaxAttempts {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
			return &transientStatusError{StatusCode: r.StatusCode}
		}

		resp = r
		return nil
	}

	notify := func(err error, d time.Duration) {
		t.log.WarnContext(ctx, "Transient request failure, retrying",
			"path", req.URL.Path,
			"attempt", attempt,
			"delay", d,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(t.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}

	return resp, nil
}
