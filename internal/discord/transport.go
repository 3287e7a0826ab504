package discord

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

const (
	// HeaderRateLimitRemaining — число запросов, оставшихся в текущем окне.
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	// HeaderRateLimitResetAfter — через сколько секунд (дробное число) окно будет сброшено.
	HeaderRateLimitResetAfter = "X-RateLimit-Reset-After"

	// DefaultRateLimitBuffer добавляется к времени сброса окна.
	DefaultRateLimitBuffer = 1 * time.Second
	// DefaultRateLimitMaxDelay ограничивает ожидание сверху: сервис иногда сообщает
	// завышенное время сброса, которое на деле не применяется.
	DefaultRateLimitMaxDelay = 60 * time.Second
)

// RateLimitState — состояние окна ограничения, сообщенное одним ответом.
// Между запросами не сохраняется.
type RateLimitState struct {
	Remaining     int
	HasRemaining  bool
	ResetAfter    time.Duration
	HasResetAfter bool
}

// ParseRateLimitState читает заголовки ограничения из ответа.
// Нечитаемое значение считается отсутствующим.
func ParseRateLimitState(h http.Header) RateLimitState {
	var s RateLimitState

	if v := h.Get(HeaderRateLimitRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Remaining = n
			s.HasRemaining = true
		}
	}

	if v := h.Get(HeaderRateLimitResetAfter); v != "" {
		if sec, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(sec) && !math.IsInf(sec, 0) {
			s.ResetAfter = secondsToDuration(sec)
			s.HasResetAfter = true
		}
	}

	return s
}

// Delay возвращает паузу, которую нужно выдержать после ответа.
// Пауза нужна только если окно исчерпано и известно время его сброса:
// delay = clamp(resetAfter + buffer, 0, maxDelay).
func (s RateLimitState) Delay(buffer, maxDelay time.Duration) (time.Duration, bool) {
	if !s.HasRemaining || !s.HasResetAfter || s.Remaining > 0 {
		return 0, false
	}

	if s.ResetAfter >= maxDelay-buffer {
		return maxDelay, true
	}
	return max(s.ResetAfter+buffer, 0), true
}

// secondsToDuration переводит секунды в Duration, насыщаясь на границах диапазона.
func secondsToDuration(sec float64) time.Duration {
	const limit = float64(math.MaxInt64) / float64(time.Second)
	switch {
	case sec >= limit:
		return time.Duration(math.MaxInt64)
	case sec <= -limit:
		return time.Duration(math.MinInt64)
	default:
		return time.Duration(sec * float64(time.Second))
	}
}

// RateLimitOption — функциональная опция для RateLimitTransport.
type RateLimitOption func(*RateLimitTransport)

// WithRateLimitBuffer задает запас, добавляемый ко времени сброса окна.
func WithRateLimitBuffer(d time.Duration) RateLimitOption {
	return func(t *RateLimitTransport) {
		if d >= 0 {
			t.buffer = d
		}
	}
}

// WithRateLimitMaxDelay задает верхнюю границу паузы.
func WithRateLimitMaxDelay(d time.Duration) RateLimitOption {
	return func(t *RateLimitTransport) {
		if d > 0 {
			t.maxDelay = d
		}
	}
}

// WithRateLimitLogger устанавливает логгер.
func WithRateLimitLogger(l *slog.Logger) RateLimitOption {
	return func(t *RateLimitTransport) {
		if l != nil {
			t.log = l
		}
	}
}

// withSleeper подменяет функцию ожидания (для тестов).
func withSleeper(sleep func(ctx context.Context, d time.Duration) error) RateLimitOption {
	return func(t *RateLimitTransport) {
		t.sleep = sleep
	}
}

// RateLimitTransport оборачивает каждый запрос и, получив ответ, который исчерпал окно,
// выдерживает паузу до возврата ответа вызывающему. Благодаря этому остальной код может
// выполнять запросы последовательно без собственного учета ограничений.
// Модель корзин по маршрутам не реализуется: учитывается только то, что сообщил сам ответ.
type RateLimitTransport struct {
	next     http.RoundTripper
	buffer   time.Duration
	maxDelay time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      *slog.Logger
}

// NewRateLimitTransport создает транспорт поверх next.
func NewRateLimitTransport(next http.RoundTripper, opts ...RateLimitOption) *RateLimitTransport {
	if next == nil {
		next = http.DefaultTransport
	}

	t := &RateLimitTransport{
		next:     next,
		buffer:   DefaultRateLimitBuffer,
		maxDelay: DefaultRateLimitMaxDelay,
		sleep:    sleepContext,
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// RoundTrip реализует http.RoundTripper.
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	state := ParseRateLimitState(resp.Header)
	delay, ok := state.Delay(t.buffer, t.maxDelay)
	if !ok {
		return resp, nil
	}

	ctx := req.Context()
	t.log.DebugContext(ctx, "Rate limit exhausted, waiting before returning response",
		"path", req.URL.Path,
		"reset_after", state.ResetAfter,
		"delay", delay,
	)

	if err := t.sleep(ctx, delay); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

// sleepContext ждет d или отмены контекста.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
