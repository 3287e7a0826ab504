package discord

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"discord-chat-exporter/internal/discord/discordtest"
	"discord-chat-exporter/internal/domain"
)

const testToken = "test-token"

// --- Test Sleeper ---

// recordingSleeper запоминает запрошенные паузы вместо ожидания.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// --- Stub transport ---

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// trackingBody фиксирует закрытие тела ответа.
type trackingBody struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (b *trackingBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *trackingBody) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func newStubResponse(req *http.Request, status int, header http.Header) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       &trackingBody{Reader: strings.NewReader("{}")},
		Request:    req,
	}
}

// --- Helpers to create a test client ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient создает клиент, направленный на фейковый сервер, без повторов и без реальных пауз.
func newTestClient(t *testing.T, srv *discordtest.Server, opts ...ClientOption) (*Client, *recordingSleeper) {
	t.Helper()

	sleeper := &recordingSleeper{}
	base := []ClientOption{
		WithBaseURL(srv.BaseURL()),
		WithLogger(discardLogger()),
		WithRetryConfig(RetryConfig{MaxAttempts: 1}),
		WithRateLimitOptions(withSleeper(sleeper.Sleep)),
	}

	client, err := NewClient(testToken, append(base, opts...)...)
	require.NoError(t, err)
	return client, sleeper
}

// newTestServer запускает фейковый сервер и закрывает его по окончании теста.
func newTestServer(t *testing.T, kind discordtest.Kind) *discordtest.Server {
	t.Helper()

	srv := discordtest.NewServer(testToken, kind)
	t.Cleanup(srv.Close)
	return srv
}

// collect вычитывает последовательность целиком, требуя отсутствия ошибок.
func collect[T any](t *testing.T, seq iter.Seq2[T, error]) []T {
	t.Helper()

	var out []T
	for item, err := range seq {
		require.NoError(t, err)
		out = append(out, item)
	}
	return out
}

// collectErr вычитывает последовательность до первой ошибки.
func collectErr[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

var messageEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// messageID возвращает идентификатор i-го сообщения; сообщения идут с интервалом в минуту.
func messageID(i int) domain.Snowflake {
	return domain.SnowflakeFromTime(messageEpoch.Add(time.Duration(i) * time.Minute))
}

func fakeMessages(from, to int) []discordtest.Message {
	msgs := make([]discordtest.Message, 0, to-from+1)
	for i := from; i <= to; i++ {
		msgs = append(msgs, discordtest.Message{
			ID:      messageID(i),
			Author:  discordtest.User{ID: 7, Username: "author"},
			Content: "message",
		})
	}
	return msgs
}

func ids[T any](items []T, id func(T) domain.Snowflake) []domain.Snowflake {
	out := make([]domain.Snowflake, 0, len(items))
	for _, item := range items {
		out = append(out, id(item))
	}
	return out
}

func channelIDs(channels []domain.Channel) []domain.Snowflake {
	return ids(channels, func(c domain.Channel) domain.Snowflake { return c.ID })
}
