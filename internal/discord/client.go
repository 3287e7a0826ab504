// Package discord реализует клиент удаленного REST-сервиса с ограничением частоты запросов:
// определение типа токена, проактивное соблюдение лимитов, курсорную пагинацию
// и ленивые потоки каналов, веток, сообщений и реакций.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL — версионированный базовый адрес API.
	DefaultBaseURL = "https://discord.com/api/v10/"
	// DefaultHTTPTimeout — таймаут одного HTTP-запроса (включая повторы и паузы лимита).
	DefaultHTTPTimeout = 5 * time.Minute

	// maxErrorBodySize ограничивает размер тела ответа, прикладываемого к ошибке.
	maxErrorBodySize = 64 << 10
)

// Client — клиент удаленного API. Безопасен для одновременного использования
// несколькими потоками выгрузки.
type Client struct {
	id         string
	token      string
	baseURL    *url.URL
	httpClient *http.Client
	log        *slog.Logger

	// Параметры сборки транспорта, применяются, если HTTP-клиент не передан явно.
	rawBaseURL   string
	transport    http.RoundTripper
	retry        RetryConfig
	rateLimitOps []RateLimitOption
	timeout      time.Duration

	// tokenKind — однократно записываемый слот с определенным типом токена.
	tokenKind atomic.Int32
	kindCalls singleflight.Group
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithBaseURL задает базовый адрес API.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.rawBaseURL = u
		}
	}
}

// WithTransport задает нижележащий транспорт, поверх которого строятся повторы и лимиты.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithHTTPClient задает HTTP-клиент целиком. Цепочка повторов и лимитов в этом случае не строится.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryConfig задает политику повторов временных сбоев.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithRateLimitOptions передает опции транспорту ограничения частоты.
func WithRateLimitOptions(opts ...RateLimitOption) ClientOption {
	return func(c *Client) {
		c.rateLimitOps = append(c.rateLimitOps, opts...)
	}
}

// WithTimeout задает таймаут одного HTTP-запроса.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenKind фиксирует тип токена заранее, без пробных запросов.
func WithTokenKind(k TokenKind) ClientOption {
	return func(c *Client) {
		if k == TokenKindUser || k == TokenKindBot {
			c.tokenKind.Store(int32(k))
		}
	}
}

// NewClient создает новый экземпляр Client.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		id:         uuid.NewString(),
		token:      token,
		rawBaseURL: DefaultBaseURL,
		retry:      DefaultRetryConfig(),
		timeout:    DefaultHTTPTimeout,
		log:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	base, err := url.Parse(c.rawBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", c.rawBaseURL, err)
	}
	if base.Path == "" || base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}
	c.baseURL = base
	c.log = c.log.With("client_id", c.id)

	if c.httpClient == nil {
		rateLimitOpts := append([]RateLimitOption{WithRateLimitLogger(c.log)}, c.rateLimitOps...)
		c.httpClient = &http.Client{
			Timeout: c.timeout,
			Transport: NewRateLimitTransport(
				NewRetryTransport(c.transport, c.retry, c.log),
				rateLimitOpts...,
			),
		}
	}

	return c, nil
}

// ID возвращает уникальный идентификатор клиента.
func (c *Client) ID() string {
	return c.id
}

// getResponse выполняет GET-запрос с явно указанным типом токена.
// path задается относительно базового адреса и уже экранирован.
func (c *Client) getResponse(ctx context.Context, path string, query url.Values, kind TokenKind) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for '%s': %w", path, err)
	}
	// Значение не проверяется заранее: токены могут содержать символы,
	// которые строгие валидаторы заголовков отвергают.
	req.Header["Authorization"] = []string{kind.authorization(c.token)}
	req.Header.Set("Accept", "application/json")

	c.log.DebugContext(ctx, "Executing API request", "path", path, "query", ref.RawQuery, "token_kind", kind)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to '%s' failed: %w", path, err)
	}
	return resp, nil
}

// send выполняет запрос с определенным (или определяемым при первом обращении) типом токена.
func (c *Client) send(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	kind, err := c.ResolveTokenKind(ctx)
	if err != nil {
		return nil, err
	}
	return c.getResponse(ctx, path, query, kind)
}

// getJSON выполняет запрос и декодирует успешный ответ в v.
// Неуспешный статус превращается в классифицированную RequestError.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := c.send(ctx, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		reqErr := classifyStatus(path, resp.StatusCode, string(body))
		if reqErr.IsFatal() {
			c.log.WarnContext(ctx, "API request failed", "path", path, "status", resp.StatusCode, "kind", reqErr.Kind)
		}
		return reqErr
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from '%s': %w", path, err)
	}
	return nil
}

// tryGetJSON работает как getJSON, но отсутствие или недоступность ресурса (403/404)
// не считается ошибкой: возвращается found == false.
func (c *Client) tryGetJSON(ctx context.Context, path string, query url.Values, v any) (bool, error) {
	err := c.getJSON(ctx, path, query, v)
	if err == nil {
		return true, nil
	}
	if IsAbsent(err) {
		c.log.DebugContext(ctx, "Optional resource is absent", "path", path, "error", err)
		return false, nil
	}
	return false, err
}
