package discord

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestRetryTransport_RoundTrip(t *testing.T) {
	newRequest := func(t *testing.T, ctx context.Context) *http.Request {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.test/api/v10/guilds/1", nil)
		require.NoError(t, err)
		return req
	}

	t.Run("временный статус повторяется", func(t *testing.T) {
		var calls atomic.Int32
		next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if calls.Add(1) <= 2 {
				return newStubResponse(req, http.StatusServiceUnavailable, nil), nil
			}
			return newStubResponse(req, http.StatusOK, nil), nil
		})
		rt := NewRetryTransport(next, fastRetryConfig(5), discardLogger())

		resp, err := rt.RoundTrip(newRequest(t, context.Background()))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("сетевая ошибка повторяется", func(t *testing.T) {
		var calls atomic.Int32
		next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("connection reset by peer")
			}
			return newStubResponse(req, http.StatusOK, nil), nil
		})
		rt := NewRetryTransport(next, fastRetryConfig(3), discardLogger())

		resp, err := rt.RoundTrip(newRequest(t, context.Background()))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("последний временный ответ возвращается как есть", func(t *testing.T) {
		var calls atomic.Int32
		next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			return newStubResponse(req, http.StatusBadGateway, nil), nil
		})
		rt := NewRetryTransport(next, fastRetryConfig(3), discardLogger())

		resp, err := rt.RoundTrip(newRequest(t, context.Background()))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("постоянный статус не повторяется", func(t *testing.T) {
		var calls atomic.Int32
		next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			return newStubResponse(req, http.StatusNotFound, nil), nil
		})
		rt := NewRetryTransport(next, fastRetryConfig(5), discardLogger())

		resp, err := rt.RoundTrip(newRequest(t, context.Background()))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("отмена контекста прерывает повторы", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			cancel()
			return nil, context.Canceled
		})
		rt := NewRetryTransport(next, fastRetryConfig(5), discardLogger())

		_, err := rt.RoundTrip(newRequest(t, ctx))
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, isTransientStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		assert.False(t, isTransientStatus(code), "status %d", code)
	}
}
