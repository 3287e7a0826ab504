package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TokenKind — схема авторизации, с которой выполняются запросы.
type TokenKind int32

const (
	// TokenKindUnknown — тип еще не определен.
	TokenKindUnknown TokenKind = iota
	// TokenKindUser — пользовательский токен, передается как есть.
	TokenKindUser
	// TokenKindBot — токен бота, передается с префиксом "Bot ".
	TokenKindBot
)

// identityCheckPath — запрос, по которому определяется тип токена.
const identityCheckPath = "users/@me"

func (k TokenKind) String() string {
	switch k {
	case TokenKindUser:
		return "user"
	case TokenKindBot:
		return "bot"
	default:
		return "unknown"
	}
}

// ParseTokenKind разбирает тип токена из конфигурации. Пустая строка и "auto" означают
// автоматическое определение.
func ParseTokenKind(s string) (TokenKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return TokenKindUnknown, nil
	case "user":
		return TokenKindUser, nil
	case "bot":
		return TokenKindBot, nil
	default:
		return TokenKindUnknown, fmt.Errorf("unknown token kind %q (expected auto, user or bot)", s)
	}
}

// authorization возвращает значение заголовка Authorization.
func (k TokenKind) authorization(token string) string {
	if k == TokenKindBot {
		return "Bot " + token
	}
	return token
}

// ResolveTokenKind возвращает тип токена, определяя его пробными запросами при первом обращении.
//
// Определение идемпотентно и детерминировано, поэтому одновременные первые обращения допустимы:
// результат записывается в слот по принципу "первый успех побеждает", а singleflight лишь
// схлопывает одновременные пробы в одну.
func (c *Client) ResolveTokenKind(ctx context.Context) (TokenKind, error) {
	if k := TokenKind(c.tokenKind.Load()); k != TokenKindUnknown {
		return k, nil
	}
	if err := ctx.Err(); err != nil {
		return TokenKindUnknown, err
	}

	// Проба не должна обрываться из-за отмены контекста первого вызывающего:
	// ее результат ждут и другие потоки.
	detectCtx := context.WithoutCancel(ctx)

	ch := c.kindCalls.DoChan("token-kind", func() (any, error) {
		if k := TokenKind(c.tokenKind.Load()); k != TokenKindUnknown {
			return k, nil
		}

		k, err := c.detectTokenKind(detectCtx)
		if err != nil {
			return TokenKindUnknown, err
		}

		c.tokenKind.CompareAndSwap(int32(TokenKindUnknown), int32(k))
		resolved := TokenKind(c.tokenKind.Load())
		c.log.InfoContext(detectCtx, "Token kind resolved", "token_kind", resolved)
		return resolved, nil
	})

	select {
	case <-ctx.Done():
		return TokenKindUnknown, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return TokenKindUnknown, res.Err
		}
		return res.Val.(TokenKind), nil
	}
}

// InvalidateTokenKind сбрасывает запомненный тип токена; следующий запрос определит его заново.
func (c *Client) InvalidateTokenKind() {
	c.tokenKind.Store(int32(TokenKindUnknown))
}

// detectTokenKind пробует схемы по очереди: сначала пользовательскую, затем бота.
// Значение имеет только то, отвергнут ли запрос как неавторизованный.
func (c *Client) detectTokenKind(ctx context.Context) (TokenKind, error) {
	for _, kind := range []TokenKind{TokenKindUser, TokenKindBot} {
		resp, err := c.getResponse(ctx, identityCheckPath, nil, kind)
		if err != nil {
			return TokenKindUnknown, err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			return kind, nil
		}
		c.log.DebugContext(ctx, "Token rejected for scheme", "token_kind", kind)
	}

	c.log.ErrorContext(ctx, "Authentication token rejected by every scheme")
	return TokenKindUnknown, &RequestError{
		Kind:       ErrorKindFatalAuth,
		Path:       identityCheckPath,
		StatusCode: http.StatusUnauthorized,
	}
}
