package log

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

// TokenMaskerHandler - обертка для slog.Handler, которая маскирует токены в логах
type TokenMaskerHandler struct {
	handler slog.Handler
	secrets []string
}

// NewTokenMaskerHandler создает новый обработчик с маскировкой токенов.
// Помимо токенов, распознаваемых по формату, маскируются явно переданные секреты.
func NewTokenMaskerHandler(handler slog.Handler, secrets ...string) *TokenMaskerHandler {
	return &TokenMaskerHandler{
		handler: handler,
		secrets: slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" }),
	}
}

const tokenMask = "***masked-token***"

var (
	// токен из трех частей base64url: идентификатор, отметка времени, подпись
	discordTokenRegex = regexp.MustCompile(`[A-Za-z0-9_-]{23,28}\.[A-Za-z0-9_-]{6,7}\.[A-Za-z0-9_-]{27,}`)
	// устаревший токен аккаунта с двухфакторной аутентификацией
	mfaTokenRegex = regexp.MustCompile(`\bmfa\.[A-Za-z0-9_-]{20,}`)
)

// maskTokens заменяет найденные токены и секреты на маску
func maskTokens(text string, secrets []string) string {
	for _, secret := range secrets {
		text = strings.ReplaceAll(text, secret, tokenMask)
	}
	text = discordTokenRegex.ReplaceAllString(text, tokenMask)
	return mfaTokenRegex.ReplaceAllString(text, tokenMask)
}

func (h *TokenMaskerHandler) mask(text string) string {
	return maskTokens(text, h.secrets)
}

// Enabled реализует интерфейс slog.Handler
func (h *TokenMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *TokenMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	// Создаем полную, изолированную копию записи.
	// Это предотвращает гонку данных, так как мы больше не работаем
	// с оригинальной записью, которую slog может переиспользовать.
	// Метод Clone() также обнуляет атрибуты в копии, поэтому их нужно добавить заново.
	r := record.Clone()

	// Маскируем основное сообщение.
	r.Message = h.mask(r.Message)

	// Итерируемся по атрибутам оригинальной записи и добавляем их маскированные версии в клон.
	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(slog.Attr{
			Key:   a.Key,
			Value: h.maskValue(a.Value),
		})
		return true
	})

	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler
func (h *TokenMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		maskedAttrs[i] = slog.Attr{
			Key:   attr.Key,
			Value: h.maskValue(attr.Value),
		}
	}
	return &TokenMaskerHandler{
		handler: h.handler.WithAttrs(maskedAttrs),
		secrets: h.secrets,
	}
}

// WithGroup реализует интерфейс slog.Handler
func (h *TokenMaskerHandler) WithGroup(name string) slog.Handler {
	return &TokenMaskerHandler{
		handler: h.handler.WithGroup(name),
		secrets: h.secrets,
	}
}

// maskValue рекурсивно маскирует значения атрибутов
func (h *TokenMaskerHandler) maskValue(value slog.Value) slog.Value {
	value = value.Resolve()

	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(h.mask(value.String()))
	case slog.KindAny:
		// Это основной фикс: мы проверяем, не является ли значение ошибкой.
		// Если да, то преобразуем ошибку в строку и маскируем ее.
		if err, ok := value.Any().(error); ok {
			return slog.StringValue(h.mask(err.Error()))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		maskedGroup := make([]slog.Attr, len(group))
		for i, attr := range group {
			maskedGroup[i] = slog.Attr{
				Key:   attr.Key,
				Value: h.maskValue(attr.Value),
			}
		}
		return slog.GroupValue(maskedGroup...)
	default:
		// Для других типов возвращаем оригинальное значение
		return value
	}
}

// NewMaskedLogger создает новый экземпляр slog.Logger с маскировкой токенов
func NewMaskedLogger(handler slog.Handler, secrets ...string) *slog.Logger {
	return slog.New(NewTokenMaskerHandler(handler, secrets...))
}
