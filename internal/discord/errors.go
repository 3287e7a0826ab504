package discord

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidToken возвращается, если токен отвергнут сервисом (401) при любой схеме авторизации.
	ErrInvalidToken = errors.New("authentication token is invalid")
	// ErrForbidden возвращается, если доступ к ресурсу запрещен (403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound возвращается, если ресурс не существует (404).
	ErrNotFound = errors.New("not found")
	// ErrRequestFailed возвращается для любого другого неуспешного статуса.
	ErrRequestFailed = errors.New("request failed")
)

// ErrorKind классифицирует неуспешный ответ.
type ErrorKind int

const (
	// ErrorKindFatalAuth — токен недействителен, операция прерывается целиком.
	ErrorKindFatalAuth ErrorKind = iota + 1
	// ErrorKindForbidden — ресурс недоступен; вызывающий решает, фатально ли это.
	ErrorKindForbidden
	// ErrorKindNotFound — ресурс отсутствует; вызывающий решает, фатально ли это.
	ErrorKindNotFound
	// ErrorKindFatal — непредвиденный статус, тело ответа прикладывается для диагностики.
	ErrorKindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindFatalAuth:
		return "fatal_auth"
	case ErrorKindForbidden:
		return "forbidden"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// RequestError описывает неуспешный ответ сервиса вместе с его классификацией.
type RequestError struct {
	Kind       ErrorKind
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case ErrorKindFatalAuth:
		return ErrInvalidToken.Error()
	case ErrorKindForbidden, ErrorKindNotFound:
		return fmt.Sprintf("request to '%s' failed: %s", e.Path, e.Unwrap())
	default:
		status := strings.ToLower(http.StatusText(e.StatusCode))
		if status == "" {
			status = fmt.Sprintf("status %d", e.StatusCode)
		}
		return fmt.Sprintf("request to '%s' failed: %s. Response content: %s", e.Path, status, e.Body)
	}
}

// Unwrap позволяет сравнивать ошибку с сентинелами через errors.Is.
func (e *RequestError) Unwrap() error {
	switch e.Kind {
	case ErrorKindFatalAuth:
		return ErrInvalidToken
	case ErrorKindForbidden:
		return ErrForbidden
	case ErrorKindNotFound:
		return ErrNotFound
	default:
		return ErrRequestFailed
	}
}

// IsFatal сообщает, должна ли ошибка прервать всю операцию.
func (e *RequestError) IsFatal() bool {
	return e.Kind == ErrorKindFatalAuth || e.Kind == ErrorKindFatal
}

// IsAbsent сообщает, что ошибка означает отсутствие или недоступность ресурса (403/404).
// Такие ошибки при необязательных запросах поглощаются на месте.
func IsAbsent(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	return reqErr.Kind == ErrorKindForbidden || reqErr.Kind == ErrorKindNotFound
}

// IsFatal сообщает, что ошибка — фатальная ошибка сервиса (401 или непредвиденный статус).
func IsFatal(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.IsFatal()
}

// classifyStatus строит RequestError для неуспешного статуса.
func classifyStatus(path string, statusCode int, body string) *RequestError {
	e := &RequestError{Path: path, StatusCode: statusCode}
	switch statusCode {
	case http.StatusUnauthorized:
		e.Kind = ErrorKindFatalAuth
	case http.StatusForbidden:
		e.Kind = ErrorKindForbidden
	case http.StatusNotFound:
		e.Kind = ErrorKindNotFound
	default:
		e.Kind = ErrorKindFatal
		e.Body = body
	}
	return e
}
