// Package common — errors.go определяет таксономию ошибок,
// общую для всех модулей сервиса.
// Каждая ошибка несёт вид (Kind), публичное сообщение и HTTP-статус,
// чтобы обработчики отвечали единообразно.
package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind — категория ошибки.
type Kind int

const (
	KindInternal      Kind = iota // всё непредвиденное (хранилище, сеть)
	KindValidation                // некорректный ввод
	KindNotFound                  // документ не существует
	KindStateConflict             // операция невозможна в текущем состоянии
	KindAuth                      // нет учётных данных или они невалидны
	KindForbidden                 // учётные данные есть, прав нет
	KindConfiguration             // не задан секрет или параметр окружения
	KindUpstream                  // внешний сервис отказал или недоступен
)

// String — человекочитаемое имя вида (для логов).
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error — ошибка с публичным сообщением.
// Err — внутренняя причина, в ответ клиенту попадает только через details.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибки по виду и сообщению.
// Так sentinel-значения находятся через errors.Is даже после Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Wrap возвращает копию sentinel-ошибки с причиной.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func newError(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Status: status}
}

// Конструкторы по видам.

func Validation(msg string) *Error    { return newError(KindValidation, http.StatusBadRequest, msg) }
func NotFound(msg string) *Error      { return newError(KindNotFound, http.StatusNotFound, msg) }
func StateConflict(msg string) *Error { return newError(KindStateConflict, http.StatusBadRequest, msg) }
func Auth(msg string) *Error          { return newError(KindAuth, http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error     { return newError(KindForbidden, http.StatusForbidden, msg) }
func Configuration(msg string) *Error {
	return newError(KindConfiguration, http.StatusInternalServerError, msg)
}

// Upstream — внешний сервис. status: 401, если провайдер отверг данные; 502, если недоступен.
func Upstream(status int, msg string) *Error { return newError(KindUpstream, status, msg) }

// Internal оборачивает непредвиденную ошибку.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Status: http.StatusInternalServerError, Err: err}
}

// MsgInternal — публичный текст для непредвиденных ошибок.
const MsgInternal = "Internal server error"

// Общие ошибки аутентификации
var (
	// ErrUnauthenticated — заголовок Authorization отсутствует или не Bearer
	ErrUnauthenticated = Auth("Unauthorized. Missing token.")
	// ErrTokenExpired — срок действия токена истёк
	ErrTokenExpired = Auth("トークンの期限が切れています")
	// ErrInvalidToken — подпись или формат токена неверны
	ErrInvalidToken = Auth("認証トークンが無効です")
	// ErrNotAdmin — у аккаунта нет роли admin
	ErrNotAdmin = Forbidden("Forbidden. Admin role required.")
)

// KindOf возвращает вид ошибки. Ошибки вне таксономии считаются внутренними.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus возвращает HTTP-статус для ошибки.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage возвращает текст, который можно показать клиенту.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return MsgInternal
}
