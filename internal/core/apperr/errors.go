// Package apperr 统一的业务错误类型：每个错误携带 HTTP 状态码与稳定的错误码，
// 由 transport 层唯一的映射点序列化。
package apperr

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeAuthentication Code = "AUTHENTICATION_ERROR"
	CodeAuthorization  Code = "AUTHORIZATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeDatabase       Code = "DATABASE_ERROR"
	CodeRateLimit      Code = "RATE_LIMIT_EXCEEDED"
	CodeTimeout        Code = "TIMEOUT"
	CodeUnavailable    Code = "SERVICE_UNAVAILABLE"
	CodeTooLarge       Code = "PAYLOAD_TOO_LARGE"
	CodeInternal       Code = "INTERNAL_ERROR"
)

type Error struct {
	Status  int
	Code    Code
	Msg     string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, details ...string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Msg: msg, Details: details}
}

func Unauthenticated(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeAuthentication, Msg: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeAuthorization, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Msg: msg}
}

func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Msg: msg}
}

func TooManyRequests(msg string) *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: CodeRateLimit, Msg: msg}
}

func Unavailable(msg string) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Code: CodeUnavailable, Msg: msg}
}

func TooLarge(msg string) *Error {
	return &Error{Status: http.StatusRequestEntityTooLarge, Code: CodeTooLarge, Msg: msg}
}

func Internal(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Msg: msg, Err: err}
}

// DB 把 ORM 错误归类：唯一冲突 409，记录不存在 404，其余 400
func DB(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Msg: op + ": record not found", Err: err}
	case IsDuplicate(err):
		return &Error{Status: http.StatusConflict, Code: CodeConflict, Msg: op + ": duplicate value", Err: err}
	default:
		return &Error{Status: http.StatusBadRequest, Code: CodeDatabase, Msg: op + " failed", Err: err}
	}
}

// IsDuplicate 兼容未开启 TranslateError 的驱动
func IsDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}

// From 将任意错误归一为 *Error；未识别的错误视为 500
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &Error{Status: http.StatusUnauthorized, Code: CodeAuthentication, Msg: "token expired", Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return &Error{Status: http.StatusUnauthorized, Code: CodeAuthentication, Msg: "invalid token", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Status: http.StatusGatewayTimeout, Code: CodeTimeout, Msg: "request timed out", Err: err}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Msg: "resource not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Status: http.StatusConflict, Code: CodeConflict, Msg: "duplicate value", Err: err}
	}
	return Internal("internal server error", err)
}
