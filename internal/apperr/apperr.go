package apperr

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/go-errors/errors"
)

type Type string

const (
	TypeNotFound     Type = "NOT_FOUND"
	TypeInvalidInput Type = "INVALID_INPUT"
	TypeConflict     Type = "CONFLICT"
	TypeUnauthorized Type = "UNAUTHORIZED"
	TypeInternal     Type = "INTERNAL"
	TypeUnavailable  Type = "UNAVAILABLE"
	TypeRateLimit    Type = "RATE_LIMIT"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Type    Type
	Message string
	Fields  []FieldError
	Err     error
	Stack   []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StackTrace() []byte {
	return e.Stack
}

func New(errType Type, message string, err error) *Error {
	var stack []byte
	if err != nil {
		var stackErr *goerrors.Error
		if errors.As(err, &stackErr) {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &Error{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func NotFound(message string, err error) *Error {
	return New(TypeNotFound, message, err)
}

func InvalidInput(message string, err error) *Error {
	return New(TypeInvalidInput, message, err)
}

// Validation builds an InvalidInput error carrying per-field details.
func Validation(fields []FieldError) *Error {
	e := New(TypeInvalidInput, "validation failed", nil)
	e.Fields = fields
	return e
}

func Conflict(message string, err error) *Error {
	return New(TypeConflict, message, err)
}

func Unauthorized(message string, err error) *Error {
	return New(TypeUnauthorized, message, err)
}

func Internal(message string, err error) *Error {
	return New(TypeInternal, message, err)
}

func Unavailable(message string, err error) *Error {
	return New(TypeUnavailable, message, err)
}

func RateLimit(message string, err error) *Error {
	return New(TypeRateLimit, message, err)
}

// Is reports whether err (or anything it wraps) is an *Error of the given type.
func Is(err error, errType Type) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

func HTTPStatus(errType Type) int {
	switch errType {
	case TypeNotFound:
		return http.StatusNotFound
	case TypeInvalidInput:
		return http.StatusBadRequest
	case TypeConflict:
		return http.StatusConflict
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
