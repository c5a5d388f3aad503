package apperror

import (
	"errors"
	"fmt"

	"mining-ledger-go/internal/store"
)

// Kind is the stable, caller-visible category of an error
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func Validation(format string, args ...any) *AppError {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

func InsufficientFunds(format string, args ...any) *AppError {
	return New(KindInsufficientFunds, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...any) *AppError {
	return New(KindNotFound, fmt.Sprintf(format, args...), nil)
}

func Conflict(format string, args ...any) *AppError {
	return New(KindConflict, fmt.Sprintf(format, args...), nil)
}

func Forbidden(format string, args ...any) *AppError {
	return New(KindForbidden, fmt.Sprintf(format, args...), nil)
}

func Internal(message string, err error) *AppError {
	return New(KindInternal, message, err)
}

// KindOf reports the kind of err, or KindInternal when err is not an AppError
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// From maps store sentinels onto caller-facing kinds. Errors that are already
// an AppError pass through unchanged.
func From(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return New(KindNotFound, message, err)
	case errors.Is(err, store.ErrInsufficientFunds):
		return New(KindInsufficientFunds, message, err)
	case errors.Is(err, store.ErrDuplicateTransaction):
		return New(KindConflict, message, err)
	case errors.Is(err, store.ErrConcurrentModification):
		return New(KindConflict, message, err)
	default:
		return New(KindInternal, message, err)
	}
}

// PublicMessage is the message safe to show a caller. Internal errors never
// expose their cause.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Kind == KindInternal {
			return "internal error"
		}
		return appErr.Message
	}
	return "internal error"
}
