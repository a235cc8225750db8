package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures the user can see.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindNetwork    ErrorKind = "network"
	KindRateLimit  ErrorKind = "rate_limit"
	KindNotFound   ErrorKind = "not_found"
	KindExchange   ErrorKind = "exchange"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrRateLimit  = &Error{Kind: KindRateLimit}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrExchange   = &Error{Kind: KindExchange}
)

type Error struct {
	Kind    ErrorKind
	Status  int   // HTTP status, 0 for local errors
	Code    int64 // exchange error code, 0 if none
	Message string
	Err     error
}

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case e.Err != nil:
		msg = msg + ": " + e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s error", e.Kind)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf reports the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
