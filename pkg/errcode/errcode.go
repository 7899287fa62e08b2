package errcode

import (
	"errors"
	"fmt"
)

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Is reports whether target carries the same code, so wrapped errors still match
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// From returns the business error carried by err, or ErrInternalServer with err's text
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: ErrInternalServer.Code, Msg: err.Error()}
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam   = New(1001, "invalid parameter")
	ErrInternalServer = New(1002, "internal server error")
	ErrUnauthorized   = New(1003, "unauthorized")
	ErrNotFound       = New(1005, "not found")
	ErrInvalidConfig  = New(1008, "invalid config")

	// Auth errors (2xxx)
	ErrTokenInvalid  = New(2001, "token invalid")
	ErrTokenExpired  = New(2002, "token expired")
	ErrTokenMissing  = New(2003, "token missing")
	ErrTokenMismatch = New(2004, "token user mismatch")

	// Conversation errors (4xxx)
	ErrConvNotFound = New(4003, "conversation not found")
	ErrLoadFailed   = New(4007, "conversation load failed")
	ErrSubscription = New(4008, "subscription failed")

	// Transport errors (5xxx)
	ErrConnClosed       = New(5002, "connection closed")
	ErrInvalidProtocol  = New(5003, "invalid protocol")
	ErrWriteChannelFull = New(5004, "write channel full")
	ErrInvalidEvent     = New(5005, "invalid event")
	ErrUnknownEvent     = New(5006, "unknown event")

	// Draft errors (6xxx)
	ErrDraftRead    = New(6001, "draft read failed")
	ErrDraftWrite   = New(6002, "draft write failed")
	ErrDraftBackend = New(6003, "unsupported draft backend")
)
