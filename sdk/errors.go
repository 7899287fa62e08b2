package sdk

import (
	"errors"
	"fmt"
)

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Common error codes
const (
	CodeSuccess        = 0
	CodeInvalidParam   = 1001
	CodeInternalServer = 1002
	CodeUnauthorized   = 1003
	CodeNotFound       = 1005
	CodeTokenInvalid   = 2001
	CodeTokenExpired   = 2002
	CodeConvNotFound   = 4003
)

// IsErrorCode checks if err is an API error with the given code
func IsErrorCode(err error, code int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsUnauthorized checks if the token was rejected
func IsUnauthorized(err error) bool {
	return IsErrorCode(err, CodeUnauthorized) || IsErrorCode(err, CodeTokenInvalid) || IsErrorCode(err, CodeTokenExpired)
}
