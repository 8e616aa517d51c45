package wsclient

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the coarse failure category surfaced to callers.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindConnection   Kind = "connection"
	KindOther        Kind = "other"
)

// ErrorCode represents client error categories.
type ErrorCode string

const (
	ErrCodeInvalidToken         ErrorCode = "invalid_token"
	ErrCodeConnectionFailed     ErrorCode = "connection_failed"
	ErrCodeClientError          ErrorCode = "client_error"
	ErrCodeServerError          ErrorCode = "server_error"
	ErrCodeUnexpectedStatus     ErrorCode = "unexpected_status"
	ErrCodeInvalidResponse      ErrorCode = "invalid_response"
	ErrCodeEncodeBody           ErrorCode = "encode_body"
	ErrCodeRequestFailed        ErrorCode = "request_failed"
	ErrCodeTokenUnavailable     ErrorCode = "token_unavailable"
	ErrCodeKeyUnreadable        ErrorCode = "key_unreadable"
	ErrCodeInvalidKey           ErrorCode = "invalid_key"
	ErrCodeUnsupportedAlgorithm ErrorCode = "unsupported_algorithm"
	ErrCodeSignFailed           ErrorCode = "sign_failed"
	ErrCodeTokenRejected        ErrorCode = "token_rejected"
)

// invalidTokenDetails is the exception detail the web service sends for a rejected session token.
const invalidTokenDetails = "Invalid token"

const otherExceptionPrefix = "Other exception : "

var errorMessages = map[ErrorCode]string{
	ErrCodeInvalidToken:         invalidTokenDetails,
	ErrCodeConnectionFailed:     defaultConnectionErrorMessage,
	ErrCodeTokenUnavailable:     "Session token unavailable",
	ErrCodeKeyUnreadable:        "Signing key unreadable",
	ErrCodeInvalidKey:           "Invalid signing key",
	ErrCodeUnsupportedAlgorithm: "Unsupported algorithm",
	ErrCodeSignFailed:           "Signing failed",
	ErrCodeTokenRejected:        "Token rejected",
}

var codeKinds = map[ErrorCode]Kind{
	ErrCodeInvalidToken:     KindUnauthorized,
	ErrCodeConnectionFailed: KindConnection,
}

// Error wraps client failures with a stable kind, code and message.
type Error struct {
	Kind    Kind
	Code    ErrorCode
	Message string
	// Status is the HTTP status for failures that carry a response, zero otherwise.
	Status int
	// Body is the raw response body, when one was received.
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := strings.TrimRight(e.Message, " :")
	if base == "" {
		base = string(e.Code)
	}
	if e.Status != 0 {
		base = fmt.Sprintf("%s (HTTP %d)", base, e.Status)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Indicator returns the value a caller displays for this failure:
// {"token": "Invalid token"} for a rejected session token, the message otherwise.
func (e *Error) Indicator() any {
	if e.Kind == KindUnauthorized {
		return map[string]string{"token": invalidTokenDetails}
	}
	return e.Message
}

func newError(code ErrorCode, err error) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Kind: kindOf(code), Code: code, Message: msg, Err: err}
}

// newOtherError builds a KindOther failure whose message is the "Other exception"
// text followed by the raw response body, which may be empty.
func newOtherError(code ErrorCode, status int, body []byte, err error) *Error {
	return &Error{
		Kind:    KindOther,
		Code:    code,
		Message: otherExceptionPrefix + string(body),
		Status:  status,
		Body:    body,
		Err:     err,
	}
}

// newResponseError classifies a non-2xx response that did not match the invalid-token shape.
func newResponseError(status int, body []byte) *Error {
	code := ErrCodeUnexpectedStatus
	switch {
	case status >= 400 && status < 500:
		code = ErrCodeClientError
	case status >= 500:
		code = ErrCodeServerError
	}
	return newOtherError(code, status, body, nil)
}

func kindOf(code ErrorCode) Kind {
	if kind, ok := codeKinds[code]; ok {
		return kind
	}
	return KindOther
}

// KindOf reports the kind of err, or "" when err is not a client error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsUnauthorized reports whether the web service rejected the session token.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsConnection reports whether the web service could not be reached.
func IsConnection(err error) bool {
	return KindOf(err) == KindConnection
}
