package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a typed pipeline error. Code carries the HTTP status when one is known.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given type
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates an Error of the given type around err
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// NewAuthError reports a missing, rejected or expired session.
func NewAuthError(message string, code int) *Error {
	return &Error{Type: ErrorTypeAuth, Message: message, Code: code}
}

// NewNotFoundError reports an order id the source does not know.
func NewNotFoundError(orderID string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: fmt.Sprintf("order %s not found", orderID), Code: 404}
}

// NewParseError reports a response that does not match the expected shape.
func NewParseError(message string, err error) *Error {
	return &Error{Type: ErrorTypeParsing, Message: message, Err: err}
}

// NewStorageError reports a failed storage operation on key.
func NewStorageError(op, key string, err error) *Error {
	return &Error{Type: ErrorTypeStorage, Message: fmt.Sprintf("%s %s", op, key), Err: err}
}

// CrawlError is returned when the listing crawl cannot continue. LastCompletedPage is the
// last page whose rows were all yielded (0 when none was).
type CrawlError struct {
	LastCompletedPage int
	Err               error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl failed after page %d: %v", e.LastCompletedPage, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// TypeOf returns the ErrorType of the first *Error in err's chain.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return ""
	}
	return ErrorTypeUnknown
}

func IsAuth(err error) bool     { return TypeOf(err) == ErrorTypeAuth }
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }
func IsParsing(err error) bool  { return TypeOf(err) == ErrorTypeParsing }
func IsStorage(err error) bool  { return TypeOf(err) == ErrorTypeStorage }

// AsCrawlError extracts a *CrawlError from err's chain.
func AsCrawlError(err error) (*CrawlError, bool) {
	var ce *CrawlError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
