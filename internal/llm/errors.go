package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrInvalidRequest is returned before any network call when a Request is unusable.
var ErrInvalidRequest = errors.New("invalid chat request")

// ErrorKind classifies terminal failures of a chat call so callers can show
// kind-specific guidance.
type ErrorKind int

const (
	// KindRequestFailed is a non-2xx initial response.
	KindRequestFailed ErrorKind = iota + 1
	// KindTimeout is the call exceeding its fixed deadline.
	KindTimeout
	// KindConnection is a transport failure: refused, reset, DNS.
	KindConnection
	// KindStream is a read failure after streaming started.
	KindStream
	// KindCanceled is the caller's context being canceled.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindRequestFailed:
		return "request_failed"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindStream:
		return "stream"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is a terminal chat-call failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRequestFailed:
		return fmt.Sprintf("chat API error (%d): %s", e.StatusCode, e.Detail)
	case KindTimeout:
		return "chat API timeout"
	default:
		if e.Err != nil {
			return fmt.Sprintf("chat API %s error: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("chat API %s error", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a chat-call error, if err is one.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// classify maps a transport or read error to a kind. ctx is the call context
// carrying the fixed deadline; its state wins over the error text.
func classify(ctx context.Context, err error, otherwise ErrorKind) *Error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: otherwise, Err: err}
}

// errorDetail extracts error.message from a JSON error body, falling back to the raw text.
func errorDetail(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil && s != "" {
			return s
		}
	}
	return strings.TrimSpace(string(body))
}
