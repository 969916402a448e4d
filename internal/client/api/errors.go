package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of failure categories a request can end in.
type Kind int

const (
	// InvalidURL means the endpoint could not be resolved against the base URL.
	// Nothing was sent.
	InvalidURL Kind = iota + 1
	// NoData is reserved for an empty success payload where one was required.
	NoData
	// DecodingError means the body did not match the expected JSON shape.
	DecodingError
	// NetworkError wraps a transport-level failure (DNS, timeout, reset).
	NetworkError
	// ServerError carries an HTTP status outside 200-299.
	ServerError
	// InvalidResponse means a decoded payload lacked a required field.
	InvalidResponse
)

func (k Kind) String() string {
	switch k {
	case InvalidURL:
		return "invalid url"
	case NoData:
		return "no data"
	case DecodingError:
		return "decoding error"
	case NetworkError:
		return "network error"
	case ServerError:
		return "server error"
	case InvalidResponse:
		return "invalid response"
	default:
		return "unknown"
	}
}

// Error is returned by every failing request.
type Error struct {
	Kind Kind
	// StatusCode is set for ServerError. Zero means no HTTP response was
	// available at all.
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	msg := "api: " + e.Kind.String()
	if e.Kind == ServerError {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is match on kind and, for server errors, status.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Kind != ServerError || t.StatusCode == 0 || t.StatusCode == e.StatusCode
}

// Message is the user-facing text for the error overlay.
func (e *Error) Message() string {
	switch e.Kind {
	case InvalidURL:
		return "The request address is invalid."
	case NoData:
		return "The server returned no data."
	case DecodingError:
		return "The server response could not be read."
	case NetworkError:
		return "Could not reach the server. Check your connection and try again."
	case ServerError:
		if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
			return "Your session has expired. Please sign in again."
		}
		return fmt.Sprintf("The server returned an error (status %d).", e.StatusCode)
	case InvalidResponse:
		return "The server returned an unexpected response."
	default:
		return "Something went wrong."
	}
}

// KindOf extracts the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusCode returns the HTTP status carried by a ServerError.
func StatusCode(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == ServerError {
		return e.StatusCode, true
	}
	return 0, false
}

// IsUnauthorized reports whether err is a 401 or 403 from the server.
// The caller decides whether that invalidates the session.
func IsUnauthorized(err error) bool {
	code, ok := StatusCode(err)
	return ok && (code == http.StatusUnauthorized || code == http.StatusForbidden)
}

// UserMessage turns any error into overlay text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
