package resource

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound reports that a path does not exist in a backing store.
var ErrNotFound = errors.New("resource not found")

// ConfigError is returned when a resolver cannot be constructed from its
// arguments. It is fatal at setup time.
type ConfigError struct {
	Kind    string // backend kind, e.g. "zip"
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Kind != "" {
		msg = fmt.Sprintf("%s resolver: %s", e.Kind, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status code for this error.
func (e *ConfigError) StatusCode() int {
	return http.StatusInternalServerError
}

// IOError is returned when reading a backing store or an upstream
// connection fails.
type IOError struct {
	Op       string
	Location string
	Status   int // upstream status, if any
	Cause    error
}

func (e *IOError) Error() string {
	msg := e.Op
	if e.Location != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Location)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: upstream status %d", msg, e.Status)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *IOError) Unwrap() error { return e.Cause }

// StatusCode returns 502 for upstream failures and 500 otherwise.
func (e *IOError) StatusCode() int {
	if e.Status != 0 {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// AdapterError wraps a failure raised by a dynamic-content adapter.
type AdapterError struct {
	Adapter string
	Status  int
	Cause   error
}

func (e *AdapterError) Error() string {
	if e.Adapter != "" {
		return fmt.Sprintf("adapter %s: %v", e.Adapter, e.Cause)
	}
	return fmt.Sprintf("adapter: %v", e.Cause)
}

func (e *AdapterError) Unwrap() error { return e.Cause }

// StatusCode returns the status requested by the adapter, or 500.
func (e *AdapterError) StatusCode() int {
	if e.Status >= 400 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// StatusCode maps an error returned by Resolve to an HTTP status.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrBodyTooLarge) {
		return http.StatusBadGateway
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// Kind returns a short name for the error class, used to key error pages.
func Kind(err error) string {
	var (
		ce *ConfigError
		ie *IOError
		ae *AdapterError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.As(err, &ae):
		return "AdapterError"
	case errors.As(err, &ie):
		return "IOError"
	case errors.As(err, &ce):
		return "ConfigError"
	default:
		return "Error"
	}
}
