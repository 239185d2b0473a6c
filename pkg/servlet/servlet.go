// Package servlet defines the contract for dynamic-content adapters.
//
// An Adapter produces responses in code instead of reading them from a
// backing store. It is configured once through Init with a flat parameter
// table, serves requests through one method per HTTP verb, and is released
// through Destroy. The package has no dependency on the serving layer, so
// adapters can be written and tested on their own.
package servlet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Adapter is implemented by dynamic-content providers.
type Adapter interface {
	Init(params map[string]string) error
	Destroy()
	DoGet(ctx context.Context, req *Request, resp *Response) error
	DoPost(ctx context.Context, req *Request, resp *Response) error
	DoPut(ctx context.Context, req *Request, resp *Response) error
	DoDelete(ctx context.Context, req *Request, resp *Response) error
}

// Request is the adapter's view of an inbound request.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Header     http.Header
	Body       io.Reader
	SessionID  string
	RemoteAddr string
}

// Param returns the first value of a query or form parameter.
func (r *Request) Param(name string) string {
	return r.Query.Get(name)
}

// Response collects an adapter's output.
type Response struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

// NewResponse returns an empty Response with status 200.
func NewResponse() *Response {
	return &Response{header: http.Header{}, status: http.StatusOK}
}

// Header returns the response headers.
func (r *Response) Header() http.Header { return r.header }

// WriteHeader sets the response status.
func (r *Response) WriteHeader(status int) { r.status = status }

// Write appends to the response body.
func (r *Response) Write(p []byte) (int, error) { return r.buf.Write(p) }

// WriteString appends a string to the response body.
func (r *Response) WriteString(s string) (int, error) { return r.buf.WriteString(s) }

// SetContentType sets the Content-Type header.
func (r *Response) SetContentType(ct string) { r.header.Set("Content-Type", ct) }

// Status returns the response status.
func (r *Response) Status() int { return r.status }

// Bytes returns the response body.
func (r *Response) Bytes() []byte { return r.buf.Bytes() }

// Error is the error kind raised by adapters.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status carried by the error.
func (e *Error) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// ErrMethodNotAllowed is wrapped by the default verb handlers of Base.
var ErrMethodNotAllowed = errors.New("method not allowed")

// MethodNotAllowed returns the error used for unimplemented verbs.
func MethodNotAllowed(method string) error {
	return &Error{Status: http.StatusMethodNotAllowed, Message: method, Cause: ErrMethodNotAllowed}
}

// Base provides default implementations of every Adapter method. Embed it
// and override the verbs an adapter supports; the rest answer 405.
type Base struct{}

func (Base) Init(map[string]string) error { return nil }

func (Base) Destroy() {}

func (Base) DoGet(context.Context, *Request, *Response) error {
	return MethodNotAllowed(http.MethodGet)
}

func (Base) DoPost(context.Context, *Request, *Response) error {
	return MethodNotAllowed(http.MethodPost)
}

func (Base) DoPut(context.Context, *Request, *Response) error {
	return MethodNotAllowed(http.MethodPut)
}

func (Base) DoDelete(context.Context, *Request, *Response) error {
	return MethodNotAllowed(http.MethodDelete)
}

// HandlerFunc adapts a function to a GET-only Adapter.
type HandlerFunc func(ctx context.Context, req *Request, resp *Response) error

// Func returns an Adapter that serves GET with fn.
func Func(fn HandlerFunc) Adapter {
	return funcAdapter{fn: fn}
}

type funcAdapter struct {
	Base
	fn HandlerFunc
}

func (a funcAdapter) DoGet(ctx context.Context, req *Request, resp *Response) error {
	return a.fn(ctx, req, resp)
}
