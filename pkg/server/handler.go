package server

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"

	"github.com/getmockd/webmap/pkg/httputil"
	"github.com/getmockd/webmap/pkg/logging"
	"github.com/getmockd/webmap/pkg/resource"
)

const (
	// DefaultCacheControl is sent with GET responses that set none.
	DefaultCacheControl = "max-age=3600, public"

	// maxDrain bounds how much of a rejected request body is read.
	maxDrain = 1 << 20
)

// Handler serves the resolvers mounted in a Table.
type Handler struct {
	table  *Table
	logger *slog.Logger
}

var _ http.Handler = (*Handler)(nil)

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler returns a Handler dispatching through table.
func NewHandler(table *Table, opts ...HandlerOption) *Handler {
	h := &Handler{table: table, logger: logging.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// request carries per-request state through the handler.
type request struct {
	w        *responseWriter
	r        *http.Request
	logger   *slog.Logger
	prefix   string
	resolver resource.Resolver
	target   resource.Target
	rc       *resource.RequestContext
	err      error
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := uuid.NewString()
	w.Header().Set("X-Request-Id", id)

	req := &request{
		w:      &responseWriter{ResponseWriter: w},
		r:      r,
		logger: h.logger.With("request_id", id),
	}
	defer func() {
		if p := recover(); p != nil {
			req.logger.Error("panic while serving request", "panic", p, "path", r.URL.Path)
			if !req.w.wroteHeader {
				httputil.WriteInternalError(req.w, r, "internal error")
			}
		}
		h.logRequest(req, time.Since(start))
	}()

	h.serve(req)
}

func (h *Handler) serve(req *request) {
	r := req.r
	prefix, res, ok := h.table.Match(r.URL.Path)
	if !ok {
		httputil.WriteNotFound(req.w, r)
		return
	}
	req.prefix = prefix
	req.resolver = res
	policy := res.Policy()

	if !policy.Allows(r.Method) {
		drain(r)
		httputil.WriteMethodNotAllowed(req.w, r, policy.Allow())
		return
	}
	switch r.Method {
	case http.MethodOptions:
		req.w.Header().Set("Allow", policy.Allow())
		req.w.Header().Set("Content-Length", "0")
		req.w.WriteHeader(http.StatusOK)
		return
	case http.MethodTrace:
		writeTrace(req.w, r)
		return
	}
	if expect := r.Header.Get("Expect"); expect != "" && !strings.EqualFold(expect, "100-continue") {
		drain(r)
		httputil.WriteError(req.w, r, http.StatusExpectationFailed, "expectation_failed", "Unsupported expectation "+expect)
		return
	}

	req.target = resource.NewTarget(prefix, r.URL)
	req.rc = resource.FromRequest(r)
	if req.target.HasQuery() && !policy.AllowsQuery {
		h.fail(req, http.StatusNotFound, nil)
		return
	}

	d, err := res.Resolve(r.Context(), req.target, req.rc)
	if errors.Is(err, resource.ErrNotFound) {
		d, err = nil, nil
	}
	if err != nil {
		_ = d.Close()
		h.fail(req, resource.StatusCode(err), err)
		return
	}
	if d == nil {
		h.fail(req, http.StatusNotFound, nil)
		return
	}
	defer func() { _ = d.Close() }()
	h.write(req, d)
}

// fail answers with an error page: the policy's page for status or err when
// one resolves, a generic page otherwise.
func (h *Handler) fail(req *request, status int, err error) {
	req.err = err
	if err != nil {
		req.logger.Error("resolve failed", "path", req.r.URL.Path, "status", status, "kind", resource.Kind(err), "error", err)
	}
	if req.resolver != nil {
		if loc, ok := req.resolver.Policy().ErrorPage(status, err); ok {
			pt := req.target.WithPath(loc)
			pt.Query = ""
			d, perr := req.resolver.Resolve(req.r.Context(), pt, req.rc)
			if perr == nil && d != nil && !d.Redirect {
				defer func() { _ = d.Close() }()
				d.Status = status
				h.write(req, d)
				return
			}
			_ = d.Close()
			req.logger.Warn("error page unavailable", "location", loc, "error", perr)
		}
	}
	msg := http.StatusText(status)
	if err != nil && status != http.StatusNotFound {
		msg = "The request could not be completed."
	}
	httputil.WriteError(req.w, req.r, status, errorCode(status), msg)
}

func (h *Handler) write(req *request, d *resource.Descriptor) {
	w, r := req.w, req.r
	if d.Redirect {
		w.Header().Set("Location", d.Location)
		w.WriteHeader(http.StatusFound)
		return
	}
	if d.StatusCode() < 300 && !httputil.Acceptable(r.Header.Get("Accept"), d.MediaType) {
		httputil.WriteError(w, r, http.StatusNotAcceptable, "not_acceptable", "No representation matches "+r.Header.Get("Accept"))
		return
	}

	for k, vs := range d.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	body := io.Reader(d.Body)
	length := d.Length
	encoding := d.Encoding
	if strings.EqualFold(encoding, "identity") {
		encoding = ""
	}
	if strings.EqualFold(encoding, "gzip") && !acceptsGzip(r) && body != nil {
		gz, err := gzip.NewReader(body)
		if err != nil {
			h.fail(req, http.StatusInternalServerError, &resource.IOError{Op: "gunzip", Location: d.Location, Cause: err})
			return
		}
		defer func() { _ = gz.Close() }()
		body, length, encoding = gz, resource.UnknownLength, ""
	}

	if d.MediaType != "" {
		w.Header().Set("Content-Type", d.MediaType)
	}
	if encoding != "" {
		w.Header().Set("Content-Encoding", encoding)
		w.Header().Add("Vary", "Accept-Encoding")
	}
	if r.Method == http.MethodGet && d.StatusCode() == http.StatusOK && w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", DefaultCacheControl)
	}
	w.Header().Set("Accept-Ranges", "none")
	if length >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	}
	w.WriteHeader(d.StatusCode())

	if r.Method == http.MethodHead || body == nil {
		return
	}
	var (
		n   int64
		err error
	)
	if length >= 0 {
		n, err = io.CopyN(w, body, length)
	} else {
		n, err = io.Copy(w, body)
	}
	if err != nil {
		req.logger.Warn("body transfer incomplete", "location", d.Location, "written", n, "length", length, "error", err)
	}
}

func (h *Handler) logRequest(req *request, elapsed time.Duration) {
	attrs := []any{
		"method", req.r.Method,
		"path", req.r.URL.Path,
		"prefix", displayPrefix(req.prefix),
		"status", req.w.status(),
		"bytes", req.w.written,
		"duration", elapsed,
	}
	switch {
	case req.w.status() >= 500:
		req.logger.Error("request", attrs...)
	case req.w.status() >= 300 && req.w.status() < 400:
		req.logger.Debug("request", attrs...)
	default:
		req.logger.Info("request", attrs...)
	}
}

func acceptsGzip(r *http.Request) bool {
	return httpguts.HeaderValuesContainsToken(r.Header["Accept-Encoding"], "gzip")
}

func drain(r *http.Request) {
	if r.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxDrain))
	}
}

// writeTrace echoes the request back as message/http.
func writeTrace(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "%s %s %s\r\n", r.Method, r.RequestURI, r.Proto)
	if r.Host != "" {
		_, _ = fmt.Fprintf(&buf, "Host: %s\r\n", r.Host)
	}
	h := r.Header.Clone()
	h.Del("Cookie")
	h.Del("Authorization")
	_ = h.Write(&buf)
	buf.WriteString("\r\n")
	w.Header().Set("Content-Type", "message/http")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func errorCode(status int) string {
	text := strings.ToLower(http.StatusText(status))
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(text, " ", "_")
}

// responseWriter records the status and byte count of a response.
type responseWriter struct {
	http.ResponseWriter
	code        int
	written     int64
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *responseWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
