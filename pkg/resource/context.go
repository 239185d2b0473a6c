package resource

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Session cookie names recognised by FromRequest, in lookup order.
var sessionCookies = []string{"JSESSIONID", "session"}

// maxFormBytes bounds url-encoded POST bodies parsed into Params.
const maxFormBytes = 10 << 20

// RequestContext is the read-only view of an inbound request handed to a
// resolver. It is populated by the transport and lives for one request.
type RequestContext struct {
	Method     string
	Header     http.Header
	Params     url.Values
	Body       io.Reader
	SessionID  string
	RemoteAddr string
}

// FromRequest builds a RequestContext from an http.Request. Query parameters
// are always parsed; url-encoded POST bodies are parsed into Params as well,
// in which case Body is left at EOF.
func FromRequest(r *http.Request) *RequestContext {
	rc := &RequestContext{
		Method:     r.Method,
		Header:     r.Header,
		Params:     url.Values{},
		Body:       r.Body,
		RemoteAddr: r.RemoteAddr,
	}
	for k, vs := range r.URL.Query() {
		rc.Params[k] = append(rc.Params[k], vs...)
	}
	if r.Method == http.MethodPost && isFormPost(r) && r.Body != nil {
		if data, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes)); err == nil {
			if form, err := url.ParseQuery(string(data)); err == nil {
				for k, vs := range form {
					rc.Params[k] = append(rc.Params[k], vs...)
				}
			}
		}
	}
	for _, name := range sessionCookies {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			rc.SessionID = c.Value
			break
		}
	}
	return rc
}

func isFormPost(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}

// Param returns the first value of a parameter.
func (rc *RequestContext) Param(name string) string {
	if rc == nil {
		return ""
	}
	return rc.Params.Get(name)
}

// Target is the input of a single resolution: the mount prefix the request
// matched and the residual path, query and fragment under it.
type Target struct {
	Prefix   string
	Path     string
	Query    string
	Fragment string
}

// NewTarget splits a request URI under prefix into a Target. The residual
// path keeps its leading slash, if any.
func NewTarget(prefix string, u *url.URL) Target {
	return Target{
		Prefix:   prefix,
		Path:     strings.TrimPrefix(u.Path, prefix),
		Query:    u.RawQuery,
		Fragment: u.Fragment,
	}
}

// Relative returns the residual path without its leading slash.
func (t Target) Relative() string {
	return strings.TrimPrefix(t.Path, "/")
}

// External returns the request path as seen by the client.
func (t Target) External() string {
	p := t.Prefix + t.Path
	if p == "" {
		return "/"
	}
	return p
}

// HasQuery reports whether the request carried a query string.
func (t Target) HasQuery() bool {
	return t.Query != ""
}

// WithPath returns a copy of t with a different residual path.
func (t Target) WithPath(p string) Target {
	t.Path = p
	return t
}
