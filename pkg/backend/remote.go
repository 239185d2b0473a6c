package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/getmockd/webmap/pkg/resource"
)

const (
	// DefaultMaxBodySize caps upstream bodies that are buffered (10MB).
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 30 * time.Second
)

// hopByHopHeaders are not forwarded upstream.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// partialHeaders ask the upstream for a partial or conditional response.
// Descriptors always carry the full representation, so they are dropped.
var partialHeaders = []string{
	"Range",
	"If-Range",
	"If-Match",
	"If-None-Match",
	"If-Modified-Since",
	"If-Unmodified-Since",
}

// Remote fetches each request from a location under a base address and
// streams the upstream response back.
type Remote struct {
	base
	url       *url.URL
	client    *http.Client
	buffering Buffering
	maxBody   int64
	insecure  bool
}

var _ resource.Resolver = (*Remote)(nil)

// NewRemote parses root.URL once and returns the resolver.
func NewRemote(root RemoteRoot, opts ...Option) (*Remote, error) {
	r := &Remote{
		base:      newBase(KindRemote, opts),
		buffering: root.Buffering,
		maxBody:   root.MaxBodySize,
		insecure:  root.InsecureSkipVerify,
	}
	u, err := parseBase(&r.base, root.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, r.configError("url", "unsupported scheme "+u.Scheme, nil)
	}
	r.url = u
	if r.maxBody <= 0 {
		r.maxBody = DefaultMaxBodySize
	}
	r.client = root.Client
	if r.client == nil {
		r.client = newClient(root.InsecureSkipVerify, root.Timeout)
	}
	if root.InsecureSkipVerify {
		r.logger.Warn("TLS verification disabled for upstream; every proxied request is exposed to interception",
			"url", u.Redacted())
	}
	return r, nil
}

func newClient(insecure bool, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // G402: explicit opt-in per resolver
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		// Upstream redirects are followed; the client only sees the result.
	}
}

// Insecure reports whether TLS verification is disabled.
func (r *Remote) Insecure() bool { return r.insecure }

// Resolve implements resource.Resolver.
func (r *Remote) Resolve(ctx context.Context, t resource.Target, rc *resource.RequestContext) (*resource.Descriptor, error) {
	target := MergeURL(r.url, t)
	target.Fragment = ""

	method := http.MethodGet
	var body io.Reader
	if rc != nil {
		// HEAD is fetched as GET so the declared length stays exact; the
		// server discards the body.
		if rc.Method == http.MethodPost {
			method = http.MethodPost
			body = rc.Body
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, &resource.IOError{Op: "request", Location: target.String(), Cause: err}
	}
	if rc != nil {
		copyHeaders(req.Header, rc.Header)
		removeHopByHopHeaders(req.Header)
		for _, h := range partialHeaders {
			req.Header.Del(h)
		}
		req.Header.Del("Accept-Encoding")
		req.Header.Del("Content-Length")
		if rc.RemoteAddr != "" {
			req.Header.Set("X-Forwarded-For", rc.RemoteAddr)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &resource.IOError{Op: method, Location: target.Redacted(), Cause: err}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, nil
	case resp.StatusCode >= http.StatusMultipleChoices, resp.StatusCode == http.StatusPartialContent:
		// Redirects are followed by the client, so a 3xx here is a 304 or
		// a redirect without a usable Location.
		_ = resp.Body.Close()
		return nil, &resource.IOError{Op: method, Location: target.Redacted(), Status: resp.StatusCode}
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = r.policy.ContentType(target.Path)
	}
	d := resource.NewDescriptor(resp.Body, resp.ContentLength, mediaType)
	d.Location = target.Redacted()
	if resp.StatusCode != http.StatusOK {
		d.Status = resp.StatusCode
	}
	if !resp.Uncompressed {
		d.Encoding = resp.Header.Get("Content-Encoding")
	}
	if err := r.buffering.apply(d, r.maxBody); err != nil {
		if !errors.Is(err, resource.ErrBodyTooLarge) {
			return nil, err
		}
		return nil, &resource.IOError{Op: method, Location: target.Redacted(), Status: resp.StatusCode, Cause: err}
	}
	r.logger.Debug("fetched upstream", "url", d.Location, "status", resp.StatusCode, "length", d.Length)
	return d, nil
}

// copyHeaders copies headers from src to dst.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// removeHopByHopHeaders removes headers that should not be forwarded.
func removeHopByHopHeaders(h http.Header) {
	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}

func (r *Remote) String() string {
	return fmt.Sprintf("remote %s (insecure=%t)", r.url.Redacted(), r.insecure)
}
