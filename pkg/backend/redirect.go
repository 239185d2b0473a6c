package backend

import (
	"context"
	"net/url"
	"strings"

	"github.com/getmockd/webmap/pkg/resource"
)

// parseBase parses an absolute base address.
func parseBase(b *base, raw string) (*url.URL, error) {
	if raw == "" {
		return nil, b.configError("url", "must not be empty", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, b.configError("url", "cannot parse "+raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, b.configError("url", "must be an absolute URL with a host: "+raw, nil)
	}
	return u, nil
}

// MergeURL merges the residual path, query and fragment of t onto base.
// The scheme and authority of base are always kept. An empty residual path
// maps to the base path and, when the request has no query, keeps the base
// query; any other path is cleaned and resolved under the base path as a
// directory, so ".." segments never climb above it.
func MergeURL(base *url.URL, t resource.Target) *url.URL {
	u := *base
	u.Fragment = t.Fragment
	u.RawFragment = ""

	rel := resource.CleanPath(t.Path)
	if rel == "" {
		if t.Query != "" {
			u.RawQuery = t.Query
		}
		return &u
	}

	dir := *base
	if !strings.HasSuffix(dir.Path, "/") {
		dir.Path += "/"
		dir.RawPath = ""
	}
	ref := dir.ResolveReference(&url.URL{Path: rel})
	u.Path = ref.Path
	u.RawPath = ref.RawPath
	u.RawQuery = t.Query
	return &u
}

// Redirect answers every request with a redirect to a location under a
// base address. It never opens a connection.
type Redirect struct {
	base
	url *url.URL
}

var _ resource.Resolver = (*Redirect)(nil)

// NewRedirect parses root.URL once and returns the resolver.
func NewRedirect(root RedirectRoot, opts ...Option) (*Redirect, error) {
	r := &Redirect{base: newBase(KindRedirect, opts)}
	u, err := parseBase(&r.base, root.URL)
	if err != nil {
		return nil, err
	}
	r.url = u
	return r, nil
}

// URL returns a copy of the base address.
func (r *Redirect) URL() *url.URL {
	u := *r.url
	return &u
}

// Resolve implements resource.Resolver.
func (r *Redirect) Resolve(_ context.Context, t resource.Target, _ *resource.RequestContext) (*resource.Descriptor, error) {
	target := MergeURL(r.url, t).String()
	r.logger.Debug("redirect", "path", t.Path, "location", target)
	return resource.NewRedirect(target), nil
}
