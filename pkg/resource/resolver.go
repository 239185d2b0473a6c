package resource

import (
	"context"
	"errors"
	"path"
	"strings"
)

// Resolver turns the residual path of a request into a Descriptor.
//
// Resolve returns (nil, nil) or ErrNotFound when the path does not exist,
// and a non-nil error for I/O or adapter failures. Implementations must be
// safe for concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, t Target, rc *RequestContext) (*Descriptor, error)
	Policy() *Policy
}

// Attacher is implemented by resolvers that need setup when mounted.
type Attacher interface {
	Attach(ctx context.Context) error
}

// Detacher is implemented by resolvers that need teardown when unmounted.
type Detacher interface {
	Detach() error
}

// OpenFunc looks up a single backend name. It returns (nil, nil) on a miss.
type OpenFunc func(name string) (*Descriptor, error)

// ProbeGzip opens name and, when it is absent, each gzip candidate of name
// in turn. A candidate hit is returned with Encoding "gzip" and the media
// type of the uncompressed name.
func ProbeGzip(p *Policy, name string, open OpenFunc) (*Descriptor, error) {
	d, err := open(name)
	if err != nil || d != nil {
		return d, err
	}
	for candidate := range p.GzipPaths(name) {
		d, err := open(candidate)
		if err != nil {
			return nil, err
		}
		if d != nil {
			d.Encoding = "gzip"
			d.MediaType = p.ContentType(name)
			return d, nil
		}
	}
	return nil, nil
}

// ResolveWelcome probes the welcome files of r under the directory-style
// target t in order. The first hit is returned with Welcome set.
func ResolveWelcome(ctx context.Context, r Resolver, t Target, rc *RequestContext) (*Descriptor, error) {
	base := t.Path
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	for _, w := range r.Policy().Welcome() {
		d, err := r.Resolve(ctx, t.WithPath(base+w), rc)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if d != nil {
			d.Welcome = true
			return d, nil
		}
	}
	return nil, nil
}

// CleanPath normalizes a residual path into a slash-separated name with no
// leading slash. A trailing slash is preserved so callers can still detect a
// directory-style request. Paths that climb above the root collapse to it.
func CleanPath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	dir := strings.HasSuffix(p, "/")
	c := strings.TrimPrefix(path.Clean("/"+p), "/")
	if dir && c != "" {
		c += "/"
	}
	return c
}

// IsDirectoryStyle reports whether a residual path names a directory: it is
// empty or ends with a slash.
func IsDirectoryStyle(p string) bool {
	return p == "" || p == "/" || strings.HasSuffix(p, "/")
}
