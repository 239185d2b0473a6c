package backend

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/webmap/pkg/listing"
	"github.com/getmockd/webmap/pkg/logging"
	"github.com/getmockd/webmap/pkg/resource"
	"github.com/getmockd/webmap/pkg/servlet"
)

// Kind tags identify backends in configuration files.
const (
	KindDir      = "dir"
	KindZip      = "zip"
	KindTable    = "table"
	KindBundle   = "bundle"
	KindRedirect = "redirect"
	KindRemote   = "remote"
	KindAdapter  = "adapter"
)

// Root describes the backing store of a resolver. It is implemented only by
// the variants in this package.
type Root interface {
	Kind() string
	root()
}

// DirRoot is a filesystem directory.
type DirRoot struct {
	Path string
}

// ArchiveRoot is a zip or jar file on disk.
type ArchiveRoot struct {
	Path string
}

// TableRoot is an in-memory key/value table. Keys are slash-separated
// names relative to the mount prefix, without a leading slash.
type TableRoot struct {
	Table map[string][]byte
}

// Buffering selects when a backend reads a body fully into memory to learn
// its exact length.
type Buffering int

const (
	// BufferUnknown buffers only bodies whose length is not known.
	BufferUnknown Buffering = iota
	// BufferAlways buffers every body.
	BufferAlways
	// BufferNever streams bodies of unknown length as-is.
	BufferNever
)

// ParseBuffering parses "unknown", "always" or "never". The empty string
// means BufferUnknown.
func ParseBuffering(s string) (Buffering, error) {
	switch strings.ToLower(s) {
	case "", "unknown":
		return BufferUnknown, nil
	case "always":
		return BufferAlways, nil
	case "never":
		return BufferNever, nil
	}
	return BufferUnknown, fmt.Errorf("invalid buffering mode %q", s)
}

func (b Buffering) String() string {
	switch b {
	case BufferAlways:
		return "always"
	case BufferNever:
		return "never"
	default:
		return "unknown"
	}
}

// apply buffers d according to b.
func (b Buffering) apply(d *resource.Descriptor, limit int64) error {
	switch {
	case b == BufferAlways, b == BufferUnknown && d.Length == resource.UnknownLength:
		return d.BufferLimit(limit)
	}
	return nil
}

// BundleRoot is a tree of bundled resources, typically an embed.FS. Prefix
// names a directory inside FS or a packaged .zip/.jar file.
type BundleRoot struct {
	FS        fs.FS
	Prefix    string
	Buffering Buffering
}

// RedirectRoot redirects every request to a location under URL.
type RedirectRoot struct {
	URL string
}

// RemoteRoot proxies requests to a location under URL.
type RemoteRoot struct {
	URL string

	// InsecureSkipVerify disables TLS certificate and host name
	// verification for every request proxied through this resolver.
	// It weakens transport security and must only be enabled explicitly.
	InsecureSkipVerify bool

	Buffering Buffering

	// MaxBodySize caps buffered bodies. Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// Timeout bounds each upstream request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Client overrides the HTTP client. InsecureSkipVerify and Timeout
	// are ignored when it is set.
	Client *http.Client
}

// AdapterRoot serves responses produced by a dynamic-content adapter.
type AdapterRoot struct {
	Name    string
	Adapter servlet.Adapter
	Params  map[string]string
}

func (DirRoot) Kind() string      { return KindDir }
func (ArchiveRoot) Kind() string  { return KindZip }
func (TableRoot) Kind() string    { return KindTable }
func (BundleRoot) Kind() string   { return KindBundle }
func (RedirectRoot) Kind() string { return KindRedirect }
func (RemoteRoot) Kind() string   { return KindRemote }
func (AdapterRoot) Kind() string  { return KindAdapter }

func (DirRoot) root()      {}
func (ArchiveRoot) root()  {}
func (TableRoot) root()    {}
func (BundleRoot) root()   {}
func (RedirectRoot) root() {}
func (RemoteRoot) root()   {}
func (AdapterRoot) root()  {}

// Option configures a backend.
type Option func(*options)

type options struct {
	policy *resource.Policy
	logger *slog.Logger
}

// WithPolicy sets the resolver policy. Without it the backend uses
// DefaultPolicy for its kind.
func WithPolicy(p *resource.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// DefaultPolicy returns the default policy for a backend kind. Redirect,
// remote and adapter resolvers accept queries; adapters also accept POST,
// PUT and DELETE.
func DefaultPolicy(kind string) *resource.Policy {
	p := resource.NewPolicy()
	switch kind {
	case KindRedirect, KindRemote:
		p.AllowsQuery = true
	case KindAdapter:
		p.AllowsQuery = true
		p.SetMethods(http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
	return p
}

// base carries the state every backend shares.
type base struct {
	kind   string
	policy *resource.Policy
	logger *slog.Logger
	lister *listing.Renderer
}

func newBase(kind string, opts []Option) base {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy == nil {
		o.policy = DefaultPolicy(kind)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	return base{
		kind:   kind,
		policy: o.policy,
		logger: o.logger.With("backend", kind),
		lister: listing.New(o.policy),
	}
}

// Policy returns the resolver policy.
func (b *base) Policy() *resource.Policy { return b.policy }

// Kind returns the backend kind tag.
func (b *base) Kind() string { return b.kind }

func (b *base) configError(field, msg string, cause error) error {
	return &resource.ConfigError{Kind: b.kind, Field: field, Message: msg, Cause: cause}
}

// New builds the resolver described by root.
func New(root Root, opts ...Option) (resource.Resolver, error) {
	var (
		res resource.Resolver
		err error
	)
	switch r := root.(type) {
	case DirRoot:
		res, err = asResolver(NewDir(r, opts...))
	case ArchiveRoot:
		res, err = asResolver(NewArchive(r, opts...))
	case TableRoot:
		res, err = asResolver(NewTable(r, opts...))
	case BundleRoot:
		res, err = asResolver(NewBundle(r, opts...))
	case RedirectRoot:
		res, err = asResolver(NewRedirect(r, opts...))
	case RemoteRoot:
		res, err = asResolver(NewRemote(r, opts...))
	case AdapterRoot:
		res, err = asResolver(NewAdapter(r, opts...))
	case nil:
		err = &resource.ConfigError{Message: "missing root"}
	default:
		err = &resource.ConfigError{Kind: root.Kind(), Message: "unsupported root"}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// asResolver keeps a typed nil pointer out of the returned interface.
func asResolver(r resource.Resolver, err error) (resource.Resolver, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

// redirectToDir returns a redirect adding a trailing slash to the request
// path, keeping its query.
func redirectToDir(t resource.Target) *resource.Descriptor {
	loc := t.External() + "/"
	if t.Query != "" {
		loc += "?" + t.Query
	}
	return resource.NewRedirect(loc)
}
