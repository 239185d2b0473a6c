package resource

import (
	"iter"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Default policy values.
const (
	DefaultWelcome    = "index.html"
	DefaultForeground = "black"
	DefaultBackground = "lightgray"
	DefaultGzipSuffix = "gz"
)

// colorPattern admits CSS color names and hex colors. Listing colors are
// written into a stylesheet, where any other value is replaced by the
// template's unsafe-content marker.
var colorPattern = regexp.MustCompile(`^(#([0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})|[a-zA-Z]+)$`)

// ValidColor reports whether c can be used as a listing color: a CSS color
// name such as "lightgray" or a hex color such as "#ccc".
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}

// DefaultHidden are the patterns hidden when HideWebInf is enabled.
var DefaultHidden = []string{"WEB-INF", "WEB-INF/**"}

// Policy holds the negotiation rules shared by all backends. It is
// populated before the owning resolver is mounted and must not be modified
// afterwards.
type Policy struct {
	mediaTypes    map[string]string
	gzipSuffixes  []string
	pageEncodings []pageEncodingRule
	welcome       []string
	methods       map[string]struct{}
	errorPages    map[string]string
	hidden        []string

	// AllowsQuery reports whether requests with a query string may be
	// resolved. When false, the server treats such requests as not found.
	AllowsQuery bool

	// DisplayDir enables synthesized HTML listings for directories.
	DisplayDir bool

	// HideWebInf hides the WEB-INF tree from resolution and listings.
	HideWebInf bool

	// Foreground and Background are the listing colors. Values that fail
	// ValidColor render as an unusable stylesheet value.
	Foreground string
	Background string
}

// NewPolicy returns a Policy with the default settings: GET, HEAD and TRACE
// allowed, no queries, directory display on, WEB-INF hidden, index.html as
// the only welcome file and "gz" as the only gzip suffix.
func NewPolicy() *Policy {
	return &Policy{
		mediaTypes:   map[string]string{},
		gzipSuffixes: []string{DefaultGzipSuffix},
		welcome:      []string{DefaultWelcome},
		methods: map[string]struct{}{
			http.MethodGet:   {},
			http.MethodHead:  {},
			http.MethodTrace: {},
		},
		errorPages: map[string]string{},
		DisplayDir: true,
		HideWebInf: true,
		Foreground: DefaultForeground,
		Background: DefaultBackground,
	}
}

// Clone returns a deep copy of p.
func (p *Policy) Clone() *Policy {
	c := *p
	c.mediaTypes = make(map[string]string, len(p.mediaTypes))
	for k, v := range p.mediaTypes {
		c.mediaTypes[k] = v
	}
	c.methods = make(map[string]struct{}, len(p.methods))
	for k := range p.methods {
		c.methods[k] = struct{}{}
	}
	c.errorPages = make(map[string]string, len(p.errorPages))
	for k, v := range p.errorPages {
		c.errorPages[k] = v
	}
	c.gzipSuffixes = slices.Clone(p.gzipSuffixes)
	c.pageEncodings = slices.Clone(p.pageEncodings)
	c.welcome = slices.Clone(p.welcome)
	c.hidden = slices.Clone(p.hidden)
	return &c
}

// SetMediaType overrides the media type for a suffix (without the dot).
func (p *Policy) SetMediaType(suffix, mediaType string) {
	p.mediaTypes[strings.ToLower(strings.TrimPrefix(suffix, "."))] = mediaType
}

// MediaType returns the media type for a file name. Names carrying a gzip
// suffix are opaque binary data; otherwise the override table is consulted,
// then the built-in table.
func (p *Policy) MediaType(name string) string {
	if p.IsGzipped(name) {
		return OctetStream
	}
	sfx := suffixOf(name)
	if sfx == "" {
		return OctetStream
	}
	if mt, ok := p.mediaTypes[sfx]; ok {
		return mt
	}
	if mt, ok := defaultMediaTypes[sfx]; ok {
		return mt
	}
	return OctetStream
}

// ContentType returns the media type for name with a charset parameter
// appended when the type is textual and a page-encoding rule matches.
func (p *Policy) ContentType(name string) string {
	mt := p.MediaType(name)
	if !isTextual(mt) {
		return mt
	}
	if cs, ok := p.PageEncoding("/" + strings.TrimPrefix(name, "/")); ok {
		return mt + ";charset=" + cs
	}
	return mt
}

// AddGzipSuffix registers an additional suffix (without the dot) that
// marks gzip-compressed content.
func (p *Policy) AddGzipSuffix(suffix string) {
	suffix = strings.TrimPrefix(suffix, ".")
	if suffix == "" || slices.Contains(p.gzipSuffixes, suffix) {
		return
	}
	p.gzipSuffixes = append(p.gzipSuffixes, suffix)
}

// GzipSuffixes returns the registered gzip suffixes.
func (p *Policy) GzipSuffixes() []string {
	return slices.Clone(p.gzipSuffixes)
}

// IsGzipped reports whether name ends in a gzip suffix.
func (p *Policy) IsGzipped(name string) bool {
	_, ok := p.gzipSuffix(name)
	return ok
}

// StripGzipSuffix removes a trailing gzip suffix from name, if present.
func (p *Policy) StripGzipSuffix(name string) string {
	if sfx, ok := p.gzipSuffix(name); ok {
		return strings.TrimSuffix(name, "."+sfx)
	}
	return name
}

func (p *Policy) gzipSuffix(name string) (string, bool) {
	for _, sfx := range p.gzipSuffixes {
		if strings.HasSuffix(name, "."+sfx) {
			return sfx, true
		}
	}
	return "", false
}

// GzipPaths yields the compressed variants of name to probe, in order.
// Nothing is yielded when name is already compressed or names a directory.
func (p *Policy) GzipPaths(name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if name == "" || strings.HasSuffix(name, "/") || p.IsGzipped(name) {
			return
		}
		for _, sfx := range p.gzipSuffixes {
			if !yield(name + "." + sfx) {
				return
			}
		}
	}
}

// SetWelcome replaces the ordered welcome file list.
func (p *Policy) SetWelcome(names ...string) {
	p.welcome = slices.Clone(names)
}

// Welcome returns the ordered welcome file list.
func (p *Policy) Welcome() []string {
	return slices.Clone(p.welcome)
}

// SetMethods replaces the allowed method set. TRACE is always allowed.
func (p *Policy) SetMethods(methods ...string) {
	p.methods = map[string]struct{}{http.MethodTrace: {}}
	for _, m := range methods {
		p.methods[strings.ToUpper(m)] = struct{}{}
	}
}

// Allows reports whether method is in the allowed set. OPTIONS is always
// answered by the server.
func (p *Policy) Allows(method string) bool {
	if method == http.MethodOptions {
		return true
	}
	_, ok := p.methods[method]
	return ok
}

// Methods returns the allowed methods in sorted order.
func (p *Policy) Methods() []string {
	out := make([]string, 0, len(p.methods))
	for m := range p.methods {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Allow returns the value of an Allow header for this policy.
func (p *Policy) Allow() string {
	return strings.Join(append(p.Methods(), http.MethodOptions), ", ")
}

// SetErrorPage maps a status code or an error kind (see Kind) to a path
// served by the same resolver.
func (p *Policy) SetErrorPage(key, location string) {
	p.errorPages[key] = location
}

// ErrorPage returns the page configured for status, or for the kind of err
// when there is no page for the status.
func (p *Policy) ErrorPage(status int, err error) (string, bool) {
	if loc, ok := p.errorPages[strconv.Itoa(status)]; ok {
		return loc, true
	}
	if err != nil {
		if loc, ok := p.errorPages[Kind(err)]; ok {
			return loc, true
		}
	}
	return "", false
}

// AddHidden registers a doublestar pattern, relative to the resolver root,
// whose matches are hidden. The WEB-INF patterns are implied by HideWebInf.
func (p *Policy) AddHidden(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return &ConfigError{Field: "hidden", Message: "invalid pattern " + strconv.Quote(pattern)}
	}
	p.hidden = append(p.hidden, pattern)
	return nil
}

// Hidden reports whether a slash-separated name, relative to the resolver
// root, must not be served or listed.
func (p *Policy) Hidden(name string) bool {
	name = strings.Trim(name, "/")
	if name == "" {
		return false
	}
	if p.HideWebInf {
		for _, pat := range DefaultHidden {
			if ok, _ := doublestar.Match(pat, name); ok {
				return true
			}
		}
	}
	for _, pat := range p.hidden {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}
