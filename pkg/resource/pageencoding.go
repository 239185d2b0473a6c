package resource

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Page-encoding rule classes in precedence order.
const (
	matchExact = iota
	matchMiddle
	matchPrefix
	matchSuffix
)

var starRuns = regexp.MustCompile(`\*+`)

type pageEncodingRule struct {
	pattern string
	class   int
	literal int
	charset string
	xml     bool
}

func (r pageEncodingRule) match(p string) bool {
	switch r.class {
	case matchExact:
		return p == r.pattern
	case matchPrefix:
		return strings.HasPrefix(p, strings.TrimSuffix(r.pattern, "*"))
	case matchSuffix:
		return strings.HasSuffix(p, strings.TrimPrefix(r.pattern, "*"))
	default:
		ok, _ := doublestar.Match(r.pattern, p)
		return ok
	}
}

// Charset returns the canonical IANA name for a charset label.
func Charset(label string) (string, error) {
	enc, err := LookupCharset(label)
	if err != nil {
		return "", err
	}
	name, err := ianaindex.MIME.Name(enc)
	if err != nil {
		return "", &ConfigError{Field: "charset", Message: "unsupported charset " + label, Cause: err}
	}
	return name, nil
}

// LookupCharset returns the text encoding registered under label.
func LookupCharset(label string) (encoding.Encoding, error) {
	enc, err := ianaindex.MIME.Encoding(label)
	if err != nil {
		return nil, &ConfigError{Field: "charset", Message: "unknown charset " + label, Cause: err}
	}
	if enc == nil {
		return nil, &ConfigError{Field: "charset", Message: "unsupported charset " + label}
	}
	return enc, nil
}

// AddPageEncoding registers a page-encoding rule. A pattern without a
// wildcard matches one path exactly; a trailing "*" matches a path prefix;
// a leading "*" matches a suffix; a "*" elsewhere matches within one path
// segment. Runs of "*" are collapsed.
func (p *Policy) AddPageEncoding(pattern, charset string, xml bool) error {
	cs, err := Charset(charset)
	if err != nil {
		return err
	}
	pattern = starRuns.ReplaceAllString(pattern, "*")
	rule := pageEncodingRule{
		pattern: pattern,
		charset: cs,
		xml:     xml,
		literal: len(strings.ReplaceAll(pattern, "*", "")),
	}
	switch {
	case !strings.Contains(pattern, "*"):
		rule.class = matchExact
	case strings.HasSuffix(pattern, "*") && strings.Count(pattern, "*") == 1:
		rule.class = matchPrefix
	case strings.HasPrefix(pattern, "*") && strings.Count(pattern, "*") == 1:
		rule.class = matchSuffix
	default:
		if !doublestar.ValidatePattern(pattern) {
			return &ConfigError{Field: "pageEncodings", Message: "invalid pattern " + pattern}
		}
		rule.class = matchMiddle
	}
	p.pageEncodings = append(p.pageEncodings, rule)
	return nil
}

func (p *Policy) bestPageEncoding(path string) (pageEncodingRule, bool) {
	var (
		best  pageEncodingRule
		found bool
	)
	for _, r := range p.pageEncodings {
		if !r.match(path) {
			continue
		}
		if !found || r.class < best.class || (r.class == best.class && r.literal > best.literal) {
			best, found = r, true
		}
	}
	return best, found
}

// PageEncoding returns the charset for a request path. Exact rules win over
// wildcard rules; among prefix and suffix rules the longest literal wins.
func (p *Policy) PageEncoding(path string) (string, bool) {
	r, ok := p.bestPageEncoding(path)
	if !ok {
		return "", false
	}
	return r.charset, true
}

// PageType returns "application/xml" when the best page-encoding rule for
// path marks it as XML and "text/html" otherwise.
func (p *Policy) PageType(path string) string {
	if r, ok := p.bestPageEncoding(path); ok && r.xml {
		return "application/xml"
	}
	return "text/html"
}
