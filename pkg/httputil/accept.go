package httputil

import (
	"mime"
	"strconv"
	"strings"
)

// AcceptRange is one media range of an Accept header.
type AcceptRange struct {
	Type    string
	Subtype string
	Q       float64
}

// ParseAccept parses an Accept header. Malformed ranges are skipped.
func ParseAccept(header string) []AcceptRange {
	var out []AcceptRange
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mt, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		typ, sub, ok := strings.Cut(mt, "/")
		if !ok {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		out = append(out, AcceptRange{Type: typ, Subtype: sub, Q: q})
	}
	return out
}

// Matches reports whether the range admits mediaType.
func (a AcceptRange) Matches(mediaType string) bool {
	if a.Q <= 0 {
		return false
	}
	typ, sub, _ := strings.Cut(baseType(mediaType), "/")
	switch {
	case a.Type == "*":
		return true
	case a.Type != typ:
		return false
	default:
		return a.Subtype == "*" || a.Subtype == sub
	}
}

// Acceptable reports whether a response of mediaType satisfies the Accept
// header. An empty or unparsable header accepts everything.
func Acceptable(header, mediaType string) bool {
	ranges := ParseAccept(header)
	if len(ranges) == 0 || mediaType == "" {
		return true
	}
	for _, r := range ranges {
		if r.Matches(mediaType) {
			return true
		}
	}
	return false
}

// PrefersJSON reports whether the Accept header ranks application/json
// above text/html.
func PrefersJSON(header string) bool {
	var jsonQ, htmlQ float64
	for _, r := range ParseAccept(header) {
		switch {
		case r.Type == "application" && r.Subtype == "json":
			jsonQ = max(jsonQ, r.Q)
		case r.Type == "text" && r.Subtype == "html":
			htmlQ = max(htmlQ, r.Q)
		}
	}
	return jsonQ > htmlQ
}

func baseType(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt, _, _ = strings.Cut(mediaType, ";")
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return mt
}
