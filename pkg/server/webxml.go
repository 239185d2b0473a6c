package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/getmockd/webmap/pkg/resource"
)

// WebXMLPath is the deployment descriptor location inside a content root.
const WebXMLPath = "WEB-INF/web.xml"

// WebXML holds the parts of a deployment descriptor that affect how a
// resolver serves content.
type WebXML struct {
	Welcome       []string
	MimeMappings  map[string]string // extension -> media type
	ErrorPages    map[string]string // status code or error kind -> location
	PageEncodings []PageEncoding
}

// PageEncoding is one jsp-property-group entry.
type PageEncoding struct {
	Pattern string
	Charset string
	XML     bool
}

// ReadWebXML loads WEB-INF/web.xml from fsys. A missing descriptor yields
// (nil, nil).
func ReadWebXML(fsys fs.FS) (*WebXML, error) {
	data, err := fs.ReadFile(fsys, WebXMLPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", WebXMLPath, err)
	}
	return ParseWebXML(data)
}

// ParseWebXML parses a deployment descriptor.
func ParseWebXML(data []byte) (*WebXML, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", WebXMLPath, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "web-app" {
		return nil, fmt.Errorf("parse %s: root element must be web-app", WebXMLPath)
	}

	w := &WebXML{
		MimeMappings: map[string]string{},
		ErrorPages:   map[string]string{},
	}
	for _, list := range children(root, "welcome-file-list") {
		for _, f := range children(list, "welcome-file") {
			if name := text(f); name != "" {
				w.Welcome = append(w.Welcome, name)
			}
		}
	}
	for _, m := range children(root, "mime-mapping") {
		ext := strings.TrimPrefix(text(child(m, "extension")), ".")
		mt := text(child(m, "mime-type"))
		if ext != "" && mt != "" {
			w.MimeMappings[ext] = mt
		}
	}
	for _, e := range children(root, "error-page") {
		loc := text(child(e, "location"))
		if loc == "" {
			continue
		}
		if code := text(child(e, "error-code")); code != "" {
			if _, err := strconv.Atoi(code); err != nil {
				return nil, fmt.Errorf("parse %s: bad error-code %q", WebXMLPath, code)
			}
			w.ErrorPages[code] = loc
		}
		if kind := text(child(e, "exception-type")); kind != "" {
			// Only the simple name is meaningful here.
			w.ErrorPages[kind[strings.LastIndexByte(kind, '.')+1:]] = loc
		}
	}
	for _, cfg := range children(root, "jsp-config") {
		for _, g := range children(cfg, "jsp-property-group") {
			charset := text(child(g, "page-encoding"))
			isXML := strings.EqualFold(text(child(g, "is-xml")), "true")
			if charset == "" {
				if !isXML {
					continue
				}
				charset = "UTF-8"
			}
			for _, p := range children(g, "url-pattern") {
				if pat := text(p); pat != "" {
					w.PageEncodings = append(w.PageEncodings, PageEncoding{Pattern: pat, Charset: charset, XML: isXML})
				}
			}
		}
	}
	return w, nil
}

// Apply copies the descriptor settings onto p.
func (w *WebXML) Apply(p *resource.Policy) error {
	if w == nil {
		return nil
	}
	if len(w.Welcome) > 0 {
		p.SetWelcome(w.Welcome...)
	}
	for ext, mt := range w.MimeMappings {
		p.SetMediaType(ext, mt)
	}
	for key, loc := range w.ErrorPages {
		p.SetErrorPage(key, loc)
	}
	for _, pe := range w.PageEncodings {
		if err := p.AddPageEncoding(pe.Pattern, pe.Charset, pe.XML); err != nil {
			return fmt.Errorf("page encoding %q: %w", pe.Pattern, err)
		}
	}
	return nil
}

// children returns the direct children of parent named tag, ignoring any
// namespace prefix.
func children(parent *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range parent.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

func child(parent *etree.Element, tag string) *etree.Element {
	if c := children(parent, tag); len(c) > 0 {
		return c[0]
	}
	return nil
}

func text(e *etree.Element) string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text())
}
