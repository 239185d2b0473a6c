// Package listing renders HTML indexes for directories, archive entry
// tables and key sets.
package listing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/getmockd/webmap/pkg/resource"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Renderer synthesizes listing descriptors.
type Renderer struct {
	// Charset names the output encoding. Defaults to UTF-8.
	Charset string

	Foreground string
	Background string

	// Hidden reports whether a slash-separated name relative to the
	// listed root must be omitted.
	Hidden func(name string) bool

	// Display maps an entry name to the name shown and linked, e.g. to
	// strip a gzip suffix. Entries mapping to the same name are merged.
	Display func(name string) string
}

// New returns a Renderer configured from a resolver policy.
func New(p *resource.Policy) *Renderer {
	return &Renderer{
		Charset:    "UTF-8",
		Foreground: p.Foreground,
		Background: p.Background,
		Hidden:     p.Hidden,
		Display:    p.StripGzipSuffix,
	}
}

// Entry is one row of a listing.
type Entry struct {
	Name string
	Href string
	Dir  bool
}

type page struct {
	Title      string
	Charset    string
	Foreground string
	Background string
	Parent     bool
	Entries    []Entry
}

// RenderFS lists the directory dir of fsys. dir is slash-separated and
// relative to the root of fsys; pathPrefix is the external URI of the
// directory and is used to build links.
func (r *Renderer) RenderFS(fsys fs.FS, dir, pathPrefix string) (*resource.Descriptor, error) {
	dir = strings.Trim(dir, "/")
	name := dir
	if name == "" {
		name = "."
	}
	des, err := fs.ReadDir(fsys, name)
	if err != nil {
		return nil, &resource.IOError{Op: "readdir", Location: pathPrefix, Cause: err}
	}
	children := make([]string, 0, len(des))
	for _, de := range des {
		child := de.Name()
		if de.IsDir() {
			child += "/"
		}
		children = append(children, child)
	}
	return r.render(dir, children, pathPrefix)
}

// RenderEntries lists the immediate children of dir among a flat set of
// slash-separated names, as found in an archive or a key/value table.
// Intermediate directories are implied by the names that contain them.
func (r *Renderer) RenderEntries(names []string, dir, pathPrefix string) (*resource.Descriptor, error) {
	dir = strings.Trim(dir, "/")
	base := dir
	if base != "" {
		base += "/"
	}
	var children []string
	for _, n := range names {
		n = strings.TrimPrefix(n, "/")
		rest, ok := strings.CutPrefix(n, base)
		if !ok || rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i+1]
		}
		children = append(children, rest)
	}
	return r.render(dir, children, pathPrefix)
}

// Children returns the sorted, de-duplicated entries that a listing of dir
// would show, given the raw child names (directories end in "/").
func (r *Renderer) Children(dir string, raw []string, pathPrefix string) []Entry {
	if !strings.HasSuffix(pathPrefix, "/") {
		pathPrefix += "/"
	}
	seen := make(map[string]bool, len(raw))
	entries := make([]Entry, 0, len(raw))
	for _, child := range raw {
		isDir := strings.HasSuffix(child, "/")
		if r.Hidden != nil && r.Hidden(path.Join(dir, child)) {
			continue
		}
		display := child
		if !isDir && r.Display != nil {
			display = r.Display(child)
		}
		if seen[display] {
			continue
		}
		seen[display] = true
		entries = append(entries, Entry{
			Name: display,
			Href: pathPrefix + (&url.URL{Path: display}).EscapedPath(),
			Dir:  isDir,
		})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries
}

func (r *Renderer) render(dir string, raw []string, pathPrefix string) (*resource.Descriptor, error) {
	charset := r.Charset
	if charset == "" {
		charset = "UTF-8"
	}
	enc, err := r.encoding(charset)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(pathPrefix, "/") {
		pathPrefix += "/"
	}
	p := page{
		Title:      pathPrefix,
		Charset:    charset,
		Foreground: orDefault(r.Foreground, resource.DefaultForeground),
		Background: orDefault(r.Background, resource.DefaultBackground),
		Parent:     dir != "",
		Entries:    r.Children(dir, raw, pathPrefix),
	}
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render listing %s: %w", pathPrefix, err)
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encode listing %s: %w", pathPrefix, err)
	}
	d := resource.NewBytesDescriptor(out, "text/html;charset="+charset)
	d.Location = pathPrefix
	return d, nil
}

func (r *Renderer) encoding(charset string) (encoding.Encoding, error) {
	if strings.EqualFold(charset, "utf-8") {
		return unicode.UTF8, nil
	}
	return resource.LookupCharset(charset)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
