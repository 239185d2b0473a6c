package listing

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/getmockd/webmap/pkg/resource"
)

// anchors returns the href of every listing-entry anchor in a page.
func anchors(t *testing.T, d *resource.Descriptor) []string {
	t.Helper()
	defer func() { _ = d.Close() }()

	data, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), d.Length)

	doc, err := html.Parse(bytes.NewReader(data))
	require.NoError(t, err)

	var hrefs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href string
			entry := false
			for _, a := range n.Attr {
				switch a.Key {
				case "href":
					href = a.Val
				case "class":
					entry = strings.Contains(a.Val, "listing-entry")
				}
			}
			if entry {
				hrefs = append(hrefs, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs
}

func TestRenderFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"a.html":          {Data: []byte("a")},
		"b.txt.gz":        {Data: []byte("b")},
		"b.txt":           {Data: []byte("b")},
		"sub/c.css":       {Data: []byte("c")},
		"WEB-INF/web.xml": {Data: []byte("<web-app/>")},
		"with space.txt":  {Data: []byte("s")},
	}
	r := New(resource.NewPolicy())

	d, err := r.RenderFS(fsys, "", "/site/")
	require.NoError(t, err)
	assert.Equal(t, "text/html;charset=UTF-8", d.MediaType)

	want := []string{"/site/a.html", "/site/b.txt", "/site/sub/", "/site/with%20space.txt"}
	if diff := cmp.Diff(want, anchors(t, d)); diff != "" {
		t.Errorf("anchors mismatch (-want +got):\n%s", diff)
	}

	d, err = r.RenderFS(fsys, "sub", "/site/sub")
	require.NoError(t, err)
	assert.Equal(t, []string{"/site/sub/c.css"}, anchors(t, d))
}

func TestRenderFSMissingDir(t *testing.T) {
	t.Parallel()

	r := New(resource.NewPolicy())
	_, err := r.RenderFS(fstest.MapFS{}, "nope", "/x/")

	var ioe *resource.IOError
	assert.ErrorAs(t, err, &ioe)
}

func TestRenderEntries(t *testing.T) {
	t.Parallel()

	names := []string{
		"docs/guide/intro.html",
		"docs/guide/setup.html",
		"docs/readme.txt",
		"docs/readme.txt.gz",
		"docs2/other.txt",
		"top.html",
	}
	r := New(resource.NewPolicy())

	tests := []struct {
		name string
		dir  string
		want []string
	}{
		{"root", "", []string{"/k/docs/", "/k/docs2/", "/k/top.html"}},
		{"nested", "docs/", []string{"/k/docs/guide/", "/k/docs/readme.txt"}},
		{"leaf dir", "docs/guide", []string{"/k/docs/guide/intro.html", "/k/docs/guide/setup.html"}},
		{"no children", "nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prefix := "/k/" + strings.Trim(tt.dir, "/")
			d, err := r.RenderEntries(names, tt.dir, prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, anchors(t, d))
		})
	}
}

func TestRenderCharsetAndColors(t *testing.T) {
	t.Parallel()

	p := resource.NewPolicy()
	p.Foreground = "navy"
	p.Background = "white"
	r := New(p)
	r.Charset = "ISO-8859-1"

	d, err := r.RenderEntries([]string{"café.txt"}, "", "/")
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	data, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	assert.Equal(t, "text/html;charset=ISO-8859-1", d.MediaType)
	assert.Contains(t, string(data), "color: navy")
	assert.Contains(t, string(data), "background-color: white")
	assert.True(t, bytes.Contains(data, []byte("caf\xe9.txt")), "name should be latin-1 encoded")
}
