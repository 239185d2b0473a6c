package backend

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/getmockd/webmap/pkg/resource"
)

// get resolves path under prefix with a GET request context.
func get(t *testing.T, r resource.Resolver, prefix, path string) *resource.Descriptor {
	t.Helper()
	d, err := r.Resolve(context.Background(), resource.Target{Prefix: prefix, Path: path}, &resource.RequestContext{Method: "GET"})
	require.NoError(t, err)
	return d
}

// readBody drains and closes d, checking that a known length is exact.
func readBody(t *testing.T, d *resource.Descriptor) []byte {
	t.Helper()
	require.NotNil(t, d)
	defer func() { _ = d.Close() }()
	data, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	if d.Length != resource.UnknownLength {
		assert.Equal(t, d.Length, int64(len(data)), "declared length must match body")
	}
	return data
}

// listingHrefs returns the hrefs of every entry anchor in a listing page.
func listingHrefs(t *testing.T, d *resource.Descriptor) []string {
	t.Helper()
	require.NotNil(t, d)
	assert.True(t, strings.HasPrefix(d.MediaType, "text/html"), "listing media type %q", d.MediaType)
	doc, err := html.Parse(bytes.NewReader(readBody(t, d)))
	require.NoError(t, err)

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href, class string
			for _, a := range n.Attr {
				switch a.Key {
				case "href":
					href = a.Val
				case "class":
					class = a.Val
				}
			}
			if strings.Contains(class, "listing-entry") {
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

// writeFiles creates files under dir from a name→content map.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// zipBytes builds an in-memory archive. Names ending in "/" become
// directory entries.
func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		if strings.HasSuffix(name, "/") {
			_, err := zw.Create(name)
			require.NoError(t, err)
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// gzipLike is an eight byte payload standing in for pre-compressed data.
const gzipLike = "\x1f\x8b\x08\x00\x00\x00\x00\x00"

func bytesReader(s string) io.Reader {
	return strings.NewReader(s)
}
