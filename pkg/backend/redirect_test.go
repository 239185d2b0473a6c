package backend

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/webmap/pkg/resource"
)

func TestMergeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   string
		target resource.Target
		want   string
	}{
		{"empty path reuses base query", "http://h/x?q=1", resource.Target{}, "http://h/x?q=1"},
		{"slash path reuses base query", "http://h/x?q=1", resource.Target{Path: "/"}, "http://h/x?q=1"},
		{"request query replaces base query", "http://h/x?q=1", resource.Target{Query: "r=2"}, "http://h/x?r=2"},
		{"path resolves under base", "http://h/x", resource.Target{Path: "/a/b.html"}, "http://h/x/a/b.html"},
		{"base with trailing slash", "https://h:8443/x/", resource.Target{Path: "/a"}, "https://h:8443/x/a"},
		{"non-empty path drops base query", "http://h/x?q=1", resource.Target{Path: "/a"}, "http://h/x/a"},
		{"path with query and fragment", "http://h/", resource.Target{Path: "/a", Query: "k=v", Fragment: "top"}, "http://h/a?k=v#top"},
		{"escaped characters", "http://h/x", resource.Target{Path: "/a b.txt"}, "http://h/x/a%20b.txt"},
		{"dot segments clamp at base", "http://up/public/", resource.Target{Path: "/../../admin"}, "http://up/public/admin"},
		{"dot segments inside base", "http://h/x", resource.Target{Path: "/a/../b"}, "http://h/x/b"},
		{"only dot segments keep base", "http://h/x?q=1", resource.Target{Path: "/.."}, "http://h/x?q=1"},
		{"directory path keeps slash", "http://h/x", resource.Target{Path: "/a/"}, "http://h/x/a/"},
		{"userinfo kept", "http://u:p@h/x", resource.Target{Path: "/y"}, "http://u:p@h/x/y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			base, err := url.Parse(tt.base)
			require.NoError(t, err)
			got := MergeURL(base, tt.target)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, base.Scheme, got.Scheme)
			assert.Equal(t, base.Host, got.Host)
		})
	}
}

func TestRedirect(t *testing.T) {
	t.Parallel()

	r, err := NewRedirect(RedirectRoot{URL: "https://example.com/docs?v=2"})
	require.NoError(t, err)
	assert.True(t, r.Policy().AllowsQuery)

	d := get(t, r, "/go", "")
	require.NotNil(t, d)
	assert.True(t, d.Redirect)
	assert.Nil(t, d.Body)
	assert.Equal(t, "https://example.com/docs?v=2", d.Location)

	d = get(t, r, "/go", "/intro.html")
	assert.Equal(t, "https://example.com/docs/intro.html", d.Location)
}

func TestNewRedirectMisconfiguration(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "/relative/path", "http://[::1", "mailto:"} {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			r, err := NewRedirect(RedirectRoot{URL: raw})
			assert.Nil(t, r)
			var ce *resource.ConfigError
			assert.ErrorAs(t, err, &ce)
		})
	}
}
