package resource

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	io.Reader
	closed int
}

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestDescriptorClose(t *testing.T) {
	t.Parallel()

	body := &countingCloser{Reader: strings.NewReader("x")}
	d := NewDescriptor(body, 1, "text/plain")

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, body.closed)

	var nilDesc *Descriptor
	assert.NoError(t, nilDesc.Close())
}

func TestDescriptorBuffer(t *testing.T) {
	t.Parallel()

	t.Run("computes exact length", func(t *testing.T) {
		t.Parallel()
		body := &countingCloser{Reader: strings.NewReader("hello world")}
		d := NewDescriptor(body, UnknownLength, "text/plain")

		require.NoError(t, d.Buffer())
		assert.Equal(t, int64(11), d.Length)
		assert.Equal(t, 1, body.closed)

		data, err := io.ReadAll(d.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(data))
	})

	t.Run("limit exceeded", func(t *testing.T) {
		t.Parallel()
		d := NewDescriptor(io.NopCloser(strings.NewReader("0123456789")), UnknownLength, "")
		err := d.BufferLimit(4)
		assert.ErrorIs(t, err, ErrBodyTooLarge)
	})

	t.Run("redirect is a no-op", func(t *testing.T) {
		t.Parallel()
		d := NewRedirect("http://example.com/")
		require.NoError(t, d.Buffer())
		assert.Nil(t, d.Body)
		assert.True(t, d.Redirect)
	})
}

func TestProbeGzip(t *testing.T) {
	t.Parallel()

	store := map[string]string{
		"a.html":         "<p>a</p>",
		"missing.txt.gz": "\x1f\x8b...",
	}
	open := func(name string) (*Descriptor, error) {
		data, ok := store[name]
		if !ok {
			return nil, nil
		}
		return NewBytesDescriptor([]byte(data), OctetStream), nil
	}
	p := NewPolicy()

	d, err := ProbeGzip(p, "a.html", open)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Empty(t, d.Encoding)

	d, err = ProbeGzip(p, "missing.txt", open)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "gzip", d.Encoding)
	assert.Equal(t, "text/plain", d.MediaType)
	assert.Equal(t, int64(len(store["missing.txt.gz"])), d.Length)

	d, err = ProbeGzip(p, "other.txt", open)
	require.NoError(t, err)
	assert.Nil(t, d)

	boom := errors.New("boom")
	_, err = ProbeGzip(p, "x", func(string) (*Descriptor, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

type welcomeResolver struct {
	policy *Policy
	files  map[string]string
}

func (w *welcomeResolver) Policy() *Policy { return w.policy }

func (w *welcomeResolver) Resolve(_ context.Context, t Target, _ *RequestContext) (*Descriptor, error) {
	data, ok := w.files[t.Relative()]
	if !ok {
		return nil, ErrNotFound
	}
	return NewBytesDescriptor([]byte(data), w.policy.MediaType(t.Path)), nil
}

func TestResolveWelcome(t *testing.T) {
	t.Parallel()

	p := NewPolicy()
	p.SetWelcome("index.html", "index.htm")
	r := &welcomeResolver{policy: p, files: map[string]string{"docs/index.htm": "hi"}}

	d, err := ResolveWelcome(context.Background(), r, Target{Prefix: "/p", Path: "/docs"}, nil)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.Welcome)
	assert.Equal(t, "text/html", d.MediaType)

	d, err = ResolveWelcome(context.Background(), r, Target{Prefix: "/p", Path: "/"}, nil)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCleanPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"/a/b.html", "a/b.html"},
		{"a/./b/../c", "a/c"},
		{"/docs/", "docs/"},
		{"/../../etc/passwd", "etc/passwd"},
		{"//x//y/", "x/y/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanPath(tt.in))
		})
	}
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusNotFound, StatusCode(ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(&IOError{Op: "read"}))
	assert.Equal(t, http.StatusBadGateway, StatusCode(&IOError{Op: "get", Status: 503}))
	assert.Equal(t, http.StatusTeapot, StatusCode(&AdapterError{Status: http.StatusTeapot, Cause: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))

	wrapped := &AdapterError{Adapter: "echo", Cause: errors.New("bad")}
	assert.Equal(t, "AdapterError", Kind(wrapped))
	assert.Equal(t, "adapter echo: bad", wrapped.Error())
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	form := url.Values{"name": {"gopher"}}
	req := httptest.NewRequest(http.MethodPost, "/app/submit?lang=go", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: "abc123"})

	rc := FromRequest(req)

	assert.Equal(t, http.MethodPost, rc.Method)
	assert.Equal(t, "go", rc.Param("lang"))
	assert.Equal(t, "gopher", rc.Param("name"))
	assert.Equal(t, "abc123", rc.SessionID)
	assert.Equal(t, req.RemoteAddr, rc.RemoteAddr)
}

func TestNewTarget(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("/docs/guide/intro.html?x=1#top")
	require.NoError(t, err)

	tg := NewTarget("/docs", u)
	assert.Equal(t, Target{Prefix: "/docs", Path: "/guide/intro.html", Query: "x=1", Fragment: "top"}, tg)
	assert.Equal(t, "guide/intro.html", tg.Relative())
	assert.Equal(t, "/docs/guide/intro.html", tg.External())
	assert.True(t, tg.HasQuery())
}
