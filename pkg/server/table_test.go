package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/webmap/pkg/resource"
)

// stubResolver records lifecycle calls.
type stubResolver struct {
	policy   *resource.Policy
	attached int
	detached int
	closed   int
	closeErr error
}

func newStub() *stubResolver { return &stubResolver{policy: resource.NewPolicy()} }

func (s *stubResolver) Resolve(context.Context, resource.Target, *resource.RequestContext) (*resource.Descriptor, error) {
	return nil, nil
}
func (s *stubResolver) Policy() *resource.Policy { return s.policy }
func (s *stubResolver) Attach(context.Context) error {
	s.attached++
	return nil
}
func (s *stubResolver) Detach() error {
	s.detached++
	return nil
}
func (s *stubResolver) Close() error {
	s.closed++
	return s.closeErr
}

func TestNormalizePrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"/", "", false},
		{"/docs", "/docs", false},
		{"/docs/", "/docs", false},
		{"/a/b//", "/a/b", false},
		{"docs", "", true},
		{"/docs?x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizePrefix(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPrefix)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable_Match(t *testing.T) {
	t.Parallel()

	root, docs, api := newStub(), newStub(), newStub()
	tbl := NewTable()
	ctx := context.Background()
	require.NoError(t, tbl.Mount(ctx, "/", root))
	require.NoError(t, tbl.Mount(ctx, "/docs", docs))
	require.NoError(t, tbl.Mount(ctx, "/docs/api/", api))

	tests := []struct {
		path       string
		wantPrefix string
		want       resource.Resolver
	}{
		{"/", "", root},
		{"/index.html", "", root},
		{"/docs", "/docs", docs},
		{"/docs/", "/docs", docs},
		{"/docs/a.txt", "/docs", docs},
		{"/docsx/a.txt", "", root},
		{"/docs/api", "/docs/api", api},
		{"/docs/api/v1", "/docs/api", api},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			prefix, r, ok := tbl.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.wantPrefix, prefix)
			assert.Same(t, tt.want, r)
		})
	}

	assert.Equal(t, []string{"/docs/api", "/docs", "/"}, tbl.Prefixes())
}

func TestTable_MatchWithoutRoot(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	require.NoError(t, tbl.Mount(context.Background(), "/docs", newStub()))

	_, _, ok := tbl.Match("/other")
	assert.False(t, ok)
}

func TestTable_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl := NewTable()
	s := newStub()

	require.NoError(t, tbl.Mount(ctx, "/a", s))
	assert.Equal(t, 1, s.attached)

	err := tbl.Mount(ctx, "/a/", newStub())
	require.ErrorIs(t, err, ErrPrefixExists)

	got, ok := tbl.Lookup("/a/")
	require.True(t, ok)
	assert.Same(t, s, got)

	require.NoError(t, tbl.Unmount("/a"))
	assert.Equal(t, 1, s.detached)
	assert.Equal(t, 1, s.closed)

	require.ErrorIs(t, tbl.Unmount("/a"), ErrPrefixNotFound)
	_, _, ok = tbl.Match("/a/x")
	assert.False(t, ok)
}

func TestTable_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl := NewTable()
	good, bad := newStub(), newStub()
	bad.closeErr = errors.New("boom")
	require.NoError(t, tbl.Mount(ctx, "/good", good))
	require.NoError(t, tbl.Mount(ctx, "/bad", bad))

	err := tbl.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, good.closed)
	assert.Equal(t, 1, bad.detached)
	assert.Empty(t, tbl.Prefixes())
}
