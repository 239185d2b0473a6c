package backend

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/webmap/pkg/resource"
	"github.com/getmockd/webmap/pkg/servlet"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "a"})
	archive := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(archive, zipBytes(t, map[string]string{"a.txt": "a"}), 0o644))

	env := Env{
		Bundle:   fstest.MapFS{"web/a.txt": {Data: []byte("a")}},
		Adapters: servlet.Builtin(),
	}

	tests := []struct {
		spec Spec
		want any
	}{
		{Spec{Kind: KindDir, Arg: dir}, &Dir{}},
		{Spec{Kind: KindZip, Arg: archive}, &Archive{}},
		{Spec{Kind: KindTable, Table: map[string]string{"a.txt": "a"}}, &Table{}},
		{Spec{Kind: KindBundle, Arg: "web"}, &Bundle{}},
		{Spec{Kind: KindRedirect, Arg: "http://example.com/"}, &Redirect{}},
		{Spec{Kind: KindRemote, Arg: "http://example.com/", Buffering: "never"}, &Remote{}},
		{Spec{Kind: KindAdapter, Arg: "echo", Params: map[string]string{"banner": "b"}}, &Adapter{}},
	}
	for _, tt := range tests {
		t.Run(tt.spec.Kind, func(t *testing.T) {
			t.Parallel()
			r, err := Build(tt.spec, env)
			require.NoError(t, err)
			assert.IsType(t, tt.want, r)
			if c, ok := r.(interface{ Close() error }); ok {
				_ = c.Close()
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Spec
		env  Env
	}{
		{"unknown kind", Spec{Kind: "ftp"}, Env{}},
		{"unknown adapter", Spec{Kind: KindAdapter, Arg: "nope"}, Env{Adapters: servlet.Builtin()}},
		{"no bundle", Spec{Kind: KindBundle, Arg: "web"}, Env{}},
		{"bad buffering", Spec{Kind: KindRemote, Arg: "http://h/", Buffering: "sometimes"}, Env{}},
		{"bad archive", Spec{Kind: KindZip, Arg: "x.tar"}, Env{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := Build(tt.spec, tt.env)
			assert.Nil(t, r)
			var ce *resource.ConfigError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestNewRejectsNilRoot(t *testing.T) {
	t.Parallel()

	r, err := New(nil)
	assert.Nil(t, r)
	assert.Error(t, err)
}

func TestKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"adapter", "bundle", "dir", "redirect", "remote", "table", "zip"}, Kinds())
}

func TestParseBuffering(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Buffering{"": BufferUnknown, "ALWAYS": BufferAlways, "never": BufferNever} {
		got, err := ParseBuffering(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.NotEmpty(t, got.String())
	}
	_, err := ParseBuffering("sometimes")
	assert.Error(t, err)
}
