package config

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/webmap/pkg/backend"
	"github.com/getmockd/webmap/pkg/resource"
	"github.com/getmockd/webmap/pkg/servlet"
)

const sampleYAML = `
version: "1.0"
server:
  addr: ":9090"
  readTimeout: 5s
logging:
  level: debug
contexts:
  - prefix: /docs
    kind: dir
    arg: ./public
    welcome: [home.html, index.html]
    errorPages:
      404: /missing.html
  - prefix: /api
    kind: remote
    arg: https://${API_HOST:-api.example.com}/v1
    buffering: always
    timeout: 2s
  - prefix: /
    kind: table
    table:
      index.html: "<h1>hi</h1>"
`

func TestParse_YAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout.Std(), "defaults fill unset fields")
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Contexts, 3)
	assert.Equal(t, map[string]string{"404": "/missing.html"}, cfg.Contexts[0].ErrorPages)
	assert.Equal(t, "https://api.example.com/v1", cfg.Contexts[1].Arg)
	assert.Equal(t, 2*time.Second, cfg.Contexts[1].Timeout.Std())
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("API_HOST", "upstream.internal")

	cfg, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "https://upstream.internal/v1", cfg.Contexts[1].Arg)
}

func TestParse_JSON(t *testing.T) {
	t.Parallel()

	doc := `{"version":"1.0","contexts":[{"prefix":"/r","kind":"redirect","arg":"https://example.com/"}]}`
	cfg, err := Parse([]byte(doc), FormatJSON)
	require.NoError(t, err)
	require.Len(t, cfg.Contexts, 1)
	assert.Equal(t, backend.KindRedirect, cfg.Contexts[0].Kind)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		format  Format
		wantIs  error
		wantMsg string
	}{
		{name: "bad yaml", doc: "version: [", format: FormatYAML, wantIs: ErrInvalidYAML},
		{name: "bad json", doc: "{", format: FormatJSON, wantIs: ErrInvalidJSON},
		{name: "missing version", doc: "contexts: []", format: FormatYAML, wantMsg: "version"},
		{name: "unknown field", doc: "version: \"1.0\"\nbogus: 1", format: FormatYAML, wantMsg: "bogus"},
		{name: "unknown kind", doc: "version: \"1.0\"\ncontexts: [{prefix: /a, kind: ftp}]", format: FormatYAML, wantMsg: "contexts[0].kind"},
		{name: "missing arg", doc: "version: \"1.0\"\ncontexts: [{prefix: /a, kind: dir}]", format: FormatYAML, wantMsg: "contexts[0].arg"},
		{name: "bad duration", doc: "version: \"1.0\"\nserver: {readTimeout: soon}", format: FormatYAML, wantMsg: "server.readTimeout"},
		{
			name:    "duplicate prefix",
			doc:     "version: \"1.0\"\ncontexts: [{prefix: /a, kind: table}, {prefix: /a/, kind: table}]",
			format:  FormatYAML,
			wantMsg: "duplicate prefix",
		},
		{
			name:    "insecure outside remote",
			doc:     "version: \"1.0\"\ncontexts: [{prefix: /a, kind: table, insecureSkipVerify: true}]",
			format:  FormatYAML,
			wantMsg: "only valid for kind remote",
		},
		{
			name:    "bad charset",
			doc:     "version: \"1.0\"\ncontexts: [{prefix: /a, kind: table, pageEncodings: {\"*.txt\": klingon}}]",
			format:  FormatYAML,
			wantMsg: "pageEncodings",
		},
		{
			name:    "bad error page key",
			doc:     "version: \"1.0\"\ncontexts: [{prefix: /a, kind: table, errorPages: {200: /ok.html}}]",
			format:  FormatYAML,
			wantMsg: "4xx or 5xx",
		},
		{
			name:    "functional color",
			doc:     "version: \"1.0\"\ncontexts: [{prefix: /a, kind: table, colors: {background: \"rgb(0,0,0)\"}}]",
			format:  FormatYAML,
			wantMsg: "contexts[0].colors.background",
		},
		{
			name:    "tls without files",
			doc:     "version: \"1.0\"\nserver: {tls: {http3: true}}",
			format:  FormatYAML,
			wantMsg: "server.tls",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc), tt.format)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_ResultType(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Contexts = []ContextConfig{{Prefix: "nope", Kind: backend.KindTable}}
	err := cfg.Validate()

	var result *ValidationResult
	require.True(t, errors.As(err, &result))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "contexts[0].prefix", result.Errors[0].Path)

	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, ErrFileNotFound)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Load(empty)
	require.ErrorIs(t, err, ErrEmptyFile)

	for _, name := range []string{"webmap.yaml", "webmap.json"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, "nested", name)
			cfg := DefaultConfig()
			cfg.Contexts = []ContextConfig{{
				Prefix:  "/site",
				Kind:    backend.KindDir,
				Arg:     "public",
				Welcome: []string{"index.htm"},
				Timeout: 0,
			}}
			require.NoError(t, Save(path, cfg))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Contexts, loaded.Contexts)
			assert.Equal(t, cfg.Server, loaded.Server)
			assert.Equal(t, filepath.Join(dir, "nested"), loaded.BaseDir())
			assert.Equal(t, filepath.Join(dir, "nested", "public"), loaded.Spec(loaded.Contexts[0]).Arg)
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	_, err := Discover(dir)
	require.ErrorIs(t, err, ErrNoConfig)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "webmap.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "webmap.yml"), []byte(""), 0o644))
	got, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "webmap.yml"), got)

	t.Setenv(EnvConfig, filepath.Join(dir, "elsewhere.yaml"))
	_, err = Discover(dir)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("WEBMAP_TEST_HOST", "example.com")

	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"${WEBMAP_TEST_HOST}", "example.com"},
		{"${WEBMAP_TEST_UNSET:-fallback}", "fallback"},
		{"${WEBMAP_TEST_UNSET}", ""},
		{"${WEBMAP_TEST_HOST:-x}:${WEBMAP_TEST_PORT:-80}", "example.com:80"},
		{"$WEBMAP_TEST_HOST", "$WEBMAP_TEST_HOST"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnvVars(tt.input), tt.input)
	}
}

func TestPointerToPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", pointerToPath(""))
	assert.Equal(t, "contexts[2].errorPages.a/b", pointerToPath("/contexts/2/errorPages/a~1b"))
}

func TestContextConfig_Policy(t *testing.T) {
	t.Parallel()

	no := false
	cc := ContextConfig{
		Kind:          backend.KindDir,
		Welcome:       []string{"home.html"},
		Methods:       []string{"GET"},
		DisplayDir:    &no,
		Hidden:        []string{"**/*.bak"},
		GzipSuffixes:  []string{"gzip"},
		MediaTypes:    map[string]string{"md": "text/markdown"},
		PageEncodings: map[string]string{"*.txt": "ISO-8859-1", "/feeds/*": "UTF-8"},
		XMLPages:      []string{"/feeds/*"},
		ErrorPages:    map[string]string{"404": "/404.html"},
		Colors:        &Colors{Foreground: "white"},
	}
	p, err := cc.Policy(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"home.html"}, p.Welcome())
	assert.True(t, p.Allows("GET"))
	assert.False(t, p.Allows("POST"))
	assert.False(t, p.DisplayDir)
	assert.True(t, p.HideWebInf)
	assert.True(t, p.Hidden("a/b/old.bak"))
	assert.True(t, p.IsGzipped("x.js.gzip"))
	assert.Equal(t, "text/markdown", p.MediaType("README.md"))
	cs, ok := p.PageEncoding("notes.txt")
	require.True(t, ok)
	assert.Equal(t, "ISO-8859-1", cs)
	assert.Equal(t, "application/xml", p.PageType("/feeds/rss"))
	loc, ok := p.ErrorPage(404, nil)
	require.True(t, ok)
	assert.Equal(t, "/404.html", loc)
	assert.Equal(t, "white", p.Foreground)
	assert.Equal(t, resource.DefaultBackground, p.Background)
}

func TestContextConfig_PolicyPageEncodingTies(t *testing.T) {
	t.Parallel()

	cc := ContextConfig{
		Kind: backend.KindDir,
		PageEncodings: map[string]string{
			"/a*/x.txt": "ISO-8859-1",
			"/*b/x.txt": "UTF-8",
			"/c*/x.txt": "ISO-8859-1",
			"/*d/x.txt": "ISO-8859-2",
		},
	}
	for range 20 {
		p, err := cc.Policy(nil)
		require.NoError(t, err)
		cs, ok := p.PageEncoding("/ab/x.txt")
		require.True(t, ok)
		assert.Equal(t, "UTF-8", cs, "the lexically first of two equally specific patterns wins")
		cs, ok = p.PageEncoding("/cd/x.txt")
		require.True(t, ok)
		assert.Equal(t, "ISO-8859-2", cs)
	}
}

func TestContextConfig_PolicyWebXML(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"WEB-INF/web.xml": {Data: []byte(`<web-app>
  <welcome-file-list><welcome-file>start.html</welcome-file></welcome-file-list>
  <error-page><error-code>500</error-code><location>/oops.html</location></error-page>
</web-app>`)}}
	source := func() (fs.FS, io.Closer, error) { return fsys, io.NopCloser(nil), nil }

	p, err := ContextConfig{Kind: backend.KindBundle, WebXML: true}.Policy(source)
	require.NoError(t, err)
	assert.Equal(t, []string{"start.html"}, p.Welcome())
	_, ok := p.ErrorPage(500, nil)
	assert.True(t, ok)

	p, err = ContextConfig{Kind: backend.KindBundle, WebXML: true, Welcome: []string{"override.html"}}.Policy(source)
	require.NoError(t, err)
	assert.Equal(t, []string{"override.html"}, p.Welcome(), "explicit settings win over web.xml")
}

func TestBuildTable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "public", "WEB-INF"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "public", "start.html"), []byte("start"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "public", "WEB-INF", "web.xml"),
		[]byte(`<web-app><welcome-file-list><welcome-file>start.html</welcome-file></welcome-file-list></web-app>`), 0o644))

	cfg := DefaultConfig()
	cfg.SetBaseDir(dir)
	cfg.Contexts = []ContextConfig{
		{Prefix: "/site", Kind: backend.KindDir, Arg: "public", WebXML: true},
		{Prefix: "/echo", Kind: backend.KindAdapter, Arg: "echo", Parameters: map[string]string{"banner": "hi"}},
		{Prefix: "/", Kind: backend.KindTable, Table: map[string]string{"a.txt": "a"}},
	}
	env := backend.Env{Adapters: servlet.Builtin()}

	table, err := BuildTable(context.Background(), cfg, env, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = table.Close() })
	assert.Equal(t, []string{"/echo", "/site", "/"}, table.Prefixes())

	prefix, res, ok := table.Match("/site/")
	require.True(t, ok)
	d, err := res.Resolve(context.Background(), resource.Target{Prefix: prefix, Path: "/"}, &resource.RequestContext{Method: "GET"})
	require.NoError(t, err)
	require.NotNil(t, d)
	defer func() { _ = d.Close() }()
	assert.True(t, d.Welcome)
	body, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	assert.Equal(t, "start", string(body))
}

func TestBuildTable_Error(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Contexts = []ContextConfig{
		{Prefix: "/ok", Kind: backend.KindTable},
		{Prefix: "/bad", Kind: backend.KindAdapter, Arg: "nope"},
	}
	_, err := BuildTable(context.Background(), cfg, backend.Env{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contexts[1]")

	var ce *resource.ConfigError
	assert.ErrorAs(t, err, &ce)
}
