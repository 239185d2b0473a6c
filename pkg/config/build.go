package config

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/getmockd/webmap/pkg/backend"
	"github.com/getmockd/webmap/pkg/logging"
	"github.com/getmockd/webmap/pkg/resource"
	"github.com/getmockd/webmap/pkg/server"
)

// BuildTable constructs and mounts the resolver of every context. On
// error, whatever was already mounted is released.
func BuildTable(ctx context.Context, cfg *Config, env backend.Env, logger *slog.Logger) (*server.Table, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	table := server.NewTable(server.WithTableLogger(logger))
	for i, cc := range cfg.Contexts {
		if err := cfg.mount(ctx, table, cc, env, logger); err != nil {
			_ = table.Close()
			return nil, fmt.Errorf("contexts[%d] (%s): %w", i, cc.Prefix, err)
		}
	}
	return table, nil
}

func (c *Config) mount(ctx context.Context, table *server.Table, cc ContextConfig, env backend.Env, logger *slog.Logger) error {
	spec := c.Spec(cc)
	policy, err := cc.Policy(func() (fs.FS, io.Closer, error) { return webXMLSource(spec, env) })
	if err != nil {
		return err
	}
	res, err := backend.Build(spec, env,
		backend.WithPolicy(policy),
		backend.WithLogger(logger.With("prefix", cc.Prefix, "kind", cc.Kind)),
	)
	if err != nil {
		return err
	}
	if err := table.Mount(ctx, cc.Prefix, res); err != nil {
		if closer, ok := res.(io.Closer); ok {
			_ = closer.Close()
		}
		return err
	}
	return nil
}

// Spec converts cc to a backend.Spec, resolving filesystem paths against
// the config directory.
func (c *Config) Spec(cc ContextConfig) backend.Spec {
	arg := cc.Arg
	if cc.Kind == backend.KindDir || cc.Kind == backend.KindZip {
		arg = ResolvePath(c.BaseDir(), arg)
	}
	return backend.Spec{
		Kind:               cc.Kind,
		Arg:                arg,
		Table:              cc.Table,
		Params:             cc.Parameters,
		InsecureSkipVerify: cc.InsecureSkipVerify,
		Buffering:          cc.Buffering,
		MaxBodySize:        cc.MaxBodySize,
		Timeout:            cc.Timeout.Std(),
	}
}

// WebXMLSource opens the tree a context's WEB-INF/web.xml is read from.
type WebXMLSource func() (fs.FS, io.Closer, error)

// Policy builds the resolver policy of cc. Settings start from the kind's
// defaults, then the deployment descriptor when WebXML is set, then the
// explicit fields of cc.
func (cc ContextConfig) Policy(source WebXMLSource) (*resource.Policy, error) {
	p := backend.DefaultPolicy(cc.Kind)

	if cc.WebXML && source != nil {
		fsys, closer, err := source()
		if err != nil {
			return nil, fmt.Errorf("web.xml: %w", err)
		}
		w, err := server.ReadWebXML(fsys)
		_ = closer.Close()
		if err != nil {
			return nil, err
		}
		if err := w.Apply(p); err != nil {
			return nil, err
		}
	}

	if len(cc.Welcome) > 0 {
		p.SetWelcome(cc.Welcome...)
	}
	if len(cc.Methods) > 0 {
		p.SetMethods(cc.Methods...)
	}
	if cc.AllowsQuery != nil {
		p.AllowsQuery = *cc.AllowsQuery
	}
	if cc.DisplayDir != nil {
		p.DisplayDir = *cc.DisplayDir
	}
	if cc.HideWebInf != nil {
		p.HideWebInf = *cc.HideWebInf
	}
	for _, pattern := range cc.Hidden {
		if err := p.AddHidden(pattern); err != nil {
			return nil, err
		}
	}
	for _, sfx := range cc.GzipSuffixes {
		p.AddGzipSuffix(sfx)
	}
	for ext, mt := range cc.MediaTypes {
		p.SetMediaType(ext, mt)
	}

	xml := map[string]bool{}
	for _, pattern := range cc.XMLPages {
		xml[pattern] = true
		charset := cc.PageEncodings[pattern]
		if charset == "" {
			charset = "UTF-8"
		}
		if err := p.AddPageEncoding(pattern, charset, true); err != nil {
			return nil, err
		}
	}
	// Patterns register in sorted order so that equally specific rules
	// resolve the same way on every run.
	for _, pattern := range slices.Sorted(maps.Keys(cc.PageEncodings)) {
		if xml[pattern] {
			continue
		}
		if err := p.AddPageEncoding(pattern, cc.PageEncodings[pattern], false); err != nil {
			return nil, err
		}
	}

	for key, loc := range cc.ErrorPages {
		p.SetErrorPage(key, loc)
	}
	if cc.Colors != nil {
		if cc.Colors.Foreground != "" {
			p.Foreground = cc.Colors.Foreground
		}
		if cc.Colors.Background != "" {
			p.Background = cc.Colors.Background
		}
	}
	return p, nil
}

// webXMLSource opens the content tree behind spec for descriptor lookup.
func webXMLSource(spec backend.Spec, env backend.Env) (fs.FS, io.Closer, error) {
	switch spec.Kind {
	case backend.KindDir:
		return os.DirFS(spec.Arg), io.NopCloser(nil), nil
	case backend.KindZip:
		zr, err := zip.OpenReader(spec.Arg)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr, nil
	case backend.KindBundle:
		if env.Bundle == nil {
			return nil, nil, errors.New("no bundled resources available")
		}
		prefix := strings.Trim(spec.Arg, "/")
		switch strings.ToLower(path.Ext(prefix)) {
		case ".zip", ".jar":
			data, err := fs.ReadFile(env.Bundle, prefix)
			if err != nil {
				return nil, nil, err
			}
			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				return nil, nil, err
			}
			return zr, io.NopCloser(nil), nil
		}
		if prefix == "" {
			return env.Bundle, io.NopCloser(nil), nil
		}
		sub, err := fs.Sub(env.Bundle, prefix)
		return sub, io.NopCloser(nil), err
	}
	return nil, nil, fmt.Errorf("kind %s has no deployment descriptor", spec.Kind)
}
