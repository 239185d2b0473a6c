package backend

import (
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"time"

	"github.com/getmockd/webmap/pkg/resource"
	"github.com/getmockd/webmap/pkg/servlet"
)

// Spec is the configuration-level description of a backend. Arg holds the
// kind-specific argument: a path, a URL, a resource prefix or an adapter
// name.
type Spec struct {
	Kind               string
	Arg                string
	Table              map[string]string
	Params             map[string]string
	InsecureSkipVerify bool
	Buffering          string
	MaxBodySize        int64
	Timeout            time.Duration
}

// Env supplies what a Spec cannot carry: bundled resources and the named
// adapters.
type Env struct {
	Bundle   fs.FS
	Adapters map[string]servlet.Factory
}

// Constructor builds a Root from a Spec.
type Constructor func(s Spec, env Env) (Root, error)

// Registry maps kind tags to Root constructors.
var Registry = map[string]Constructor{
	KindDir: func(s Spec, _ Env) (Root, error) {
		return DirRoot{Path: s.Arg}, nil
	},
	KindZip: func(s Spec, _ Env) (Root, error) {
		return ArchiveRoot{Path: s.Arg}, nil
	},
	KindTable: func(s Spec, _ Env) (Root, error) {
		table := make(map[string][]byte, len(s.Table))
		for k, v := range s.Table {
			table[k] = []byte(v)
		}
		return TableRoot{Table: table}, nil
	},
	KindBundle: func(s Spec, env Env) (Root, error) {
		if env.Bundle == nil {
			return nil, &resource.ConfigError{Kind: KindBundle, Message: "no bundled resources available"}
		}
		b, err := ParseBuffering(s.Buffering)
		if err != nil {
			return nil, &resource.ConfigError{Kind: KindBundle, Field: "buffering", Message: err.Error()}
		}
		return BundleRoot{FS: env.Bundle, Prefix: s.Arg, Buffering: b}, nil
	},
	KindRedirect: func(s Spec, _ Env) (Root, error) {
		return RedirectRoot{URL: s.Arg}, nil
	},
	KindRemote: func(s Spec, _ Env) (Root, error) {
		b, err := ParseBuffering(s.Buffering)
		if err != nil {
			return nil, &resource.ConfigError{Kind: KindRemote, Field: "buffering", Message: err.Error()}
		}
		return RemoteRoot{
			URL:                s.Arg,
			InsecureSkipVerify: s.InsecureSkipVerify,
			Buffering:          b,
			MaxBodySize:        s.MaxBodySize,
			Timeout:            s.Timeout,
		}, nil
	},
	KindAdapter: func(s Spec, env Env) (Root, error) {
		factory, ok := env.Adapters[s.Arg]
		if !ok {
			return nil, &resource.ConfigError{Kind: KindAdapter, Field: "arg", Message: fmt.Sprintf("unknown adapter %q", s.Arg)}
		}
		return AdapterRoot{Name: s.Arg, Adapter: factory(), Params: maps.Clone(s.Params)}, nil
	},
}

// Kinds returns the registered kind tags in sorted order.
func Kinds() []string {
	return slices.Sorted(maps.Keys(Registry))
}

// Build constructs the resolver described by s.
func Build(s Spec, env Env, opts ...Option) (resource.Resolver, error) {
	ctor, ok := Registry[s.Kind]
	if !ok {
		return nil, &resource.ConfigError{Kind: s.Kind, Message: "unknown backend kind"}
	}
	root, err := ctor(s, env)
	if err != nil {
		return nil, err
	}
	return New(root, opts...)
}
