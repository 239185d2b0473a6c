package backend

import (
	"archive/zip"
	"bytes"
	"context"
	"io/fs"
	"path"
	"strings"

	"github.com/getmockd/webmap/pkg/resource"
)

// Bundle serves resources bundled with the program, usually through an
// embed.FS. The prefix selects either a directory of loose files or a
// packaged .zip/.jar file inside the bundle.
type Bundle struct {
	base
	prefix   string
	tree     *tree
	packaged *entries
}

var _ resource.Resolver = (*Bundle)(nil)

// NewBundle returns a resolver for root.
func NewBundle(root BundleRoot, opts ...Option) (*Bundle, error) {
	b := &Bundle{base: newBase(KindBundle, opts)}
	if root.FS == nil {
		return nil, b.configError("fs", "must not be nil", nil)
	}
	prefix := strings.Trim(root.Prefix, "/")
	if prefix != "" && !fs.ValidPath(prefix) {
		return nil, b.configError("prefix", "invalid resource prefix "+root.Prefix, nil)
	}
	b.prefix = prefix
	if prefix == "" {
		prefix = "."
	}
	info, err := fs.Stat(root.FS, prefix)
	if err != nil {
		return nil, b.configError("prefix", "no such resource "+root.Prefix, err)
	}

	switch {
	case info.IsDir():
		sub, err := fs.Sub(root.FS, prefix)
		if err != nil {
			return nil, b.configError("prefix", "cannot open "+root.Prefix, err)
		}
		b.tree = &tree{
			base:      &b.base,
			fsys:      sub,
			buffering: root.Buffering,
			locate:    b.location,
		}
	case isArchiveName(prefix):
		data, err := fs.ReadFile(root.FS, prefix)
		if err != nil {
			return nil, b.configError("prefix", "cannot read "+root.Prefix, err)
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, b.configError("prefix", "invalid archive "+root.Prefix, err)
		}
		b.packaged = &entries{
			base:      &b.base,
			id:        "bundle:" + b.prefix,
			idx:       newZipIndex(zr.File),
			buffering: root.Buffering,
		}
	default:
		return nil, b.configError("prefix", root.Prefix+" is neither a directory nor an archive", nil)
	}
	return b, nil
}

// Packaged reports whether the bundle is served from an archive.
func (b *Bundle) Packaged() bool { return b.packaged != nil }

// Resolve implements resource.Resolver.
func (b *Bundle) Resolve(ctx context.Context, t resource.Target, rc *resource.RequestContext) (*resource.Descriptor, error) {
	if b.packaged != nil {
		return b.packaged.resolve(ctx, b, t, rc)
	}
	return b.tree.resolve(ctx, b, t, rc)
}

func (b *Bundle) location(name string) string {
	return "bundle:" + path.Join(b.prefix, name)
}
