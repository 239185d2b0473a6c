package backend

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/getmockd/webmap/pkg/resource"
)

// Dir serves files from a directory on disk.
type Dir struct {
	base
	tree tree
	root string
}

var _ resource.Resolver = (*Dir)(nil)

// NewDir returns a resolver for the directory at root.Path. The path is
// made absolute and symlinks are evaluated once; every request is checked
// against that canonical root.
func NewDir(root DirRoot, opts ...Option) (*Dir, error) {
	d := &Dir{base: newBase(KindDir, opts)}
	if root.Path == "" {
		return nil, d.configError("path", "must not be empty", nil)
	}
	abs, err := filepath.Abs(root.Path)
	if err != nil {
		return nil, d.configError("path", "cannot make absolute", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, d.configError("path", "cannot resolve "+root.Path, err)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return nil, d.configError("path", "cannot stat "+root.Path, err)
	}
	if !info.IsDir() {
		return nil, d.configError("path", root.Path+" is not a directory", nil)
	}
	d.root = canon
	d.tree = tree{
		base:    &d.base,
		fsys:    os.DirFS(canon),
		locate:  d.location,
		contain: d.contains,
	}
	return d, nil
}

// Root returns the canonical root directory.
func (d *Dir) Root() string { return d.root }

// Resolve implements resource.Resolver.
func (d *Dir) Resolve(ctx context.Context, t resource.Target, rc *resource.RequestContext) (*resource.Descriptor, error) {
	return d.tree.resolve(ctx, d, t, rc)
}

func (d *Dir) location(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

// contains reports whether name, with symlinks evaluated, stays under the
// canonical root. Missing names are reported as not contained.
func (d *Dir) contains(name string) (bool, error) {
	full := d.location(name)
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrInvalid) {
			return false, nil
		}
		var pe *fs.PathError
		if errors.As(err, &pe) {
			// ENOTDIR and friends: a path component is not a directory.
			return false, nil
		}
		return false, &resource.IOError{Op: "resolve", Location: full, Cause: err}
	}
	rel, err := filepath.Rel(d.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		d.logger.Warn("path escapes root", "path", name, "resolved", resolved)
		return false, nil
	}
	return true, nil
}
