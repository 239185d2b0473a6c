package backend

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/getmockd/webmap/pkg/resource"
)

// tree resolves paths against an fs.FS. It backs the directory resolver and
// the loose-file branch of the bundle resolver.
type tree struct {
	*base
	fsys      fs.FS
	buffering Buffering

	// locate returns the diagnostic location of a name.
	locate func(name string) string

	// contain, when set, rejects names that resolve outside the root.
	contain func(name string) (bool, error)
}

func (tr *tree) resolve(ctx context.Context, self resource.Resolver, t resource.Target, rc *resource.RequestContext) (*resource.Descriptor, error) {
	name := resource.CleanPath(t.Path)
	if tr.policy.Hidden(name) {
		return nil, nil
	}
	info, err := tr.stat(strings.TrimSuffix(name, "/"))
	if err != nil {
		return nil, err
	}
	if info != nil && info.IsDir() {
		if !resource.IsDirectoryStyle(t.Path) {
			return redirectToDir(t), nil
		}
		return tr.directory(ctx, self, t, rc, name)
	}
	if strings.HasSuffix(name, "/") {
		return nil, nil
	}
	return resource.ProbeGzip(tr.policy, name, tr.open)
}

func (tr *tree) directory(ctx context.Context, self resource.Resolver, t resource.Target, rc *resource.RequestContext, name string) (*resource.Descriptor, error) {
	d, err := resource.ResolveWelcome(ctx, self, t, rc)
	if err != nil || d != nil {
		return d, err
	}
	if !tr.policy.DisplayDir {
		return nil, nil
	}
	return tr.lister.RenderFS(tr.fsys, name, t.External())
}

// stat returns nil info for names that do not exist or are not contained.
func (tr *tree) stat(name string) (fs.FileInfo, error) {
	if tr.contain != nil {
		ok, err := tr.contain(name)
		if err != nil || !ok {
			return nil, err
		}
	}
	if name == "" {
		name = "."
	}
	info, err := fs.Stat(tr.fsys, name)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrInvalid):
		return nil, nil
	case err != nil:
		return nil, &resource.IOError{Op: "stat", Location: tr.locate(name), Cause: err}
	}
	return info, nil
}

func (tr *tree) open(name string) (*resource.Descriptor, error) {
	info, err := tr.stat(name)
	if err != nil || info == nil || info.IsDir() {
		return nil, err
	}
	f, err := tr.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &resource.IOError{Op: "open", Location: tr.locate(name), Cause: err}
	}
	d := resource.NewDescriptor(f, info.Size(), tr.policy.ContentType(name))
	d.Location = tr.locate(name)
	if !info.Mode().IsRegular() {
		d.Length = resource.UnknownLength
	}
	if err := tr.buffering.apply(d, 0); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}
