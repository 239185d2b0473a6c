package backend

import (
	"archive/zip"
	"context"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/getmockd/webmap/pkg/resource"
)

// archiveSuffixes are the accepted archive file suffixes.
var archiveSuffixes = []string{".zip", ".jar"}

func isArchiveName(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return slices.Contains(archiveSuffixes, ext)
}

// entryName normalizes an archive entry or request path: a clean relative
// slash-separated name with no leading slash. The root is "".
func entryName(name string) string {
	p := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimPrefix(p, "/")
}

// zipIndex maps normalized names to archive entries. Directories implied by
// entry names are synthesized.
type zipIndex struct {
	files map[string]*zip.File
	dirs  map[string]bool
	names []string
}

func newZipIndex(files []*zip.File) *zipIndex {
	idx := &zipIndex{
		files: make(map[string]*zip.File, len(files)),
		dirs:  map[string]bool{"": true},
	}
	for _, f := range files {
		n := entryName(f.Name)
		if n == "" {
			continue
		}
		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			idx.addDir(n)
			continue
		}
		// Later entries with the same name win.
		idx.files[n] = f
		idx.addDir(path.Dir(n))
	}
	for n := range idx.files {
		idx.names = append(idx.names, n)
	}
	for n := range idx.dirs {
		if n != "" {
			idx.names = append(idx.names, n+"/")
		}
	}
	slices.Sort(idx.names)
	return idx
}

func (idx *zipIndex) addDir(dir string) {
	for dir != "." && dir != "" && !idx.dirs[dir] {
		idx.dirs[dir] = true
		dir = path.Dir(dir)
	}
}

// entries resolves requests against a zip index. It serves the archive
// resolver and the packaged branch of the bundle resolver.
type entries struct {
	*base
	id        string
	idx       *zipIndex
	buffering Buffering
}

func (e *entries) resolve(ctx context.Context, self resource.Resolver, t resource.Target, rc *resource.RequestContext) (*resource.Descriptor, error) {
	name := entryName(t.Path)
	if e.policy.Hidden(name) {
		return nil, nil
	}
	if e.idx.dirs[name] && e.idx.files[name] == nil {
		if !resource.IsDirectoryStyle(t.Path) {
			return redirectToDir(t), nil
		}
		d, err := resource.ResolveWelcome(ctx, self, t, rc)
		if err != nil || d != nil {
			return d, err
		}
		if !e.policy.DisplayDir {
			return nil, nil
		}
		return e.lister.RenderEntries(e.idx.names, name, t.External())
	}
	if resource.IsDirectoryStyle(t.Path) {
		return nil, nil
	}
	return resource.ProbeGzip(e.policy, name, e.open)
}

func (e *entries) location(name string) string {
	return "archive:" + e.id + "!/" + name
}

func (e *entries) open(name string) (*resource.Descriptor, error) {
	f, ok := e.idx.files[name]
	if !ok {
		return nil, nil
	}
	r, err := f.Open()
	if err != nil {
		return nil, &resource.IOError{Op: "open", Location: e.location(name), Cause: err}
	}
	d := resource.NewDescriptor(r, int64(f.UncompressedSize64), e.policy.ContentType(name))
	d.Location = e.location(name)
	if err := e.buffering.apply(d, 0); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// Archive serves entries of a zip or jar file. The archive stays open for
// the lifetime of the resolver; Close releases it.
type Archive struct {
	base
	entries entries
	zr      *zip.ReadCloser
	path    string
}

var _ resource.Resolver = (*Archive)(nil)

// NewArchive opens the archive at root.Path. The file must carry a .zip or
// .jar suffix.
func NewArchive(root ArchiveRoot, opts ...Option) (*Archive, error) {
	a := &Archive{base: newBase(KindZip, opts)}
	if !isArchiveName(root.Path) {
		return nil, a.configError("path", "archive must end in .zip or .jar: "+root.Path, nil)
	}
	abs, err := filepath.Abs(root.Path)
	if err != nil {
		return nil, a.configError("path", "cannot make absolute", err)
	}
	zr, err := zip.OpenReader(abs)
	if err != nil {
		return nil, a.configError("path", "cannot open "+root.Path, err)
	}
	a.zr = zr
	a.path = abs
	a.entries = entries{
		base: &a.base,
		id:   abs,
		idx:  newZipIndex(zr.File),
	}
	a.logger.Debug("archive opened", "path", abs, "entries", len(a.entries.idx.files))
	return a, nil
}

// Path returns the absolute archive path.
func (a *Archive) Path() string { return a.path }

// Resolve implements resource.Resolver.
func (a *Archive) Resolve(ctx context.Context, t resource.Target, rc *resource.RequestContext) (*resource.Descriptor, error) {
	return a.entries.resolve(ctx, a, t, rc)
}

// Close releases the archive handle.
func (a *Archive) Close() error {
	return a.zr.Close()
}
