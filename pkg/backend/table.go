package backend

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/getmockd/webmap/pkg/resource"
)

// Table serves values of an in-memory key/value table. Keys are
// slash-separated names relative to the mount prefix, with no leading
// slash.
//
// Table does not lock: callers that mutate it through Put, Delete, Replace
// or Update while requests are being resolved must synchronize externally.
type Table struct {
	base
	table map[string][]byte
	keys  []string
}

var _ resource.Resolver = (*Table)(nil)

// NewTable returns a resolver over root.Table. A nil table is treated as
// empty.
func NewTable(root TableRoot, opts ...Option) (*Table, error) {
	t := &Table{base: newBase(KindTable, opts)}
	t.Replace(root.Table)
	return t, nil
}

// Replace swaps the backing table and rebuilds the key set.
func (t *Table) Replace(table map[string][]byte) {
	if table == nil {
		table = map[string][]byte{}
	}
	t.table = table
	t.Update()
}

// Update rebuilds the sorted key set from the backing table. Call it after
// mutating the map passed to NewTable or Replace directly.
func (t *Table) Update() {
	keys := make([]string, 0, len(t.table))
	for k := range t.table {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	t.keys = keys
}

// Put stores a value and rebuilds the key set.
func (t *Table) Put(key string, value []byte) {
	t.table[key] = value
	t.Update()
}

// Delete removes a key and rebuilds the key set.
func (t *Table) Delete(key string) {
	delete(t.table, key)
	t.Update()
}

// Keys returns a copy of the sorted key set.
func (t *Table) Keys() []string {
	return slices.Clone(t.keys)
}

// Resolve implements resource.Resolver.
func (t *Table) Resolve(ctx context.Context, tg resource.Target, rc *resource.RequestContext) (*resource.Descriptor, error) {
	name := resource.CleanPath(tg.Path)
	if t.policy.Hidden(name) {
		return nil, nil
	}
	if resource.IsDirectoryStyle(name) {
		return t.directory(ctx, tg, rc, name)
	}
	d, err := resource.ProbeGzip(t.policy, name, t.open)
	if err != nil || d != nil {
		return d, err
	}
	if t.hasPrefix(name + "/") {
		return redirectToDir(tg), nil
	}
	return nil, nil
}

// hasPrefix reports whether some key starts with prefix, using the
// smallest key not less than prefix.
func (t *Table) hasPrefix(prefix string) bool {
	i := sort.SearchStrings(t.keys, prefix)
	return i < len(t.keys) && strings.HasPrefix(t.keys[i], prefix)
}

func (t *Table) directory(ctx context.Context, tg resource.Target, rc *resource.RequestContext, name string) (*resource.Descriptor, error) {
	if !t.hasPrefix(name) {
		return nil, nil
	}
	d, err := resource.ResolveWelcome(ctx, t, tg, rc)
	if err != nil || d != nil {
		return d, err
	}
	if !t.policy.DisplayDir {
		return nil, nil
	}
	i := sort.SearchStrings(t.keys, name)
	j := i
	for j < len(t.keys) && strings.HasPrefix(t.keys[j], name) {
		j++
	}
	return t.lister.RenderEntries(t.keys[i:j], name, tg.External())
}

func (t *Table) open(name string) (*resource.Descriptor, error) {
	data, ok := t.table[name]
	if !ok {
		return nil, nil
	}
	d := resource.NewDescriptor(io.NopCloser(bytes.NewReader(data)), int64(len(data)), t.policy.ContentType(name))
	d.Location = "table:" + name
	return d, nil
}
