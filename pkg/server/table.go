// Package server mounts resolvers under URI prefixes and serves them over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/getmockd/webmap/pkg/logging"
	"github.com/getmockd/webmap/pkg/resource"
)

// Table errors.
var (
	ErrPrefixExists   = errors.New("prefix already mounted")
	ErrPrefixNotFound = errors.New("prefix not mounted")
	ErrInvalidPrefix  = errors.New("invalid prefix")
)

// Table maps URI prefixes to resolvers and dispatches by longest prefix.
// It is safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	mounts   map[string]resource.Resolver
	prefixes []string // longest first
	logger   *slog.Logger
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithTableLogger sets the table logger.
func WithTableLogger(l *slog.Logger) TableOption {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTable returns an empty Table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		mounts: map[string]resource.Resolver{},
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NormalizePrefix returns the canonical form of a mount prefix: a leading
// slash and no trailing slash. The root prefix is "".
func NormalizePrefix(prefix string) (string, error) {
	if prefix == "" || prefix == "/" {
		return "", nil
	}
	if !strings.HasPrefix(prefix, "/") || strings.ContainsAny(prefix, "?#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return strings.TrimRight(prefix, "/"), nil
}

// Mount registers r under prefix and attaches it.
func (t *Table) Mount(ctx context.Context, prefix string, r resource.Resolver) error {
	p, err := NormalizePrefix(prefix)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("mount %q: nil resolver", prefix)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.mounts[p]; ok {
		return fmt.Errorf("%w: %q", ErrPrefixExists, displayPrefix(p))
	}
	if a, ok := r.(resource.Attacher); ok {
		if err := a.Attach(ctx); err != nil {
			return fmt.Errorf("attach %q: %w", displayPrefix(p), err)
		}
	}
	t.mounts[p] = r
	t.prefixes = append(t.prefixes, p)
	slices.SortFunc(t.prefixes, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	t.logger.Info("mounted", "prefix", displayPrefix(p), "resolver", fmt.Sprintf("%T", r))
	return nil
}

// Unmount removes the resolver under prefix, detaching and closing it.
func (t *Table) Unmount(prefix string) error {
	p, err := NormalizePrefix(prefix)
	if err != nil {
		return err
	}
	t.mu.Lock()
	r, ok := t.mounts[p]
	if ok {
		delete(t.mounts, p)
		t.prefixes = slices.DeleteFunc(t.prefixes, func(s string) bool { return s == p })
	}
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrPrefixNotFound, displayPrefix(p))
	}
	t.logger.Info("unmounted", "prefix", displayPrefix(p))
	return release(r)
}

// Match returns the resolver with the longest prefix matching path, along
// with that prefix. A prefix matches path when it equals path or is
// followed by a slash in it.
func (t *Table) Match(path string) (string, resource.Resolver, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.prefixes {
		if p == "" || path == p || strings.HasPrefix(path, p+"/") {
			return p, t.mounts[p], true
		}
	}
	return "", nil, false
}

// Lookup returns the resolver mounted exactly at prefix.
func (t *Table) Lookup(prefix string) (resource.Resolver, bool) {
	p, err := NormalizePrefix(prefix)
	if err != nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.mounts[p]
	return r, ok
}

// Prefixes returns the mounted prefixes, longest first.
func (t *Table) Prefixes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.prefixes))
	for i, p := range t.prefixes {
		out[i] = displayPrefix(p)
	}
	return out
}

// Close unmounts every resolver and returns the joined errors.
func (t *Table) Close() error {
	t.mu.Lock()
	mounts := t.mounts
	t.mounts = map[string]resource.Resolver{}
	t.prefixes = nil
	t.mu.Unlock()

	var errs []error
	for p, r := range mounts {
		if err := release(r); err != nil {
			errs = append(errs, fmt.Errorf("release %q: %w", displayPrefix(p), err))
		}
	}
	return errors.Join(errs...)
}

// release detaches and closes r when it supports those hooks.
func release(r resource.Resolver) error {
	var errs []error
	if d, ok := r.(resource.Detacher); ok {
		errs = append(errs, d.Detach())
	}
	if c, ok := r.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func displayPrefix(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
