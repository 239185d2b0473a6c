// Package backend provides the resolvers that back a mounted prefix:
// filesystem directories, zip archives, in-memory key/value tables, bundled
// resource trees, redirects, remote URLs and dynamic-content adapters.
//
// Each backend is described by a Root variant carrying only the fields it
// needs, and New builds the matching resolver:
//
//	r, err := backend.New(backend.DirRoot{Path: "./public"},
//	    backend.WithLogger(logger))
//
// Construction errors are *resource.ConfigError values and are fatal; no
// partially built resolver is ever returned. Resolvers that own handles
// (archives, packaged bundles) implement io.Closer.
package backend
