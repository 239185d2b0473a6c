// Package resource defines the contract between the HTTP front end and the
// pluggable backends that turn a request path into a response payload.
//
// A Resolver is mounted under a URI prefix. For each request it receives the
// residual path as a Target together with a read-only RequestContext and
// returns a Descriptor: a single-use body stream plus its length, media type,
// content encoding and diagnostic location. A nil Descriptor (or ErrNotFound)
// means the path does not exist.
//
// # Ownership
//
// The caller owns every returned Descriptor and must call Close exactly once
// on every exit path, including error paths:
//
//	d, err := r.Resolve(ctx, t, rc)
//	if err != nil {
//	    return err
//	}
//	if d == nil {
//	    return resource.ErrNotFound
//	}
//	defer func() { _ = d.Close() }()
//
// # Shared policy
//
// Every resolver carries a Policy with the negotiation rules shared by all
// backends: media type lookup by suffix, page-encoding rules, welcome files,
// gzip fallback candidates, the allowed method set and the query gate.
// A Policy is populated before the resolver is mounted and is read-only
// afterwards, so it can be consulted concurrently without locking.
package resource
