package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"sync"

	"github.com/getmockd/webmap/pkg/resource"
	"github.com/getmockd/webmap/pkg/servlet"
)

// Adapter serves responses produced by a servlet.Adapter.
type Adapter struct {
	base
	name    string
	adapter servlet.Adapter
	params  map[string]string

	attachOnce sync.Once
	attachErr  error
	detachOnce sync.Once
}

var (
	_ resource.Resolver = (*Adapter)(nil)
	_ resource.Attacher = (*Adapter)(nil)
	_ resource.Detacher = (*Adapter)(nil)
)

// NewAdapter returns a resolver bridging to root.Adapter. The adapter is
// not initialized until Attach.
func NewAdapter(root AdapterRoot, opts ...Option) (*Adapter, error) {
	a := &Adapter{base: newBase(KindAdapter, opts)}
	if root.Adapter == nil {
		return nil, a.configError("adapter", "must not be nil", nil)
	}
	a.name = root.Name
	if a.name == "" {
		a.name = fmt.Sprintf("%T", root.Adapter)
	}
	a.adapter = root.Adapter
	a.params = maps.Clone(root.Params)
	if a.params == nil {
		a.params = map[string]string{}
	}
	return a, nil
}

// Attach initializes the adapter with its parameters. Only the first call
// reaches the adapter.
func (a *Adapter) Attach(_ context.Context) error {
	a.attachOnce.Do(func() {
		if err := a.call(func() error { return a.adapter.Init(maps.Clone(a.params)) }); err != nil {
			a.attachErr = a.wrap(err)
			return
		}
		a.logger.Debug("adapter initialized", "adapter", a.name)
	})
	return a.attachErr
}

// Detach destroys the adapter. Only the first call reaches the adapter.
func (a *Adapter) Detach() error {
	var err error
	a.detachOnce.Do(func() {
		err = a.call(func() error {
			a.adapter.Destroy()
			return nil
		})
		if err != nil {
			err = a.wrap(err)
		}
	})
	return err
}

// Resolve implements resource.Resolver.
func (a *Adapter) Resolve(ctx context.Context, t resource.Target, rc *resource.RequestContext) (*resource.Descriptor, error) {
	method := http.MethodGet
	if rc != nil && rc.Method != "" {
		method = rc.Method
	}

	var handle func(context.Context, *servlet.Request, *servlet.Response) error
	switch method {
	case http.MethodGet, http.MethodHead:
		handle = a.adapter.DoGet
	case http.MethodPost:
		handle = a.adapter.DoPost
	case http.MethodPut:
		handle = a.adapter.DoPut
	case http.MethodDelete:
		handle = a.adapter.DoDelete
	default:
		return methodNotAllowed(), nil
	}

	req := a.request(t, rc, method)
	resp := servlet.NewResponse()
	if err := a.call(func() error { return handle(ctx, req, resp) }); err != nil {
		var se *servlet.Error
		if errors.As(err, &se) && se.StatusCode() == http.StatusMethodNotAllowed {
			return methodNotAllowed(), nil
		}
		return nil, a.wrap(err)
	}

	body := resp.Bytes()
	mediaType := resp.Header().Get("Content-Type")
	if mediaType == "" {
		mediaType = a.policy.PageType(t.Path)
	}
	d := resource.NewDescriptor(io.NopCloser(bytes.NewReader(body)), int64(len(body)), mediaType)
	d.Location = "adapter:" + a.name + t.Path
	d.Status = resp.Status()
	d.Encoding = resp.Header().Get("Content-Encoding")
	d.Header = resp.Header().Clone()
	d.Header.Del("Content-Type")
	d.Header.Del("Content-Length")
	d.Header.Del("Content-Encoding")
	return d, nil
}

func (a *Adapter) request(t resource.Target, rc *resource.RequestContext, method string) *servlet.Request {
	req := &servlet.Request{
		Method: method,
		Path:   t.Path,
		Query:  map[string][]string{},
		Header: http.Header{},
	}
	if rc == nil {
		return req
	}
	for k, vs := range rc.Params {
		req.Query[k] = append([]string(nil), vs...)
	}
	req.Header = rc.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Body = rc.Body
	req.SessionID = rc.SessionID
	req.RemoteAddr = rc.RemoteAddr
	return req
}

// call runs fn, turning a panic into an error.
func (a *Adapter) call(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func (a *Adapter) wrap(err error) error {
	ae := &resource.AdapterError{Adapter: a.name, Cause: err}
	var se *servlet.Error
	if errors.As(err, &se) {
		ae.Status = se.StatusCode()
	}
	return ae
}

func methodNotAllowed() *resource.Descriptor {
	msg := []byte("405 method not allowed\n")
	d := resource.NewBytesDescriptor(msg, "text/plain; charset=utf-8")
	d.Status = http.StatusMethodNotAllowed
	d.Header = http.Header{"Allow": {"GET, HEAD, POST, PUT, DELETE"}}
	return d
}
