package servlet

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Factory creates a fresh Adapter.
type Factory func() Adapter

// Builtin returns the adapters that can be referenced by name from a
// configuration file.
func Builtin() map[string]Factory {
	return map[string]Factory{
		"echo": func() Adapter { return &Echo{} },
	}
}

// Echo reports the request back to the client as plain text. The "banner"
// init parameter, if set, is printed first. POST and PUT bodies are
// echoed after the request line.
type Echo struct {
	Base
	banner string
}

func (e *Echo) Init(params map[string]string) error {
	e.banner = params["banner"]
	return nil
}

func (e *Echo) DoGet(_ context.Context, req *Request, resp *Response) error {
	resp.SetContentType("text/plain; charset=utf-8")
	if e.banner != "" {
		_, _ = fmt.Fprintln(resp, e.banner)
	}
	_, _ = fmt.Fprintf(resp, "%s %s\n", req.Method, req.Path)
	keys := make([]string, 0, len(req.Query))
	for k := range req.Query {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(resp, "%s=%s\n", k, strings.Join(req.Query[k], ","))
	}
	return nil
}

func (e *Echo) DoPost(ctx context.Context, req *Request, resp *Response) error {
	if err := e.DoGet(ctx, req, resp); err != nil {
		return err
	}
	if req.Body == nil {
		return nil
	}
	if _, err := io.Copy(resp, req.Body); err != nil {
		return &Error{Status: 400, Message: "read request body", Cause: err}
	}
	return nil
}

func (e *Echo) DoPut(ctx context.Context, req *Request, resp *Response) error {
	return e.DoPost(ctx, req, resp)
}
