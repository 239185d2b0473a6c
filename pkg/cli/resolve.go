package cli

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/webmap/pkg/cli/internal/output"
	"github.com/getmockd/webmap/pkg/config"
	"github.com/getmockd/webmap/pkg/resource"
)

// ResolveOutput is the JSON form of a resolved descriptor.
type ResolveOutput struct {
	Path      string `json:"path"`
	Prefix    string `json:"prefix"`
	Status    int    `json:"status"`
	MediaType string `json:"mediaType,omitempty"`
	Length    int64  `json:"length"`
	Encoding  string `json:"encoding,omitempty"`
	Location  string `json:"location,omitempty"`
	Redirect  bool   `json:"redirect,omitempty"`
	Welcome   bool   `json:"welcome,omitempty"`
	Body      string `json:"body,omitempty"`
}

type resolveOptions struct {
	*globalOptions
	method string
	body   bool
}

func newResolveCommand(g *globalOptions) *cobra.Command {
	o := &resolveOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Resolve a request path against the configured contexts without serving",
		Example: `  webmap resolve /docs/
  webmap resolve --json --body /api/status?verbose=1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	cmd.Flags().StringVarP(&o.method, "method", "X", http.MethodGet, "request method")
	cmd.Flags().BoolVar(&o.body, "body", false, "include the response body")
	return cmd
}

func (o *resolveOptions) run(cmd *cobra.Command, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", target, err)
	}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}

	cfg, err := o.loadConfig(true)
	if err != nil {
		return err
	}
	logger, closer, err := o.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	table, err := config.BuildTable(cmd.Context(), cfg, Env(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = table.Close() }()

	prefix, res, ok := table.Match(u.Path)
	if !ok {
		return fmt.Errorf("%s: no context matches", u.Path)
	}
	method := strings.ToUpper(o.method)
	if !res.Policy().Allows(method) {
		return fmt.Errorf("%s: method %s not allowed (allowed: %s)", u.Path, method, res.Policy().Allow())
	}
	t := resource.NewTarget(prefix, u)
	if t.HasQuery() && !res.Policy().AllowsQuery {
		return fmt.Errorf("%s: %w (context does not accept query strings)", u.Path, resource.ErrNotFound)
	}
	rc := &resource.RequestContext{
		Method: method,
		Header: http.Header{},
		Params: u.Query(),
	}

	d, err := res.Resolve(cmd.Context(), t, rc)
	if err == nil && d == nil {
		err = resource.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return fmt.Errorf("%s: %w", u.Path, err)
		}
		return fmt.Errorf("%s: %w (status %d)", u.Path, err, resource.StatusCode(err))
	}
	defer func() { _ = d.Close() }()

	out := ResolveOutput{
		Path:      u.Path,
		Prefix:    displayPrefix(prefix),
		Status:    d.StatusCode(),
		MediaType: d.MediaType,
		Length:    d.Length,
		Encoding:  d.Encoding,
		Location:  d.Location,
		Redirect:  d.Redirect,
		Welcome:   d.Welcome,
	}
	if d.Redirect {
		out.Status = http.StatusFound
	}
	if o.body && d.Body != nil {
		var body io.Reader = d.Body
		if d.Encoding == "gzip" {
			zr, err := gzip.NewReader(body)
			if err != nil {
				return fmt.Errorf("decode body: %w", err)
			}
			defer func() { _ = zr.Close() }()
			body = zr
		}
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		out.Body = string(data)
	}

	w := cmd.OutOrStdout()
	if o.jsonOutput {
		return output.JSON(w, out)
	}
	tw := output.Table(w)
	row := func(k, v string) { _, _ = fmt.Fprintf(tw, "%s:\t%s\n", k, v) }
	row("Context", out.Prefix)
	row("Status", strconv.Itoa(out.Status))
	if out.MediaType != "" {
		row("Media-Type", out.MediaType)
	}
	if out.Length >= 0 {
		row("Length", strconv.FormatInt(out.Length, 10))
	} else {
		row("Length", "unknown")
	}
	if out.Encoding != "" {
		row("Encoding", out.Encoding)
	}
	row("Location", out.Location)
	var flags []string
	if out.Redirect {
		flags = append(flags, "redirect")
	}
	if out.Welcome {
		flags = append(flags, "welcome")
	}
	if len(flags) > 0 {
		row("Flags", strings.Join(flags, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if o.body && out.Body != "" {
		_, _ = fmt.Fprintf(w, "\n%s", out.Body)
		if !strings.HasSuffix(out.Body, "\n") {
			_, _ = fmt.Fprintln(w)
		}
	}
	return nil
}

func displayPrefix(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
