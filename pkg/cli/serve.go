package cli

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/quic-go/quic-go/http3"
	"github.com/spf13/cobra"

	"github.com/getmockd/webmap/pkg/backend"
	"github.com/getmockd/webmap/pkg/cli/internal/output"
	"github.com/getmockd/webmap/pkg/config"
	"github.com/getmockd/webmap/pkg/server"
	webtls "github.com/getmockd/webmap/pkg/tls"
)

const readHeaderTimeout = 10 * time.Second

type serveOptions struct {
	*globalOptions
	addr       string
	dirs       []string
	certFile   string
	keyFile    string
	selfSigned bool
	http3      bool
}

func newServeCommand(g *globalOptions) *cobra.Command {
	o := &serveOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured contexts over HTTP",
		Example: `  webmap serve
  webmap serve --dir /=./public --dir /downloads=./dist/*.zip
  webmap serve --config site.yaml --self-signed --http3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", "", "listen address (overrides server.addr)")
	f.StringArrayVar(&o.dirs, "dir", nil, "mount a directory or archive as prefix=path; path may be a glob")
	f.StringVar(&o.certFile, "tls-cert", "", "TLS certificate file")
	f.StringVar(&o.keyFile, "tls-key", "", "TLS private key file")
	f.BoolVar(&o.selfSigned, "self-signed", false, "serve TLS with a generated self-signed certificate")
	f.BoolVar(&o.http3, "http3", false, "also serve HTTP/3 (requires TLS)")
	return cmd
}

func (o *serveOptions) run(cmd *cobra.Command) error {
	cfg, err := o.loadConfig(false)
	if err != nil {
		return err
	}
	if err := o.apply(cfg); err != nil {
		return err
	}
	if len(cfg.Contexts) == 0 {
		cfg.Contexts = []config.ContextConfig{{Prefix: "/", Kind: backend.KindBundle, Arg: "welcome"}}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, cc := range cfg.Contexts {
		if cc.InsecureSkipVerify {
			output.Warn(cmd.ErrOrStderr(), "context %s does not verify TLS certificates of %s", displayPrefix(cc.Prefix), cc.Arg)
		}
	}

	logger, closer, err := o.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table, err := config.BuildTable(ctx, cfg, Env(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := table.Close(); err != nil {
			logger.Warn("releasing contexts", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	return Serve(ctx, cfg, table, ln, logger)
}

// apply merges the serve flags into cfg.
func (o *serveOptions) apply(cfg *config.Config) error {
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.certFile != "" || o.keyFile != "" || o.selfSigned || o.http3 {
		t := cfg.Server.TLS
		if t == nil {
			t = &config.TLSConfig{}
		}
		if o.certFile != "" || o.keyFile != "" {
			t.CertFile, t.KeyFile, t.SelfSigned = o.certFile, o.keyFile, false
		}
		if o.selfSigned {
			t.SelfSigned = true
		}
		if o.http3 {
			t.HTTP3 = true
		}
		cfg.Server.TLS = t
	}
	dirs, err := expandDirs(o.dirs)
	if err != nil {
		return err
	}
	cfg.Contexts = append(cfg.Contexts, dirs...)
	return nil
}

// expandDirs turns --dir values into contexts. A glob path mounts every
// match under prefix/<name>, with archive extensions stripped.
func expandDirs(specs []string) ([]config.ContextConfig, error) {
	var out []config.ContextConfig
	for _, spec := range specs {
		prefix, p, ok := strings.Cut(spec, "=")
		if !ok {
			prefix, p = "/", spec
		}
		if p == "" {
			return nil, fmt.Errorf("--dir %q: empty path", spec)
		}
		if !strings.ContainsAny(p, "*?[{") {
			cc, err := dirContext(prefix, p)
			if err != nil {
				return nil, fmt.Errorf("--dir %q: %w", spec, err)
			}
			out = append(out, cc)
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("--dir %q: %w", spec, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("--dir %q: no matches", spec)
		}
		for _, m := range matches {
			name := filepath.Base(m)
			if isArchive(name) {
				name = strings.TrimSuffix(name, filepath.Ext(name))
			}
			cc, err := dirContext(path.Join("/", prefix, name), m)
			if err != nil {
				return nil, fmt.Errorf("--dir %q: %w", spec, err)
			}
			out = append(out, cc)
		}
	}
	return out, nil
}

func dirContext(prefix, p string) (config.ContextConfig, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return config.ContextConfig{}, err
	}
	kind := backend.KindDir
	if isArchive(abs) {
		kind = backend.KindZip
	}
	return config.ContextConfig{Prefix: prefix, Kind: kind, Arg: abs}, nil
}

func isArchive(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".jar":
		return true
	}
	return false
}

// Serve runs the HTTP server for table on ln until ctx is done, then shuts
// down gracefully within the configured timeout.
func Serve(ctx context.Context, cfg *config.Config, table *server.Table, ln net.Listener, logger *slog.Logger) error {
	var handler http.Handler = server.NewHandler(table, server.WithLogger(logger))

	tlsConfig, err := serverTLS(cfg, ln.Addr())
	if err != nil {
		_ = ln.Close()
		return err
	}

	var h3 *http3.Server
	if tlsConfig != nil && cfg.Server.TLS.HTTP3 {
		h3 = &http3.Server{
			Addr:      ln.Addr().String(),
			Handler:   handler,
			TLSConfig: http3.ConfigureTLSConfig(tlsConfig),
		}
		handler = advertiseHTTP3(h3, handler, logger)
	}

	srv := &http.Server{
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout.Std(),
		WriteTimeout:      cfg.Server.WriteTimeout.Std(),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 2)
	go func() {
		if tlsConfig != nil {
			errCh <- srv.ServeTLS(ln, "", "")
			return
		}
		errCh <- srv.Serve(ln)
	}()
	if h3 != nil {
		go func() { errCh <- h3.ListenAndServe() }()
	}

	scheme := "http"
	if tlsConfig != nil {
		scheme = "https"
	}
	logger.Info("server started",
		"url", fmt.Sprintf("%s://%s", scheme, ln.Addr()),
		"contexts", table.Prefixes(),
		"http3", h3 != nil,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			if h3 != nil {
				_ = h3.Close()
			}
			_ = srv.Close()
			return fmt.Errorf("server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if h3 != nil {
		if err := h3.Close(); err != nil {
			errs = append(errs, fmt.Errorf("http3 close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// serverTLS returns the TLS configuration of cfg, or nil for plain HTTP.
func serverTLS(cfg *config.Config, addr net.Addr) (*tls.Config, error) {
	t := cfg.Server.TLS
	if t == nil {
		return nil, nil
	}
	var (
		cert tls.Certificate
		err  error
	)
	if t.SelfSigned {
		cc := webtls.DefaultCertificateConfig()
		if host, _, splitErr := net.SplitHostPort(addr.String()); splitErr == nil && host != "" && !net.ParseIP(host).IsUnspecified() {
			cc.Hosts = append([]string{host}, cc.Hosts...)
		}
		cert, err = webtls.SelfSigned(cc)
	} else {
		cert, err = webtls.LoadKeyPair(
			config.ResolvePath(cfg.BaseDir(), t.CertFile),
			config.ResolvePath(cfg.BaseDir(), t.KeyFile),
		)
	}
	if err != nil {
		return nil, err
	}
	return webtls.ServerConfig(cert, t.HTTP3), nil
}

// advertiseHTTP3 adds the Alt-Svc header announcing h3 to every response.
func advertiseHTTP3(h3 *http3.Server, next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor < 3 {
			if err := h3.SetQUICHeaders(w.Header()); err != nil {
				logger.Debug("alt-svc header", "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}
