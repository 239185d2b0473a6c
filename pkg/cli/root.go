package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/webmap/pkg/config"
	"github.com/getmockd/webmap/pkg/logging"
)

// BuildInfo carries the version stamped into the binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	jsonOutput bool
}

// NewRootCommand builds the webmap command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "webmap",
		Short: "webmap serves directories, archives, tables and upstreams under URI prefixes",
		Long: `webmap maps URI prefixes to content sources: local directories, zip and jar
archives, in-memory tables, bundled resources, redirects, remote HTTP servers
and dynamic adapters.

Contexts are read from a configuration file (webmap.yaml by default, or the
file named by $` + config.EnvConfig + `) and may be extended with --dir flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default: discover webmap.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output command results in JSON format")

	root.AddCommand(
		newServeCommand(opts),
		newResolveCommand(opts),
		newInitCommand(opts),
		newVersionCommand(opts, info),
	)
	return root
}

// Main runs the command line with args and returns the process exit code.
func Main(info BuildInfo, args []string) int {
	root := NewRootCommand(info)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig returns the configuration named by --config, the discovered
// one, or defaults when required is false and nothing is found.
func (o *globalOptions) loadConfig(required bool) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		discovered, err := config.Discover(wd)
		switch {
		case err == nil:
			path = discovered
		case errors.Is(err, config.ErrNoConfig) && !required:
			cfg := config.DefaultConfig()
			cfg.SetBaseDir(wd)
			return cfg, nil
		default:
			return nil, err
		}
	}
	return config.Load(path)
}

// logger opens the logger described by cfg, with flags and the
// environment taking precedence.
func (o *globalOptions) logger(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	lc := logging.DefaultConfig()
	lc.Output = stderr
	lc.Level = logging.ParseLevel(cfg.Logging.Level)
	lc.Format = logging.ParseFormat(cfg.Logging.Format)
	if cfg.Logging.File != "" {
		lc.File = config.ResolvePath(cfg.BaseDir(), cfg.Logging.File)
		if cfg.Logging.FileLevel != "" {
			lc.FileLevel = logging.ParseLevel(cfg.Logging.FileLevel)
		}
	}
	lc = logging.FromEnv(lc)
	if o.logLevel != "" {
		lc.Level = logging.ParseLevel(o.logLevel)
	}
	if o.logFormat != "" {
		lc.Format = logging.ParseFormat(o.logFormat)
	}
	return logging.Open(lc)
}
