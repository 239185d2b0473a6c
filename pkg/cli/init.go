package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/getmockd/webmap/pkg/backend"
	"github.com/getmockd/webmap/pkg/config"
	"github.com/getmockd/webmap/pkg/server"
)

// kindHelp describes what Arg means for each backend kind.
var kindHelp = map[string]string{
	backend.KindDir:      "directory path",
	backend.KindZip:      "path to a .zip or .jar archive",
	backend.KindTable:    "unused; entries go under table:",
	backend.KindBundle:   "bundled resource prefix, e.g. welcome",
	backend.KindRedirect: "target base URL",
	backend.KindRemote:   "upstream base URL",
	backend.KindAdapter:  "adapter name, e.g. echo",
}

type initOptions struct {
	*globalOptions
	output         string
	force          bool
	nonInteractive bool
	ctx            config.ContextConfig
	addr           string
}

func newInitCommand(g *globalOptions) *cobra.Command {
	o := &initOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration file",
		Example: `  webmap init
  webmap init --non-interactive --kind remote --prefix /api --arg https://api.example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "webmap.yaml", "file to write")
	f.BoolVarP(&o.force, "force", "f", false, "overwrite an existing file")
	f.BoolVar(&o.nonInteractive, "non-interactive", false, "skip the prompts and use flag values")
	f.StringVar(&o.ctx.Prefix, "prefix", "/", "URI prefix of the first context")
	f.StringVar(&o.ctx.Kind, "kind", backend.KindDir, "backend kind of the first context")
	f.StringVar(&o.ctx.Arg, "arg", "public", "backend argument of the first context")
	f.StringVar(&o.addr, "addr", ":8080", "listen address")
	return cmd
}

func (o *initOptions) run(cmd *cobra.Command) error {
	if !o.force {
		if _, err := os.Stat(o.output); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", o.output)
		}
	}
	if !o.nonInteractive {
		if err := o.prompt(); err != nil {
			return err
		}
	}

	cfg := config.DefaultConfig()
	cfg.Server.Addr = o.addr
	cc := o.ctx
	if cc.Kind == backend.KindTable {
		cc.Arg = ""
		cc.Table = map[string]string{"index.html": "<h1>Hello from webmap</h1>\n"}
	}
	cfg.Contexts = []config.ContextConfig{cc}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(o.output, cfg); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n\nStart serving with:\n  webmap serve --config %s\n", o.output, o.output)
	return nil
}

func (o *initOptions) prompt() error {
	title := cases.Title(language.English)
	options := make([]huh.Option[string], 0, len(backend.Registry))
	for _, k := range backend.Kinds() {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", title.String(k), kindHelp[k]), k))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Which address should the server listen on?").
				Value(&o.addr),
			huh.NewInput().
				Title("Which URI prefix should the first context serve?").
				Placeholder("/").
				Value(&o.ctx.Prefix).
				Validate(func(s string) error {
					_, err := server.NormalizePrefix(s)
					return err
				}),
			huh.NewSelect[string]().
				Title("Where does its content come from?").
				Options(options...).
				Value(&o.ctx.Kind),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("What is the backend argument?").
				Description("A path, URL, bundle prefix or adapter name, as listed for the kind.").
				Value(&o.ctx.Arg).
				Validate(func(s string) error {
					if s == "" && o.ctx.Kind != backend.KindTable && o.ctx.Kind != backend.KindBundle {
						return errors.New("an argument is required for this kind")
					}
					return nil
				}),
		),
	)
	return form.Run()
}
