// Weave CLI - applies weave.toml injections to encoded classes
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/manifest"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	config  string
	verbose int
	color   string
	logFile string

	stdout io.Writer
	stderr io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		errorColor.Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "weave",
		Short:         "Inject handler callbacks into encoded classes",
		Long:          "weave rewrites classes according to the injections declared in weave.toml.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setupColor()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&g.config, "config", "", "path to weave.toml or its directory (default: search upwards)")
	root.PersistentFlags().CountVarP(&g.verbose, "verbose", "v", "increase log verbosity")
	root.PersistentFlags().StringVar(&g.color, "color", "auto", "colorize output (auto|on|off)")
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(newInjectCmd(g))
	root.AddCommand(newDisasmCmd(g))
	root.AddCommand(newGenerateCmd(g))
	return root
}

// setupColor applies the --color flag.
func (g *globals) setupColor() error {
	switch g.color {
	case "auto":
		f, ok := g.stdout.(*os.File)
		color.NoColor = !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (want auto, on or off)", g.color)
	}
	return nil
}

// loadManifest reads the manifest named by --config, or searches upwards
// from the working directory.
func (g *globals) loadManifest() (*manifest.Manifest, error) {
	var (
		m   *manifest.Manifest
		err error
	)
	if g.config != "" {
		dir := g.config
		if filepath.Base(dir) == manifest.FileName {
			dir = filepath.Dir(dir)
		}
		m, err = manifest.Load(dir)
	} else {
		m, err = manifest.FindAndLoad(".")
		if err == nil && m == nil {
			err = fmt.Errorf("no %s found in this directory or any parent", manifest.FileName)
		}
	}
	if err != nil {
		return nil, err
	}
	logging.Configure(m.Environment.Verbosity+g.verbose, g.logFile)
	return m, nil
}

var (
	errorColor  = color.New(color.FgRed, color.Bold)
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
)
