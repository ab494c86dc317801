package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/chazu/weave/callback"
	"github.com/chazu/weave/pkg/bytecode"
	"github.com/chazu/weave/weaver"
)

// ---------------------------------------------------------------------------
// weave inject: apply the manifest to class files
// ---------------------------------------------------------------------------

type injectOptions struct {
	out           string
	print         bool
	stats         bool
	emitSynthetic string
	jobs          int
}

func newInjectCmd(g *globals) *cobra.Command {
	opts := &injectOptions{}
	cmd := &cobra.Command{
		Use:   "inject <class.cbor>...",
		Short: "Apply the manifest injections to encoded classes",
		Long: `Decode each class, apply every weave.toml injection that targets it and
write the result back. Classes are processed concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInject(cmd, g, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write woven classes to this directory (default: overwrite inputs)")
	cmd.Flags().BoolVar(&opts.print, "print", false, "print the local variable report instead of injecting")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print injection and generation counters")
	cmd.Flags().StringVar(&opts.emitSynthetic, "emit-synthetic", "", "export generated synthetic classes to this directory")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "classes to weave concurrently (default: GOMAXPROCS)")
	return cmd
}

func runInject(cmd *cobra.Command, g *globals, opts *injectOptions, paths []string) error {
	m, err := g.loadManifest()
	if err != nil {
		return err
	}

	classes, err := readClasses(paths)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	sessionOpts := []weaver.Option{weaver.WithReport(g.stdout), weaver.WithRegisterer(reg)}
	if opts.print {
		sessionOpts = append(sessionOpts, weaver.WithBehaviour(callback.Print))
	}
	if opts.emitSynthetic != "" {
		sessionOpts = append(sessionOpts, weaver.WithExportDir(opts.emitSynthetic))
	}
	if opts.jobs > 0 {
		sessionOpts = append(sessionOpts, weaver.WithJobs(opts.jobs))
	}
	s := weaver.NewSession(m, sessionOpts...)

	results, err := s.WeaveAll(cmd.Context(), classes)
	if err != nil {
		return err
	}

	if !opts.print {
		for i, res := range results {
			if res.Total() == 0 && opts.out == "" {
				continue
			}
			dest := outputPath(paths[i], opts.out)
			if err := writeClass(dest, res.Class); err != nil {
				return err
			}
			okColor.Fprintf(g.stdout, "wove %s", res.Class.Name)
			fmt.Fprintf(g.stdout, " (%d sites) -> %s\n", res.Total(), dest)
		}
	}

	synthetic, err := s.Synthetic()
	if err != nil {
		return err
	}
	if opts.emitSynthetic != "" || m.ExportDirPath() != "" {
		fmt.Fprintf(g.stdout, "generated %d synthetic classes\n", len(synthetic))
	}

	if opts.stats {
		return printStats(g, reg)
	}
	return nil
}

// printStats writes every non-zero counter in reg, one per line.
func printStats(g *globals, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	headerColor.Fprintln(g.stdout, "Statistics")
	var lines []string
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			value := metric.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("  %-36s %-40s %6.0f", mf.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(g.stdout, l)
	}
	return nil
}

func readClasses(paths []string) ([]*bytecode.ClassNode, error) {
	classes := make([]*bytecode.ClassNode, len(paths))
	for i, path := range paths {
		c, err := readClass(path)
		if err != nil {
			return nil, err
		}
		classes[i] = c
	}
	return classes, nil
}

func readClass(path string) (*bytecode.ClassNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := bytecode.UnmarshalClass(data)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", path, err)
	}
	return c, nil
}

func writeClass(path string, c *bytecode.ClassNode) error {
	data, err := bytecode.MarshalClass(c)
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", c.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

func outputPath(input, outDir string) string {
	if outDir == "" {
		return input
	}
	return filepath.Join(outDir, filepath.Base(input))
}
