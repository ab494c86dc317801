package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/chazu/weave/weaver"
)

// ---------------------------------------------------------------------------
// weave generate: show the synthetic classes an inject run allocates
// ---------------------------------------------------------------------------

func newGenerateCmd(g *globals) *cobra.Command {
	var (
		from []string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "generate [synthetic-name]...",
		Short: "Generate the synthetic classes needed by the given classes",
		Long: `Weave the classes named by --from in memory, then generate the synthetic
carrier and args classes they allocated. With no names every allocated
class is printed. Inputs are never rewritten.`,
		RunE: func(cmd *cobra.Command, names []string) error {
			if len(from) == 0 {
				return fmt.Errorf("--from is required")
			}
			m, err := g.loadManifest()
			if err != nil {
				return err
			}
			classes, err := readClasses(from)
			if err != nil {
				return err
			}
			opts := []weaver.Option{weaver.WithReport(g.stderr)}
			if out != "" {
				opts = append(opts, weaver.WithExportDir(out))
			}
			s := weaver.NewSession(m, opts...)
			if _, err := s.WeaveAll(cmd.Context(), classes); err != nil {
				return err
			}

			if len(names) == 0 {
				names = s.Registry().Names()
				slices.Sort(names)
			}
			for _, name := range names {
				c, err := s.Loader().Load(name)
				if err != nil {
					return err
				}
				printClass(g, c, "")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&from, "from", nil, "encoded classes to weave")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also export the generated classes to this directory")
	return cmd
}
