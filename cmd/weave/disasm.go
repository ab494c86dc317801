package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/weave/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// weave disasm: print encoded classes
// ---------------------------------------------------------------------------

func newDisasmCmd(g *globals) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "disasm <class.cbor>...",
		Short: "Disassemble encoded classes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			for _, path := range args {
				c, err := readClass(path)
				if err != nil {
					return err
				}
				printClass(g, c, method)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "only print methods with this name")
	return cmd
}

var commentColor = color.New(color.Faint)

// printClass writes the disassembly of c, highlighting comment lines.
func printClass(g *globals, c *bytecode.ClassNode, method string) {
	text := c.Disassemble()
	if method != "" {
		var sb strings.Builder
		for _, m := range c.MethodsNamed(method) {
			sb.WriteString(m.Disassemble())
		}
		text = sb.String()
	}
	headerColor.Fprintf(g.stdout, "%s\n", c.Name)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.HasPrefix(line, ";") {
			fmt.Fprintln(g.stdout, commentColor.Sprint(line))
			continue
		}
		fmt.Fprintln(g.stdout, line)
	}
}
