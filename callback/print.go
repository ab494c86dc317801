package callback

import (
	"io"
	"strconv"
	"strings"

	"github.com/chazu/weave/pkg/bytecode"
	"github.com/chazu/weave/pkg/pretty"
)

// decompilerPlaceholder prefixes variable names synthesised by
// decompilers for unnamed slots.
const decompilerPlaceholder = "☃"

// printLocals writes the live locals report for this injection to w.
func (cb *callback) printLocals(w io.Writer) error {
	return cb.report().Print(w)
}

func (cb *callback) report() *pretty.Printer {
	target := cb.target
	p := pretty.New(0)
	p.KV("Target Class", "%s", strings.ReplaceAll(target.Class.Name, "/", "."))
	p.KV("Target Method", "%s", pretty.Signature(target.Method.Name, target.Method.Desc, cb.argNames))
	p.KV("Target Max LOCALS", "%d", target.Method.MaxLocals)
	p.KV("Initial Frame Size", "%d", cb.frameSize)
	p.KV("Callback Name", "%s", cb.handler.Name)
	p.KV("Instruction", "%sNode %s", cb.node.Current.Kind(), cb.node.Current.Op)
	p.HR()
	p.Add("  %5s  %7s  %30s  %s", "INDEX", "ORDINAL", "TYPE", "NAME")

	types := bytecode.LocalTypes(cb.locals)
	start := 1
	if target.IsStatic {
		start = 0
	}
	for i := start; i < cb.frameSize && i < len(cb.locals); i++ {
		if lv := cb.locals[i]; lv != nil {
			p.Add("  PARAM   [ x ]   %30s  %-50s", pretty.TypeName(types[i]), meltSnowman(i, lv.Name))
		} else {
			p.Add("  PARAM           %30s", emptySlot(types, i))
		}
	}

	captured := make(map[int]bool, len(cb.captures))
	for _, c := range cb.captures {
		if c.Kind == Found {
			captured[c.Slot] = true
		}
	}
	for i := cb.frameSize; i < len(cb.locals); i++ {
		marker := ' '
		if i == cb.frameSize {
			marker = '>'
		}
		index := i - cb.frameSize
		lv := cb.locals[i]
		if lv == nil {
			p.Add("%c [%3d]           %30s", marker, index, emptySlot(types, i))
			continue
		}
		state := "skipped"
		if captured[i] {
			state = "captured"
		}
		p.Add("%c [%3d]   [%3d]   %30s  %-50s <%s>", marker, index, cb.table.Ordinal(i), pretty.TypeName(types[i]), meltSnowman(i, lv.Name), state)
	}
	return p
}

// emptySlot renders a slot without a variable: the second word of a wide
// value or unused.
func emptySlot(types []bytecode.Type, i int) string {
	if i > 0 && !types[i-1].IsZero() && types[i-1].Size() > 1 {
		return "<top>"
	}
	return "-"
}

func meltSnowman(index int, name string) string {
	if strings.HasPrefix(name, decompilerPlaceholder) {
		return "var" + strconv.Itoa(index)
	}
	return name
}
