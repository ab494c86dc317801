// Package pretty renders boxed diagnostic reports: aligned key/value
// headers, horizontal rules and free-form lines inside a comment-style
// border.
package pretty

import (
	"fmt"
	"io"
	"strings"

	"github.com/chazu/weave/pkg/bytecode"
)

// DefaultWidth is the minimum inner width of a report.
const DefaultWidth = 100

type lineKind uint8

const (
	lineText lineKind = iota
	lineKV
	lineRule
)

type line struct {
	kind  lineKind
	key   string
	value string
}

// Printer accumulates a report. Methods return the printer for chaining.
type Printer struct {
	width int
	lines []line
}

// New creates a printer with the given minimum inner width.
func New(width int) *Printer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Printer{width: width}
}

// Add appends a formatted line.
func (p *Printer) Add(format string, args ...any) *Printer {
	text := fmt.Sprintf(format, args...)
	for _, l := range strings.Split(text, "\n") {
		p.lines = append(p.lines, line{kind: lineText, value: l})
	}
	return p
}

// KV appends a key/value line. Keys are right-aligned with each other.
func (p *Printer) KV(key, format string, args ...any) *Printer {
	p.lines = append(p.lines, line{kind: lineKV, key: key, value: fmt.Sprintf(format, args...)})
	return p
}

// HR appends a horizontal rule.
func (p *Printer) HR() *Printer {
	p.lines = append(p.lines, line{kind: lineRule})
	return p
}

// String renders the report.
func (p *Printer) String() string {
	keyWidth := 0
	for _, l := range p.lines {
		if l.kind == lineKV {
			keyWidth = max(keyWidth, len(l.key))
		}
	}

	rendered := make([]string, len(p.lines))
	inner := p.width
	for i, l := range p.lines {
		switch l.kind {
		case lineKV:
			rendered[i] = fmt.Sprintf("%*s : %s", keyWidth, l.key, l.value)
		case lineText:
			rendered[i] = l.value
		}
		inner = max(inner, len([]rune(rendered[i])))
	}

	border := "/*" + strings.Repeat("*", inner+2) + "*/"
	var sb strings.Builder
	sb.WriteString(border + "\n")
	for i, l := range p.lines {
		if l.kind == lineRule {
			sb.WriteString("/* " + strings.Repeat("-", inner) + " */\n")
			continue
		}
		pad := inner - len([]rune(rendered[i]))
		sb.WriteString("/* " + rendered[i] + strings.Repeat(" ", pad) + " */\n")
	}
	sb.WriteString(border + "\n")
	return sb.String()
}

// Print writes the rendered report to w.
func (p *Printer) Print(w io.Writer) error {
	_, err := io.WriteString(w, p.String())
	return err
}

// ---------------------------------------------------------------------------
// Signatures
// ---------------------------------------------------------------------------

// Signature renders a method signature in source form, for example
// "void tick(int delta, String label)". Missing argument names are
// omitted.
func Signature(name, desc string, argNames []string) string {
	args, ret, err := bytecode.ParseMethodDescriptor(desc)
	if err != nil {
		return name + desc
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = TypeName(a)
		if i < len(argNames) && argNames[i] != "" {
			parts[i] += " " + argNames[i]
		}
	}
	return fmt.Sprintf("%s %s(%s)", TypeName(ret), name, strings.Join(parts, ", "))
}

// TypeName renders a type the way it is written in a signature: simple
// class names for references, keyword names for primitives.
func TypeName(t bytecode.Type) string {
	if t.Sort() == bytecode.SortArray {
		return TypeName(t.ElementType()) + "[]"
	}
	return t.SimpleName()
}
