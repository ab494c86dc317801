package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the method.
func (m *MethodNode) Disassemble() string {
	var sb strings.Builder
	m.disassembleTo(&sb)
	return sb.String()
}

func (m *MethodNode) disassembleTo(sb *strings.Builder) {
	fmt.Fprintf(sb, "; === %s%s ===\n", m.Name, m.Desc)
	fmt.Fprintf(sb, "; Access: 0x%04X", uint16(m.Access))
	if m.IsStatic() {
		sb.WriteString(" [STATIC]")
	}
	if m.Access.Has(AccSynthetic) {
		sb.WriteString(" [SYNTHETIC]")
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "; MaxStack: %d  MaxLocals: %d\n", m.MaxStack, m.MaxLocals)

	if len(m.Markers) > 0 {
		fmt.Fprintf(sb, "; Markers: %s\n", strings.Join(m.Markers, ", "))
	}
	for i := 0; i < len(m.ArgumentTypes()); i++ {
		if anns := m.ParamAnnotations[i]; len(anns) > 0 {
			fmt.Fprintf(sb, "; Param %d: @%s\n", i, strings.Join(anns, " @"))
		}
	}

	if len(m.LocalVariables) > 0 {
		sb.WriteString("; Locals:\n")
		for _, lv := range m.LocalVariables {
			fmt.Fprintf(sb, ";   [%3d] %-20s %s (L%d..L%d)\n",
				lv.Index, lv.Name, lv.Desc,
				m.Instructions.IndexOf(lv.Start), m.Instructions.IndexOf(lv.End))
		}
	}
	sb.WriteString("\n")

	for i, insn := range m.Instructions.Slice() {
		if insn.IsLabel() {
			fmt.Fprintf(sb, "%04d  %s:\n", i, insn)
			continue
		}
		fmt.Fprintf(sb, "%04d      %s\n", i, insn)
	}
}

// Disassemble returns a human-readable listing of the class and all of its
// methods.
func (c *ClassNode) Disassemble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; class %s extends %s\n", c.Name, c.SuperName)
	fmt.Fprintf(&sb, "; Version: %d  Access: 0x%04X\n", c.Version, uint16(c.Access))
	if c.Source != "" {
		fmt.Fprintf(&sb, "; Source: %s\n", c.Source)
	}
	for _, f := range c.Fields {
		fmt.Fprintf(&sb, "; field 0x%04X %s %s\n", uint16(f.Access), f.Name, f.Desc)
	}
	for _, m := range c.Methods {
		sb.WriteString("\n")
		m.disassembleTo(&sb)
	}
	return sb.String()
}
