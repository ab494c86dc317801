package bytecode

import (
	"strings"
	"testing"
)

func TestMethodDisassemble(t *testing.T) {
	m, _ := buildCounter()
	m.Mark("weave/Processed")
	out := m.Disassemble()

	for _, want := range []string{
		"; === tick(I)V ===",
		"; Markers: weave/Processed",
		"[  2] total",
		"0001      LCONST_0",
		"0000  L0:",
		"RETURN",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

func TestClassDisassemble(t *testing.T) {
	c := NewClass("demo/A", "weave/lang/Object")
	c.VisitSource("A.weave")
	c.VisitField(AccPrivate, "x", "I")
	c.VisitMethod(AccStatic, "m", "()V").Emit(NewInsn(RETURN))

	out := c.Disassemble()
	for _, want := range []string{
		"; class demo/A extends weave/lang/Object",
		"; Source: A.weave",
		"; field 0x0002 x I",
		"[STATIC]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}
