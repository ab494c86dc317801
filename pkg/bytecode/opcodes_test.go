package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{NOP, "NOP"},
		{ILOAD, "ILOAD"},
		{ASTORE, "ASTORE"},
		{DUP2_X1, "DUP2_X1"},
		{INVOKESPECIAL, "INVOKESPECIAL"},
		{CHECKCAST, "CHECKCAST"},
		{RETURN, "RETURN"},
		{LABEL, "LABEL"},
		{Opcode(0xFE), "UNKNOWN(0xFE)"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestOpcodePredicates(t *testing.T) {
	for _, op := range []Opcode{IRETURN, LRETURN, FRETURN, DRETURN, ARETURN, RETURN} {
		if !op.IsReturn() {
			t.Errorf("%s.IsReturn() = false, want true", op)
		}
		if !op.EndsBlock() {
			t.Errorf("%s.EndsBlock() = false, want true", op)
		}
	}
	if ATHROW.IsReturn() {
		t.Error("ATHROW.IsReturn() = true, want false")
	}
	if !IFEQ.IsJump() || !GOTO.IsJump() {
		t.Error("IFEQ/GOTO should be jumps")
	}
	if !INVOKESTATIC.IsInvoke() || NEW.IsInvoke() {
		t.Error("IsInvoke mismatch")
	}
}

func TestTypedOpcodeLayout(t *testing.T) {
	// Typed variants are laid out I, L, F, D, A from the base opcode.
	bases := []struct {
		base Opcode
		want [5]Opcode
	}{
		{ILOAD, [5]Opcode{ILOAD, LLOAD, FLOAD, DLOAD, ALOAD}},
		{ISTORE, [5]Opcode{ISTORE, LSTORE, FSTORE, DSTORE, ASTORE}},
		{IRETURN, [5]Opcode{IRETURN, LRETURN, FRETURN, DRETURN, ARETURN}},
	}
	types := [5]Type{Int, Long, Float, Double, StringType}
	for _, b := range bases {
		for i, typ := range types {
			if got := typ.Opcode(b.base); got != b.want[i] {
				t.Errorf("%s.Opcode(%s) = %s, want %s", typ, b.base, got, b.want[i])
			}
		}
	}
}
