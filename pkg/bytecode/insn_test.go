package bytecode

import "testing"

func opsOf(l *InsnList) []Opcode {
	var ops []Opcode
	for insn := range l.All() {
		ops = append(ops, insn.Op)
	}
	return ops
}

func equalOps(a, b []Opcode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsnListAdd(t *testing.T) {
	l := NewInsnList(NewInsn(ICONST_0), NewInsn(POP), NewInsn(RETURN))
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	if l.First().Op != ICONST_0 || l.Last().Op != RETURN {
		t.Errorf("First/Last = %s/%s", l.First().Op, l.Last().Op)
	}
	if l.Get(1).Op != POP {
		t.Errorf("Get(1) = %s, want POP", l.Get(1).Op)
	}
	if l.Get(3) != nil {
		t.Error("Get(3) should be nil")
	}
}

func TestInsnListInsertBefore(t *testing.T) {
	ret := NewInsn(RETURN)
	l := NewInsnList(NewInsn(NOP), ret)

	patch := NewInsnList(NewInsn(ICONST_1), NewInsn(POP))
	l.InsertBefore(ret, patch)

	want := []Opcode{NOP, ICONST_1, POP, RETURN}
	if got := opsOf(l); !equalOps(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if patch.Len() != 0 {
		t.Errorf("source list Len() = %d, want 0", patch.Len())
	}
	if l.IndexOf(ret) != 3 {
		t.Errorf("IndexOf(ret) = %d, want 3", l.IndexOf(ret))
	}
}

func TestInsnListInsertAtHead(t *testing.T) {
	first := NewInsn(NOP)
	l := NewInsnList(first)
	l.Insert(NewInsnList(NewInsn(ACONST_NULL), NewInsn(POP)))
	want := []Opcode{ACONST_NULL, POP, NOP}
	if got := opsOf(l); !equalOps(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if l.First().Prev() != nil || l.Last().Next() != nil {
		t.Error("list ends should have nil neighbours")
	}
}

func TestInsnListRemove(t *testing.T) {
	mid := NewInsn(POP)
	l := NewInsnList(NewInsn(ICONST_0), mid, NewInsn(RETURN))
	l.Remove(mid)
	if l.Len() != 2 || l.Contains(mid) {
		t.Fatalf("Remove failed: Len() = %d", l.Len())
	}
	if l.IndexOf(mid) != -1 {
		t.Error("IndexOf(removed) should be -1")
	}
	// A removed instruction can join another list.
	other := NewInsnList(mid)
	if !other.Contains(mid) {
		t.Error("removed instruction should be reusable")
	}
}

func TestInsnListDoubleClaimPanics(t *testing.T) {
	insn := NewInsn(NOP)
	NewInsnList(insn)
	defer func() {
		if recover() == nil {
			t.Error("adding an instruction to two lists should panic")
		}
	}()
	NewInsnList(insn)
}

func TestInsnStackEffect(t *testing.T) {
	tests := []struct {
		insn      *Insn
		pop, push int
	}{
		{NewVarInsn(LLOAD, 1), 0, 2},
		{NewMethodInsn(INVOKEVIRTUAL, "a/B", "m", "(IJ)D"), 4, 2},
		{NewMethodInsn(INVOKESTATIC, "a/B", "m", "(I)V"), 1, 0},
		{NewFieldInsn(GETFIELD, "a/B", "f", "J"), 1, 2},
		{NewFieldInsn(PUTFIELD, "a/B", "f", "I"), 2, 0},
		{NewLdcInsn("x"), 0, 1},
		{NewLdcInsn(int64(1)), 0, 2},
		{NewInsn(DUP2_X1), 3, 5},
	}
	for _, tt := range tests {
		pop, push := tt.insn.StackEffect()
		if pop != tt.pop || push != tt.push {
			t.Errorf("%s: StackEffect() = (%d, %d), want (%d, %d)", tt.insn, pop, push, tt.pop, tt.push)
		}
	}
}

func TestInsnString(t *testing.T) {
	label := NewLabel()
	jump := NewJumpInsn(IFEQ, label)
	l := NewInsnList(jump, NewInsn(RETURN), label)
	_ = l
	if got := jump.String(); got != "IFEQ L2" {
		t.Errorf("jump.String() = %q, want %q", got, "IFEQ L2")
	}
	if got := NewVarInsn(ALOAD, 3).String(); got != "ALOAD 3" {
		t.Errorf("String() = %q", got)
	}
	if got := NewMethodInsn(INVOKESPECIAL, "a/B", "<init>", "()V").String(); got != "INVOKESPECIAL a/B.<init> ()V" {
		t.Errorf("String() = %q", got)
	}
	if got := NewLdcInsn("hi").String(); got != `LDC "hi"` {
		t.Errorf("String() = %q", got)
	}
}

func TestPushInt(t *testing.T) {
	tests := []struct {
		v    int
		want string
	}{
		{-1, "ICONST_M1"},
		{0, "ICONST_0"},
		{5, "ICONST_5"},
		{6, "BIPUSH 6"},
		{-128, "BIPUSH -128"},
		{300, "SIPUSH 300"},
		{70000, "LDC 70000"},
	}
	for _, tt := range tests {
		if got := PushInt(tt.v).String(); got != tt.want {
			t.Errorf("PushInt(%d) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
