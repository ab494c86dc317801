package bytecode

import "testing"

func TestClass_CBORRoundTrip(t *testing.T) {
	c := NewClass("demo/Counter", "weave/lang/Object")
	c.VisitSource("Counter.weave")
	c.VisitField(AccPrivate, "count", "I")

	m, _ := buildCounter()
	m.AnnotateParam(0, "weave/Modify")
	m.Mark("weave/Processed")
	skip := NewLabel()
	m.Instructions.Insert(NewInsnList(
		NewLdcInsn("tick"), NewInsn(POP),
		NewLdcInsn(int64(7)), NewInsn(POP2),
		NewLdcInsn(StringType), NewInsn(POP),
		NewInsn(ICONST_0), NewJumpInsn(IFEQ, skip),
		skip,
	))
	c.AddMethod(m)

	data, err := MarshalClass(c)
	if err != nil {
		t.Fatalf("MarshalClass: %v", err)
	}
	got, err := UnmarshalClass(data)
	if err != nil {
		t.Fatalf("UnmarshalClass: %v", err)
	}

	if got.Name != c.Name || got.SuperName != c.SuperName || got.Source != c.Source {
		t.Errorf("header = %s/%s/%s", got.Name, got.SuperName, got.Source)
	}
	if len(got.Fields) != 1 || got.Fields[0].Name != "count" {
		t.Errorf("Fields = %+v", got.Fields)
	}
	gm := got.Method("tick", "(I)V")
	if gm == nil {
		t.Fatal("method tick(I)V missing after round trip")
	}
	if gm.Instructions.Len() != m.Instructions.Len() {
		t.Fatalf("Len() = %d, want %d", gm.Instructions.Len(), m.Instructions.Len())
	}
	if gm.Disassemble() != m.Disassemble() {
		t.Errorf("disassembly differs:\n%s\nwant:\n%s", gm.Disassemble(), m.Disassemble())
	}

	jump := gm.Instructions.Get(7)
	if jump.Op != IFEQ || jump.Target != gm.Instructions.Get(8) {
		t.Errorf("jump target not restored: %s", jump)
	}
	if v, ok := gm.Instructions.Get(2).Const.(int64); !ok || v != 7 {
		t.Errorf("LDC long = %v", gm.Instructions.Get(2).Const)
	}
	if v, ok := gm.Instructions.Get(4).Const.(Type); !ok || v != StringType {
		t.Errorf("LDC type = %v", gm.Instructions.Get(4).Const)
	}
	if !gm.HasParamAnnotation(0, "weave/Modify") || !gm.HasMarker("weave/Processed") {
		t.Error("annotations not restored")
	}
	label := gm.LocalVariables[3]
	if label.Name != "label" || gm.Instructions.IndexOf(label.Start) != m.Instructions.IndexOf(m.LocalVariables[3].Start) {
		t.Errorf("local variable range not restored: %+v", label)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	build := func() *ClassNode {
		c := NewClass("demo/A", "weave/lang/Object")
		m := c.VisitMethod(AccPublic, "m", "()V")
		m.AnnotateParam(0, "x")
		m.AnnotateParam(1, "y")
		m.Emit(NewInsn(RETURN))
		return c
	}
	a, err := MarshalClass(build())
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalClass(build())
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("canonical encoding should be deterministic")
	}
}

func TestUnmarshalClassErrors(t *testing.T) {
	if _, err := UnmarshalClass([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for garbage input")
	}
	data, err := cborEncMode.Marshal(&wireClass{Format: 99})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalClass(data); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestMarshalUnsupportedConstant(t *testing.T) {
	c := NewClass("demo/A", "weave/lang/Object")
	c.VisitMethod(AccStatic, "m", "()V").Emit(NewLdcInsn(struct{}{}), NewInsn(POP), NewInsn(RETURN))
	if _, err := MarshalClass(c); err == nil {
		t.Error("expected error for unsupported constant")
	}
}
