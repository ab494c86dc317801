package bytecode

import "slices"

// ---------------------------------------------------------------------------
// Access flags
// ---------------------------------------------------------------------------

// Access is a set of class, field or method access flags.
type Access uint16

const (
	AccPublic    Access = 0x0001
	AccPrivate   Access = 0x0002
	AccProtected Access = 0x0004
	AccStatic    Access = 0x0008
	AccFinal     Access = 0x0010
	AccSuper     Access = 0x0020
	AccSynthetic Access = 0x1000
)

// Has reports whether all flags in f are set.
func (a Access) Has(f Access) bool { return a&f == f }

// ---------------------------------------------------------------------------
// LocalVariable: an entry of a method's local variable table
// ---------------------------------------------------------------------------

// LocalVariable describes a named local slot and the instruction range in
// which it is live. Start is inclusive and End exclusive; both are labels
// of the owning method.
type LocalVariable struct {
	Name  string
	Desc  string
	Index int
	Start *Insn
	End   *Insn
}

// Type returns the declared type of the variable.
func (v *LocalVariable) Type() Type {
	return ReturnTypeOfField(v.Desc)
}

// ---------------------------------------------------------------------------
// MethodNode
// ---------------------------------------------------------------------------

// MethodNode is a method of a class.
type MethodNode struct {
	Access Access
	Name   string
	Desc   string

	Instructions   *InsnList
	LocalVariables []*LocalVariable
	MaxStack       int
	MaxLocals      int

	// ParamAnnotations holds visible annotations per parameter index.
	ParamAnnotations map[int][]string

	// Markers holds invisible annotations used to tag methods that have
	// already been processed.
	Markers []string
}

// NewMethod creates an empty method. MaxLocals starts at the size of the
// receiver and parameters.
func NewMethod(access Access, name, desc string) *MethodNode {
	m := &MethodNode{
		Access:       access,
		Name:         name,
		Desc:         desc,
		Instructions: &InsnList{},
	}
	m.MaxLocals = m.FirstNonArgLocal()
	return m
}

// IsStatic reports whether the method has no receiver.
func (m *MethodNode) IsStatic() bool { return m.Access.Has(AccStatic) }

// IsPrivate reports whether the method is private.
func (m *MethodNode) IsPrivate() bool { return m.Access.Has(AccPrivate) }

// ArgumentTypes returns the parameter types.
func (m *MethodNode) ArgumentTypes() []Type { return ArgumentTypes(m.Desc) }

// ReturnType returns the declared return type.
func (m *MethodNode) ReturnType() Type { return ReturnType(m.Desc) }

// FirstNonArgLocal returns the first slot after the receiver and the
// parameters.
func (m *MethodNode) FirstNonArgLocal() int {
	n := ArgumentsSize(m.ArgumentTypes())
	if !m.IsStatic() {
		n++
	}
	return n
}

// HasParamAnnotation reports whether parameter index carries annotation.
func (m *MethodNode) HasParamAnnotation(index int, annotation string) bool {
	return slices.Contains(m.ParamAnnotations[index], annotation)
}

// AnnotateParam adds a visible annotation to parameter index.
func (m *MethodNode) AnnotateParam(index int, annotation string) {
	if m.ParamAnnotations == nil {
		m.ParamAnnotations = make(map[int][]string)
	}
	if !m.HasParamAnnotation(index, annotation) {
		m.ParamAnnotations[index] = append(m.ParamAnnotations[index], annotation)
	}
}

// HasMarker reports whether the method carries the invisible marker.
func (m *MethodNode) HasMarker(marker string) bool {
	return slices.Contains(m.Markers, marker)
}

// Mark adds an invisible marker to the method.
func (m *MethodNode) Mark(marker string) {
	if !m.HasMarker(marker) {
		m.Markers = append(m.Markers, marker)
	}
}

// AddLocalVariable appends an entry to the local variable table and
// grows MaxLocals to cover it.
func (m *MethodNode) AddLocalVariable(name, desc string, index int, start, end *Insn) *LocalVariable {
	v := &LocalVariable{Name: name, Desc: desc, Index: index, Start: start, End: end}
	m.LocalVariables = append(m.LocalVariables, v)
	if top := index + max(v.Type().Size(), 1); top > m.MaxLocals {
		m.MaxLocals = top
	}
	return v
}

// Emit appends instructions to the method body and returns the method
// for chaining.
func (m *MethodNode) Emit(insns ...*Insn) *MethodNode {
	for _, insn := range insns {
		m.Instructions.Add(insn)
	}
	return m
}
