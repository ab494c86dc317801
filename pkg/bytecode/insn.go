package bytecode

import (
	"fmt"
	"iter"
	"strconv"
)

// ---------------------------------------------------------------------------
// Insn: a single instruction node
// ---------------------------------------------------------------------------

// Insn is one instruction of a method body. Which operand fields are
// meaningful depends on Op.Kind().
type Insn struct {
	Op Opcode

	// Operand is the slot (KindVar, KindIinc) or the immediate value
	// (KindInt).
	Operand int

	// Increment is the IINC delta.
	Increment int

	// Owner, Name and Desc describe the member of KindField and KindMethod
	// instructions. KindType instructions keep the class name in Desc.
	Owner string
	Name  string
	Desc  string

	// Interface marks method instructions whose owner is an interface.
	Interface bool

	// Const is the LDC constant: string, int32, int64, float32, float64
	// or Type.
	Const any

	// Target is the label a jump transfers to.
	Target *Insn

	list       *InsnList
	prev, next *Insn
	index      int
}

// NewInsn creates an instruction without operands.
func NewInsn(op Opcode) *Insn { return &Insn{Op: op} }

// NewIntInsn creates BIPUSH or SIPUSH.
func NewIntInsn(op Opcode, v int) *Insn { return &Insn{Op: op, Operand: v} }

// PushInt returns the shortest instruction pushing the int constant v.
func PushInt(v int) *Insn {
	switch {
	case v >= -1 && v <= 5:
		return NewInsn(Opcode(int(ICONST_0) + v))
	case v >= -128 && v <= 127:
		return NewIntInsn(BIPUSH, v)
	case v >= -32768 && v <= 32767:
		return NewIntInsn(SIPUSH, v)
	}
	return NewLdcInsn(int32(v))
}

// NewVarInsn creates a load or store of a local slot.
func NewVarInsn(op Opcode, slot int) *Insn { return &Insn{Op: op, Operand: slot} }

// NewIincInsn creates IINC.
func NewIincInsn(slot, delta int) *Insn {
	return &Insn{Op: IINC, Operand: slot, Increment: delta}
}

// NewTypeInsn creates NEW, ANEWARRAY, CHECKCAST or INSTANCEOF for an
// internal class name.
func NewTypeInsn(op Opcode, internalName string) *Insn {
	return &Insn{Op: op, Desc: internalName}
}

// NewFieldInsn creates a field access instruction.
func NewFieldInsn(op Opcode, owner, name, desc string) *Insn {
	return &Insn{Op: op, Owner: owner, Name: name, Desc: desc}
}

// NewMethodInsn creates a method invocation instruction.
func NewMethodInsn(op Opcode, owner, name, desc string) *Insn {
	return &Insn{Op: op, Owner: owner, Name: name, Desc: desc, Interface: op == INVOKEINTERFACE}
}

// NewLdcInsn creates LDC for a constant.
func NewLdcInsn(v any) *Insn { return &Insn{Op: LDC, Const: v} }

// NewJumpInsn creates a jump to label.
func NewJumpInsn(op Opcode, label *Insn) *Insn { return &Insn{Op: op, Target: label} }

// NewLabel creates a label.
func NewLabel() *Insn { return &Insn{Op: LABEL} }

// Next returns the following instruction, or nil.
func (i *Insn) Next() *Insn { return i.next }

// Prev returns the preceding instruction, or nil.
func (i *Insn) Prev() *Insn { return i.prev }

// Kind returns the operand kind of the instruction.
func (i *Insn) Kind() InsnKind { return i.Op.Kind() }

// IsLabel reports whether the instruction is a label.
func (i *Insn) IsLabel() bool { return i.Op == LABEL }

// StackEffect returns the number of words popped and pushed.
func (i *Insn) StackEffect() (pop, push int) {
	info := GetOpcodeInfo(i.Op)
	pop, push = info.Pop, info.Push
	switch i.Kind() {
	case KindLdc:
		push = 1
		switch i.Const.(type) {
		case int64, float64:
			push = 2
		}
	case KindField:
		size := ReturnTypeOfField(i.Desc).Size()
		switch i.Op {
		case GETSTATIC:
			push = size
		case GETFIELD:
			push = size
		case PUTSTATIC:
			pop = size
		case PUTFIELD:
			pop = 1 + size
		}
	case KindMethod:
		args, ret, err := ParseMethodDescriptor(i.Desc)
		if err != nil {
			return 0, 0
		}
		pop = ArgumentsSize(args)
		if i.Op != INVOKESTATIC {
			pop++
		}
		push = ret.Size()
	}
	return pop, push
}

// ReturnTypeOfField parses a field descriptor, returning the zero Type
// when it is malformed.
func ReturnTypeOfField(desc string) Type {
	t, err := ParseType(desc)
	if err != nil {
		return Type{}
	}
	return t
}

// String returns a one-line assembly form of the instruction.
func (i *Insn) String() string {
	name := i.Op.String()
	switch i.Kind() {
	case KindInt, KindVar:
		return name + " " + strconv.Itoa(i.Operand)
	case KindIinc:
		return fmt.Sprintf("%s %d %d", name, i.Operand, i.Increment)
	case KindType:
		return name + " " + i.Desc
	case KindField, KindMethod:
		return fmt.Sprintf("%s %s.%s %s", name, i.Owner, i.Name, i.Desc)
	case KindJump:
		return fmt.Sprintf("%s L%d", name, i.labelIndex(i.Target))
	case KindLdc:
		if s, ok := i.Const.(string); ok {
			return fmt.Sprintf("%s %q", name, s)
		}
		return fmt.Sprintf("%s %v", name, i.Const)
	case KindLabel:
		return fmt.Sprintf("L%d", i.labelIndex(i))
	}
	return name
}

func (i *Insn) labelIndex(label *Insn) int {
	if label == nil || label.list == nil {
		return -1
	}
	return label.list.IndexOf(label)
}

// ---------------------------------------------------------------------------
// InsnList: doubly linked instruction list
// ---------------------------------------------------------------------------

// InsnList is an ordered list of instructions. An instruction belongs to
// at most one list at a time.
type InsnList struct {
	first, last *Insn
	size        int
	indexed     bool
}

// NewInsnList creates a list holding insns in order.
func NewInsnList(insns ...*Insn) *InsnList {
	l := &InsnList{}
	for _, insn := range insns {
		l.Add(insn)
	}
	return l
}

// Len returns the number of instructions.
func (l *InsnList) Len() int { return l.size }

// First returns the first instruction, or nil.
func (l *InsnList) First() *Insn { return l.first }

// Last returns the last instruction, or nil.
func (l *InsnList) Last() *Insn { return l.last }

// Contains reports whether insn belongs to this list.
func (l *InsnList) Contains(insn *Insn) bool { return insn != nil && insn.list == l }

// All iterates over the instructions in order. Mutating the list while
// iterating is not supported; use Slice for that.
func (l *InsnList) All() iter.Seq[*Insn] {
	return func(yield func(*Insn) bool) {
		for insn := l.first; insn != nil; insn = insn.next {
			if !yield(insn) {
				return
			}
		}
	}
}

// Slice returns a snapshot of the instructions.
func (l *InsnList) Slice() []*Insn {
	out := make([]*Insn, 0, l.size)
	for insn := l.first; insn != nil; insn = insn.next {
		out = append(out, insn)
	}
	return out
}

// IndexOf returns the position of insn in the list, or -1.
func (l *InsnList) IndexOf(insn *Insn) int {
	if !l.Contains(insn) {
		return -1
	}
	if !l.indexed {
		n := 0
		for i := l.first; i != nil; i = i.next {
			i.index = n
			n++
		}
		l.indexed = true
	}
	return insn.index
}

// Get returns the instruction at position n, or nil.
func (l *InsnList) Get(n int) *Insn {
	if n < 0 || n >= l.size {
		return nil
	}
	insn := l.first
	for ; n > 0; n-- {
		insn = insn.next
	}
	return insn
}

// Add appends insn.
func (l *InsnList) Add(insn *Insn) {
	l.claim(insn)
	if l.last == nil {
		l.first = insn
	} else {
		l.last.next = insn
		insn.prev = l.last
	}
	l.last = insn
}

// AddAll appends every instruction of other, leaving other empty.
func (l *InsnList) AddAll(other *InsnList) {
	for _, insn := range other.drain() {
		l.Add(insn)
	}
}

// Insert prepends every instruction of other, leaving other empty.
func (l *InsnList) Insert(other *InsnList) {
	if l.first == nil {
		l.AddAll(other)
		return
	}
	l.InsertBefore(l.first, other)
}

// InsertBefore inserts every instruction of other before at, leaving
// other empty.
func (l *InsnList) InsertBefore(at *Insn, other *InsnList) {
	for _, insn := range other.drain() {
		l.InsertBeforeInsn(at, insn)
	}
}

// InsertBeforeInsn inserts insn before at.
func (l *InsnList) InsertBeforeInsn(at, insn *Insn) {
	if !l.Contains(at) {
		panic("bytecode: insertion point is not in this list")
	}
	l.claim(insn)
	insn.next = at
	insn.prev = at.prev
	if at.prev == nil {
		l.first = insn
	} else {
		at.prev.next = insn
	}
	at.prev = insn
}

// Remove unlinks insn from the list.
func (l *InsnList) Remove(insn *Insn) {
	if !l.Contains(insn) {
		return
	}
	if insn.prev == nil {
		l.first = insn.next
	} else {
		insn.prev.next = insn.next
	}
	if insn.next == nil {
		l.last = insn.prev
	} else {
		insn.next.prev = insn.prev
	}
	insn.prev, insn.next, insn.list = nil, nil, nil
	l.size--
	l.indexed = false
}

func (l *InsnList) claim(insn *Insn) {
	if insn.list != nil {
		panic(fmt.Sprintf("bytecode: %s already belongs to a list", insn.Op))
	}
	insn.list = l
	insn.prev, insn.next = nil, nil
	l.size++
	l.indexed = false
}

func (l *InsnList) drain() []*Insn {
	insns := l.Slice()
	for _, insn := range insns {
		insn.prev, insn.next, insn.list = nil, nil, nil
	}
	l.first, l.last, l.size, l.indexed = nil, nil, 0, false
	return insns
}
