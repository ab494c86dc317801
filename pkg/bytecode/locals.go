package bytecode

import "strconv"

// LocalsAt returns the live local variable table of method m at
// instruction at. The result is indexed by slot and is at least
// MaxLocals long; empty slots and the second slot of a two-word value
// are nil. The receiver and parameters are always present: when the
// local variable table does not describe them, entries named "this" and
// "arg<n>" are synthesised from the descriptor of m and owner.
func LocalsAt(owner string, m *MethodNode, at *Insn) []*LocalVariable {
	size := max(m.MaxLocals, m.FirstNonArgLocal())
	for _, lv := range m.LocalVariables {
		if top := lv.Index + max(lv.Type().Size(), 1); top > size {
			size = top
		}
	}
	frame := make([]*LocalVariable, size)

	slot := 0
	if !m.IsStatic() {
		frame[0] = &LocalVariable{Name: "this", Desc: ObjectType(owner).Descriptor()}
		slot++
	}
	for i, arg := range m.ArgumentTypes() {
		frame[slot] = &LocalVariable{Name: "arg" + strconv.Itoa(i), Desc: arg.Descriptor(), Index: slot}
		slot += arg.Size()
	}

	pos := m.Instructions.IndexOf(at)
	for _, lv := range m.LocalVariables {
		if !isLive(m.Instructions, lv, pos) {
			continue
		}
		frame[lv.Index] = lv
		if lv.Type().Size() == 2 && lv.Index+1 < len(frame) {
			frame[lv.Index+1] = nil
		}
	}
	return frame
}

func isLive(insns *InsnList, lv *LocalVariable, pos int) bool {
	if pos < 0 {
		return false
	}
	if lv.Start != nil && insns.IndexOf(lv.Start) > pos {
		return false
	}
	if lv.End != nil {
		if end := insns.IndexOf(lv.End); end >= 0 && end <= pos {
			return false
		}
	}
	return true
}

// LocalTypes maps a live locals table to the slot types, leaving the zero
// Type for empty slots.
func LocalTypes(frame []*LocalVariable) []Type {
	types := make([]Type, len(frame))
	for i, lv := range frame {
		if lv != nil {
			types[i] = lv.Type()
		}
	}
	return types
}
