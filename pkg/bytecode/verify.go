package bytecode

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// Stack simulation
// ---------------------------------------------------------------------------

// VerifyError reports a structural problem in a method body.
type VerifyError struct {
	Class  string
	Method string
	Index  int // instruction position, -1 for method-level problems
	Msg    string
}

func (e *VerifyError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("verify %s.%s: %s", e.Class, e.Method, e.Msg)
	}
	return fmt.Sprintf("verify %s.%s @%04d: %s", e.Class, e.Method, e.Index, e.Msg)
}

// simulate walks the method body once, tracking stack depth in words.
// Depth at a label is the maximum of the fall-through depth and every
// forward jump recorded for it. visit is called for each instruction with
// the depth before it executes.
func simulate(m *MethodNode, visit func(pos int, insn *Insn, depth int)) int {
	atLabel := make(map[*Insn]int)
	depth, maxDepth := 0, 0
	reachable := true
	pos := 0
	for insn := range m.Instructions.All() {
		if insn.IsLabel() {
			if d, ok := atLabel[insn]; ok {
				if !reachable || d > depth {
					depth = d
				}
				reachable = true
			}
		}
		if !reachable {
			depth = 0
			reachable = true
		}
		if visit != nil {
			visit(pos, insn, depth)
		}
		pop, push := insn.StackEffect()
		depth = max(depth-pop, 0) + push
		maxDepth = max(maxDepth, depth)
		if insn.Op.IsJump() && insn.Target != nil {
			if d, ok := atLabel[insn.Target]; !ok || depth > d {
				atLabel[insn.Target] = depth
			}
		}
		if insn.Op.EndsBlock() {
			reachable = false
		}
		pos++
	}
	return maxDepth
}

// ComputeMaxs recomputes MaxStack from the method body and grows
// MaxLocals to cover every local slot the body references.
func ComputeMaxs(m *MethodNode) {
	m.MaxStack = simulate(m, nil)
	locals := m.FirstNonArgLocal()
	for insn := range m.Instructions.All() {
		if k := insn.Kind(); k == KindVar || k == KindIinc {
			locals = max(locals, insn.Operand+varSize(insn.Op))
		}
	}
	m.MaxLocals = max(m.MaxLocals, locals)
}

func varSize(op Opcode) int {
	switch op {
	case LLOAD, DLOAD, LSTORE, DSTORE:
		return 2
	}
	return 1
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

// Verify checks every method of c and returns all problems found, joined.
func Verify(c *ClassNode) error {
	var errs []error
	for _, m := range c.Methods {
		if err := VerifyMethod(c.Name, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// VerifyMethod checks a single method: descriptors parse, opcodes are
// known, operands are in range, the stack never underflows or exceeds
// MaxStack, and return instructions agree with the declared return type.
func VerifyMethod(owner string, m *MethodNode) error {
	var errs []error
	fail := func(pos int, format string, args ...any) {
		errs = append(errs, &VerifyError{Class: owner, Method: m.Name + m.Desc, Index: pos, Msg: fmt.Sprintf(format, args...)})
	}

	_, ret, err := ParseMethodDescriptor(m.Desc)
	if err != nil {
		fail(-1, "%v", err)
		return errors.Join(errs...)
	}
	wantReturn := ret.Opcode(IRETURN)

	simulate(m, func(pos int, insn *Insn, depth int) {
		if !insn.Op.IsKnown() {
			fail(pos, "unknown opcode 0x%02X", byte(insn.Op))
			return
		}
		pop, push := insn.StackEffect()
		if depth < pop {
			fail(pos, "%s: stack underflow (depth %d, pops %d)", insn.Op, depth, pop)
		}
		if m.MaxStack > 0 && depth-pop+push > m.MaxStack {
			fail(pos, "%s: stack depth %d exceeds max stack %d", insn.Op, depth-pop+push, m.MaxStack)
		}

		switch insn.Kind() {
		case KindInt:
			if err := checkImmediate(insn); err != nil {
				fail(pos, "%s: %v", insn.Op, err)
			}
		case KindVar, KindIinc:
			if insn.Operand < 0 || insn.Operand+varSize(insn.Op) > m.MaxLocals {
				fail(pos, "%s: slot %d outside max locals %d", insn.Op, insn.Operand, m.MaxLocals)
			}
		case KindType:
			if insn.Desc == "" {
				fail(pos, "%s: missing class name", insn.Op)
			}
		case KindField:
			if _, err := ParseType(insn.Desc); err != nil {
				fail(pos, "%s %s.%s: %v", insn.Op, insn.Owner, insn.Name, err)
			}
		case KindMethod:
			if _, _, err := ParseMethodDescriptor(insn.Desc); err != nil {
				fail(pos, "%s %s.%s: %v", insn.Op, insn.Owner, insn.Name, err)
			}
		case KindJump:
			if !m.Instructions.Contains(insn.Target) {
				fail(pos, "%s: jump target is not in this method", insn.Op)
			}
		case KindLdc:
			switch insn.Const.(type) {
			case string, int32, int64, float32, float64, Type:
			default:
				fail(pos, "LDC: unsupported constant %T", insn.Const)
			}
		}

		if insn.Op.IsReturn() && insn.Op != wantReturn {
			fail(pos, "%s in method returning %s", insn.Op, ret)
		}
	})
	return errors.Join(errs...)
}

func checkImmediate(insn *Insn) error {
	var err error
	switch insn.Op {
	case BIPUSH:
		_, err = safecast.Conv[int8](insn.Operand)
	case SIPUSH:
		_, err = safecast.Conv[int16](insn.Operand)
	}
	return err
}
