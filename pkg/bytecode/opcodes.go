package bytecode

import "fmt"

// Opcode represents a VM instruction. Values follow the JVM numbering.
type Opcode byte

const (
	// ========================================================================
	// Constants
	// ========================================================================

	NOP         Opcode = 0x00 // No operation
	ACONST_NULL Opcode = 0x01 // Push null
	ICONST_M1   Opcode = 0x02 // Push int -1
	ICONST_0    Opcode = 0x03 // Push int 0
	ICONST_1    Opcode = 0x04 // Push int 1
	ICONST_2    Opcode = 0x05
	ICONST_3    Opcode = 0x06
	ICONST_4    Opcode = 0x07
	ICONST_5    Opcode = 0x08
	LCONST_0    Opcode = 0x09
	LCONST_1    Opcode = 0x0A
	FCONST_0    Opcode = 0x0B
	DCONST_0    Opcode = 0x0E
	BIPUSH      Opcode = 0x10 // Push byte operand as int
	SIPUSH      Opcode = 0x11 // Push short operand as int
	LDC         Opcode = 0x12 // Push constant

	// ========================================================================
	// Local variables (typed; see Type.Opcode)
	// ========================================================================

	ILOAD  Opcode = 0x15
	LLOAD  Opcode = 0x16
	FLOAD  Opcode = 0x17
	DLOAD  Opcode = 0x18
	ALOAD  Opcode = 0x19
	AALOAD Opcode = 0x32 // Load reference from array

	ISTORE  Opcode = 0x36
	LSTORE  Opcode = 0x37
	FSTORE  Opcode = 0x38
	DSTORE  Opcode = 0x39
	ASTORE  Opcode = 0x3A
	AASTORE Opcode = 0x53 // Store reference into array

	// ========================================================================
	// Stack manipulation
	// ========================================================================

	POP     Opcode = 0x57
	POP2    Opcode = 0x58
	DUP     Opcode = 0x59
	DUP_X1  Opcode = 0x5A
	DUP_X2  Opcode = 0x5B
	DUP2    Opcode = 0x5C
	DUP2_X1 Opcode = 0x5D
	DUP2_X2 Opcode = 0x5E
	SWAP    Opcode = 0x5F

	// ========================================================================
	// Arithmetic
	// ========================================================================

	IADD Opcode = 0x60
	LADD Opcode = 0x61
	FADD Opcode = 0x62
	DADD Opcode = 0x63
	ISUB Opcode = 0x64
	IMUL Opcode = 0x68
	IINC Opcode = 0x84 // Increment local: IINC <slot> <delta>

	// ========================================================================
	// Control flow
	// ========================================================================

	IFEQ      Opcode = 0x99 // Pop int, jump if zero
	IFNE      Opcode = 0x9A // Pop int, jump if non-zero
	IF_ICMPGE Opcode = 0xA2
	GOTO      Opcode = 0xA7
	IFNULL    Opcode = 0xC6
	IFNONNULL Opcode = 0xC7

	// ========================================================================
	// Returns (typed; see Type.Opcode)
	// ========================================================================

	IRETURN Opcode = 0xAC
	LRETURN Opcode = 0xAD
	FRETURN Opcode = 0xAE
	DRETURN Opcode = 0xAF
	ARETURN Opcode = 0xB0
	RETURN  Opcode = 0xB1

	// ========================================================================
	// Fields and methods
	// ========================================================================

	GETSTATIC       Opcode = 0xB2
	PUTSTATIC       Opcode = 0xB3
	GETFIELD        Opcode = 0xB4
	PUTFIELD        Opcode = 0xB5
	INVOKEVIRTUAL   Opcode = 0xB6
	INVOKESPECIAL   Opcode = 0xB7
	INVOKESTATIC    Opcode = 0xB8
	INVOKEINTERFACE Opcode = 0xB9

	// ========================================================================
	// Objects
	// ========================================================================

	NEW         Opcode = 0xBB
	ANEWARRAY   Opcode = 0xBD
	ARRAYLENGTH Opcode = 0xBE
	ATHROW      Opcode = 0xBF
	CHECKCAST   Opcode = 0xC0
	INSTANCEOF  Opcode = 0xC1

	// ========================================================================
	// Pseudo instructions (never executed)
	// ========================================================================

	LABEL Opcode = 0xFF // Jump target / variable range boundary
)

// InsnKind classifies the operands an instruction carries.
type InsnKind uint8

const (
	KindInsn   InsnKind = iota // no operand
	KindInt                    // immediate int operand
	KindVar                    // local slot
	KindIinc                   // local slot and increment
	KindType                   // internal class name
	KindField                  // owner, name, descriptor
	KindMethod                 // owner, name, descriptor
	KindJump                   // target label
	KindLdc                    // constant
	KindLabel                  // label
)

var kindNames = [...]string{
	KindInsn:   "Insn",
	KindInt:    "IntInsn",
	KindVar:    "VarInsn",
	KindIinc:   "IincInsn",
	KindType:   "TypeInsn",
	KindField:  "FieldInsn",
	KindMethod: "MethodInsn",
	KindJump:   "JumpInsn",
	KindLdc:    "LdcInsn",
	KindLabel:  "Label",
}

func (k InsnKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("InsnKind(%d)", k)
}

// Variable marks a stack effect that depends on the instruction operands.
const Variable = -1

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name string   // Human-readable name
	Kind InsnKind // Operand kind
	Pop  int      // Words popped (Variable = depends on operand)
	Push int      // Words pushed (Variable = depends on operand)
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Constants
	NOP:         {"NOP", KindInsn, 0, 0},
	ACONST_NULL: {"ACONST_NULL", KindInsn, 0, 1},
	ICONST_M1:   {"ICONST_M1", KindInsn, 0, 1},
	ICONST_0:    {"ICONST_0", KindInsn, 0, 1},
	ICONST_1:    {"ICONST_1", KindInsn, 0, 1},
	ICONST_2:    {"ICONST_2", KindInsn, 0, 1},
	ICONST_3:    {"ICONST_3", KindInsn, 0, 1},
	ICONST_4:    {"ICONST_4", KindInsn, 0, 1},
	ICONST_5:    {"ICONST_5", KindInsn, 0, 1},
	LCONST_0:    {"LCONST_0", KindInsn, 0, 2},
	LCONST_1:    {"LCONST_1", KindInsn, 0, 2},
	FCONST_0:    {"FCONST_0", KindInsn, 0, 1},
	DCONST_0:    {"DCONST_0", KindInsn, 0, 2},
	BIPUSH:      {"BIPUSH", KindInt, 0, 1},
	SIPUSH:      {"SIPUSH", KindInt, 0, 1},
	LDC:         {"LDC", KindLdc, 0, Variable},

	// Local variables
	ILOAD:   {"ILOAD", KindVar, 0, 1},
	LLOAD:   {"LLOAD", KindVar, 0, 2},
	FLOAD:   {"FLOAD", KindVar, 0, 1},
	DLOAD:   {"DLOAD", KindVar, 0, 2},
	ALOAD:   {"ALOAD", KindVar, 0, 1},
	AALOAD:  {"AALOAD", KindInsn, 2, 1},
	ISTORE:  {"ISTORE", KindVar, 1, 0},
	LSTORE:  {"LSTORE", KindVar, 2, 0},
	FSTORE:  {"FSTORE", KindVar, 1, 0},
	DSTORE:  {"DSTORE", KindVar, 2, 0},
	ASTORE:  {"ASTORE", KindVar, 1, 0},
	AASTORE: {"AASTORE", KindInsn, 3, 0},

	// Stack manipulation
	POP:     {"POP", KindInsn, 1, 0},
	POP2:    {"POP2", KindInsn, 2, 0},
	DUP:     {"DUP", KindInsn, 1, 2},
	DUP_X1:  {"DUP_X1", KindInsn, 2, 3},
	DUP_X2:  {"DUP_X2", KindInsn, 3, 4},
	DUP2:    {"DUP2", KindInsn, 2, 4},
	DUP2_X1: {"DUP2_X1", KindInsn, 3, 5},
	DUP2_X2: {"DUP2_X2", KindInsn, 4, 6},
	SWAP:    {"SWAP", KindInsn, 2, 2},

	// Arithmetic
	IADD: {"IADD", KindInsn, 2, 1},
	LADD: {"LADD", KindInsn, 4, 2},
	FADD: {"FADD", KindInsn, 2, 1},
	DADD: {"DADD", KindInsn, 4, 2},
	ISUB: {"ISUB", KindInsn, 2, 1},
	IMUL: {"IMUL", KindInsn, 2, 1},
	IINC: {"IINC", KindIinc, 0, 0},

	// Control flow
	IFEQ:      {"IFEQ", KindJump, 1, 0},
	IFNE:      {"IFNE", KindJump, 1, 0},
	IF_ICMPGE: {"IF_ICMPGE", KindJump, 2, 0},
	GOTO:      {"GOTO", KindJump, 0, 0},
	IFNULL:    {"IFNULL", KindJump, 1, 0},
	IFNONNULL: {"IFNONNULL", KindJump, 1, 0},

	// Returns
	IRETURN: {"IRETURN", KindInsn, 1, 0},
	LRETURN: {"LRETURN", KindInsn, 2, 0},
	FRETURN: {"FRETURN", KindInsn, 1, 0},
	DRETURN: {"DRETURN", KindInsn, 2, 0},
	ARETURN: {"ARETURN", KindInsn, 1, 0},
	RETURN:  {"RETURN", KindInsn, 0, 0},

	// Fields and methods
	GETSTATIC:       {"GETSTATIC", KindField, 0, Variable},
	PUTSTATIC:       {"PUTSTATIC", KindField, Variable, 0},
	GETFIELD:        {"GETFIELD", KindField, 1, Variable},
	PUTFIELD:        {"PUTFIELD", KindField, Variable, 0},
	INVOKEVIRTUAL:   {"INVOKEVIRTUAL", KindMethod, Variable, Variable},
	INVOKESPECIAL:   {"INVOKESPECIAL", KindMethod, Variable, Variable},
	INVOKESTATIC:    {"INVOKESTATIC", KindMethod, Variable, Variable},
	INVOKEINTERFACE: {"INVOKEINTERFACE", KindMethod, Variable, Variable},

	// Objects
	NEW:         {"NEW", KindType, 0, 1},
	ANEWARRAY:   {"ANEWARRAY", KindType, 1, 1},
	ARRAYLENGTH: {"ARRAYLENGTH", KindInsn, 1, 1},
	ATHROW:      {"ATHROW", KindInsn, 1, 0},
	CHECKCAST:   {"CHECKCAST", KindType, 1, 1},
	INSTANCEOF:  {"INSTANCEOF", KindType, 1, 1},

	LABEL: {"LABEL", KindLabel, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo with Name "UNKNOWN" for unrecognized opcodes.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsKnown reports whether op is part of the instruction set.
func (op Opcode) IsKnown() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of the opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Kind returns the operand kind of the opcode.
func (op Opcode) Kind() InsnKind {
	return GetOpcodeInfo(op).Kind
}

// IsJump returns true if the opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op.Kind() == KindJump
}

// IsReturn returns true if the opcode returns from the current method.
func (op Opcode) IsReturn() bool {
	return op >= IRETURN && op <= RETURN
}

// IsInvoke returns true if the opcode invokes a method.
func (op Opcode) IsInvoke() bool {
	return op >= INVOKEVIRTUAL && op <= INVOKEINTERFACE
}

// EndsBlock returns true if control never falls through to the next
// instruction.
func (op Opcode) EndsBlock() bool {
	return op.IsReturn() || op == ATHROW || op == GOTO
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for i := 0; i < 256; i++ {
		if _, ok := opcodeInfoTable[Opcode(i)]; ok {
			ops = append(ops, Opcode(i))
		}
	}
	return ops
}
