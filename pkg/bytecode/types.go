package bytecode

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Value types
// ---------------------------------------------------------------------------

// Sort classifies a Type.
type Sort uint8

const (
	SortVoid Sort = iota
	SortBoolean
	SortChar
	SortByte
	SortShort
	SortInt
	SortFloat
	SortLong
	SortDouble
	SortArray
	SortObject
)

var sortNames = [...]string{
	SortVoid:    "void",
	SortBoolean: "boolean",
	SortChar:    "char",
	SortByte:    "byte",
	SortShort:   "short",
	SortInt:     "int",
	SortFloat:   "float",
	SortLong:    "long",
	SortDouble:  "double",
	SortArray:   "array",
	SortObject:  "object",
}

func (s Sort) String() string {
	if int(s) < len(sortNames) {
		return sortNames[s]
	}
	return fmt.Sprintf("Sort(%d)", s)
}

// Type is a value type of the VM. Types are comparable; two types are
// equal exactly when their descriptors are equal.
type Type struct {
	sort Sort
	desc string
}

// Primitive types.
var (
	Void    = Type{SortVoid, "V"}
	Boolean = Type{SortBoolean, "Z"}
	Char    = Type{SortChar, "C"}
	Byte    = Type{SortByte, "B"}
	Short   = Type{SortShort, "S"}
	Int     = Type{SortInt, "I"}
	Float   = Type{SortFloat, "F"}
	Long    = Type{SortLong, "J"}
	Double  = Type{SortDouble, "D"}
)

// Well-known reference types.
var (
	ObjectRoot  = ObjectType("weave/lang/Object")
	StringType  = ObjectType("weave/lang/String")
	ObjectArray = ArrayOf(ObjectRoot)
)

// ObjectType returns the reference type for an internal class name
// such as "weave/lang/String".
func ObjectType(internalName string) Type {
	if strings.HasPrefix(internalName, "[") {
		return Type{SortArray, internalName}
	}
	return Type{SortObject, "L" + internalName + ";"}
}

// ArrayOf returns the array type whose elements have type elem.
func ArrayOf(elem Type) Type {
	return Type{SortArray, "[" + elem.desc}
}

// ParseType parses a single field descriptor.
func ParseType(desc string) (Type, error) {
	t, n, err := parseType(desc, 0)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, fmt.Errorf("invalid type descriptor %q: trailing characters", desc)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on malformed input. It is
// meant for descriptors written as literals.
func MustParseType(desc string) Type {
	t, err := ParseType(desc)
	if err != nil {
		panic(err)
	}
	return t
}

// parseType parses one type starting at pos and returns the position
// after it.
func parseType(desc string, pos int) (Type, int, error) {
	if pos >= len(desc) {
		return Type{}, pos, fmt.Errorf("invalid type descriptor %q: unexpected end", desc)
	}
	switch desc[pos] {
	case 'V':
		return Void, pos + 1, nil
	case 'Z':
		return Boolean, pos + 1, nil
	case 'C':
		return Char, pos + 1, nil
	case 'B':
		return Byte, pos + 1, nil
	case 'S':
		return Short, pos + 1, nil
	case 'I':
		return Int, pos + 1, nil
	case 'F':
		return Float, pos + 1, nil
	case 'J':
		return Long, pos + 1, nil
	case 'D':
		return Double, pos + 1, nil
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end < 2 {
			return Type{}, pos, fmt.Errorf("invalid type descriptor %q: unterminated class name", desc)
		}
		return Type{SortObject, desc[pos : pos+end+1]}, pos + end + 1, nil
	case '[':
		elem, next, err := parseType(desc, pos+1)
		if err != nil {
			return Type{}, pos, err
		}
		if elem.sort == SortVoid {
			return Type{}, pos, fmt.Errorf("invalid type descriptor %q: array of void", desc)
		}
		return Type{SortArray, desc[pos:next]}, next, nil
	}
	return Type{}, pos, fmt.Errorf("invalid type descriptor %q: unknown type %q", desc, desc[pos])
}

// Sort returns the sort of t.
func (t Type) Sort() Sort { return t.sort }

// Descriptor returns the descriptor of t.
func (t Type) Descriptor() string { return t.desc }

// String implements the Stringer interface.
func (t Type) String() string { return t.desc }

// IsZero reports whether t is the zero Type (no type at all, as opposed
// to Void).
func (t Type) IsZero() bool { return t.desc == "" }

// IsReference reports whether t is an object or array type.
func (t Type) IsReference() bool {
	return t.sort == SortObject || t.sort == SortArray
}

// IsPrimitive reports whether t is a non-void primitive type.
func (t Type) IsPrimitive() bool {
	return !t.IsZero() && t.sort != SortVoid && !t.IsReference()
}

// Size returns the number of stack words or local slots a value of type t
// occupies.
func (t Type) Size() int {
	switch t.sort {
	case SortVoid:
		return 0
	case SortLong, SortDouble:
		return 2
	}
	if t.IsZero() {
		return 0
	}
	return 1
}

// InternalName returns the internal class name of a reference type
// ("weave/lang/String"). Array types return their descriptor; primitives
// return "".
func (t Type) InternalName() string {
	switch t.sort {
	case SortObject:
		return t.desc[1 : len(t.desc)-1]
	case SortArray:
		return t.desc
	}
	return ""
}

// ElementType returns the element type of an array type.
func (t Type) ElementType() Type {
	if t.sort != SortArray {
		return Type{}
	}
	elem, _, _ := parseType(t.desc, 1)
	return elem
}

// ClassName returns the source-level name of t: "int", "weave.lang.String",
// "int[]".
func (t Type) ClassName() string {
	switch t.sort {
	case SortObject:
		return strings.ReplaceAll(t.InternalName(), "/", ".")
	case SortArray:
		return t.ElementType().ClassName() + "[]"
	}
	if t.IsZero() {
		return ""
	}
	return t.sort.String()
}

// SimpleName returns the class name of t without its package.
func (t Type) SimpleName() string {
	name := t.ClassName()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Opcode adapts a base opcode to t. The base opcode must be one of
// ILOAD, ISTORE or IRETURN; the result is the variant for t, e.g.
// Long.Opcode(ILOAD) == LLOAD and Void.Opcode(IRETURN) == RETURN.
func (t Type) Opcode(base Opcode) Opcode {
	if base == IRETURN && t.sort == SortVoid {
		return RETURN
	}
	switch t.sort {
	case SortLong:
		return base + 1
	case SortFloat:
		return base + 2
	case SortDouble:
		return base + 3
	case SortArray, SortObject:
		return base + 4
	}
	return base
}

// ---------------------------------------------------------------------------
// Method descriptors
// ---------------------------------------------------------------------------

// MethodDescriptor builds a method descriptor from a return type and
// argument types.
func MethodDescriptor(ret Type, args ...Type) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, a := range args {
		sb.WriteString(a.desc)
	}
	sb.WriteByte(')')
	sb.WriteString(ret.desc)
	return sb.String()
}

// ParseMethodDescriptor splits a method descriptor into argument and
// return types.
func ParseMethodDescriptor(desc string) ([]Type, Type, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, Type{}, fmt.Errorf("invalid method descriptor %q", desc)
	}
	var args []Type
	pos := 1
	for pos < len(desc) && desc[pos] != ')' {
		t, next, err := parseType(desc, pos)
		if err != nil {
			return nil, Type{}, fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
		if t.sort == SortVoid {
			return nil, Type{}, fmt.Errorf("invalid method descriptor %q: void argument", desc)
		}
		args = append(args, t)
		pos = next
	}
	if pos >= len(desc) {
		return nil, Type{}, fmt.Errorf("invalid method descriptor %q: missing ')'", desc)
	}
	ret, err := ParseType(desc[pos+1:])
	if err != nil {
		return nil, Type{}, fmt.Errorf("invalid method descriptor %q: %w", desc, err)
	}
	return args, ret, nil
}

// ArgumentTypes returns the argument types of a method descriptor, or nil
// if the descriptor is malformed.
func ArgumentTypes(desc string) []Type {
	args, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return nil
	}
	return args
}

// ReturnType returns the return type of a method descriptor, or the zero
// Type if the descriptor is malformed.
func ReturnType(desc string) Type {
	_, ret, err := ParseMethodDescriptor(desc)
	if err != nil {
		return Type{}
	}
	return ret
}

// ArgumentsSize returns the total number of slots taken by args.
func ArgumentsSize(args []Type) int {
	size := 0
	for _, a := range args {
		size += a.Size()
	}
	return size
}
