package callback

import (
	"slices"
	"strings"

	"github.com/chazu/weave/pkg/bytecode"
)

// CaptureKey identifies a carrier shape: the target's return type, whether
// the carrier stores a return value, and the ordered types of the locals
// it carries. Keys are equal exactly when all three parts are.
type CaptureKey struct {
	ReturnType bytecode.Type
	UseReturn  bool
	Locals     []bytecode.Type
}

// NewCaptureKey builds a key. UseReturn is forced to false for void
// targets, which have no value to carry.
func NewCaptureKey(ret bytecode.Type, useReturn bool, locals ...bytecode.Type) CaptureKey {
	return CaptureKey{
		ReturnType: ret,
		UseReturn:  useReturn && ret != bytecode.Void,
		Locals:     slices.Clone(locals),
	}
}

// Equal reports structural equality.
func (k CaptureKey) Equal(o CaptureKey) bool {
	return k.ReturnType == o.ReturnType && k.UseReturn == o.UseReturn && slices.Equal(k.Locals, o.Locals)
}

// id is a canonical form usable as a map key. Descriptors are
// self-delimiting, so concatenation is unambiguous.
func (k CaptureKey) id() string {
	var sb strings.Builder
	sb.WriteString(k.ReturnType.Descriptor())
	if k.UseReturn {
		sb.WriteString("+")
	} else {
		sb.WriteString("-")
	}
	for _, t := range k.Locals {
		sb.WriteString(t.Descriptor())
	}
	return sb.String()
}

// SetterDescriptor returns the descriptor of the carrier's setLocals.
func (k CaptureKey) SetterDescriptor() string {
	return bytecode.MethodDescriptor(bytecode.Void, k.Locals...)
}
