package callback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/weave/injection"
	"github.com/chazu/weave/pkg/bytecode"
	"github.com/chazu/weave/pkg/pretty"
)

// Problem is one capture that could not be satisfied.
type Problem struct {
	// Position is the capture's index among the extra handler parameters.
	Position int

	// Type is the declared parameter type.
	Type bytecode.Type

	// Kind is one of the injection error kinds.
	Kind error

	// Detail is the human-readable description.
	Detail string
}

func (p Problem) String() string {
	return fmt.Sprintf("[%2d] %s - %s", p.Position, pretty.TypeName(p.Type), p.Detail)
}

// CaptureError aggregates every capture problem of one injection.
type CaptureError struct {
	Problems []Problem
}

func (e *CaptureError) Error() string {
	lines := make([]string, 0, len(e.Problems)+1)
	lines = append(lines, "Failed to capture all locals:")
	for _, p := range e.Problems {
		lines = append(lines, p.String())
	}
	return strings.Join(lines, "\n\t")
}

// Is matches ErrDescriptorInvalid and the kind of every problem.
func (e *CaptureError) Is(target error) bool {
	if target == injection.ErrDescriptorInvalid {
		return true
	}
	for _, p := range e.Problems {
		if errors.Is(p.Kind, target) {
			return true
		}
	}
	return false
}

// captureProblems describes the unsatisfied captures. handlerArgs is the
// full handler argument list and argOffset the index of the first extra
// parameter in it.
func captureProblems(t *Table, captures []Capture, handlerArgs []bytecode.Type, argOffset int) *CaptureError {
	e := &CaptureError{}
	for i, c := range captures {
		p := Problem{Position: i, Type: c.Type}
		index := argOffset + i
		switch {
		case !c.Successful():
			switch c.Kind {
			case NotFound:
				p.Kind = injection.ErrResolutionNotFound
				if c.Implicit() {
					p.Detail = "No local with matching type found"
				} else {
					p.Detail = "No local found matching criteria"
				}
			case Ambiguous:
				p.Kind = injection.ErrResolutionAmbiguous
				p.Detail = fmt.Sprintf("Expected one local with type but found %d", c.Candidates)
			default:
				p.Kind = injection.ErrTypeMismatch
				p.Detail = "Wrong type for slot, expected " + describeSlot(t, c.Slot)
			}
		case index >= len(handlerArgs):
			p.Kind = injection.ErrDescriptorInvalid
			p.Detail = "Missing parameter for local"
		case c.Type != handlerArgs[index]:
			p.Kind = injection.ErrTypeMismatch
			p.Detail = "Wrong parameter type for local, expected " + c.Type.ClassName()
		default:
			continue
		}
		e.Problems = append(e.Problems, p)
	}
	return e
}

func describeSlot(t *Table, slot int) string {
	if typ := t.Type(slot); !typ.IsZero() {
		return typ.ClassName()
	}
	return "nothing (empty slot)"
}
