package callback

import (
	"fmt"
	"slices"

	"github.com/chazu/weave/injection"
	"github.com/chazu/weave/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// ResolutionKind is the outcome of resolving a capture request.
type ResolutionKind uint8

const (
	// Declined: the strategy does not apply to the request.
	Declined ResolutionKind = iota

	// Found: a single slot was selected.
	Found

	// Ambiguous: several locals of the requested type exist.
	Ambiguous

	// NotFound: no slot satisfies the request.
	NotFound
)

func (k ResolutionKind) String() string {
	switch k {
	case Declined:
		return "declined"
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	case NotFound:
		return "not found"
	}
	return fmt.Sprintf("ResolutionKind(%d)", k)
}

// Resolution is the result of a strategy. Slot is meaningful for Found,
// Candidates for Ambiguous.
type Resolution struct {
	Kind       ResolutionKind
	Slot       int
	Candidates int
}

func found(slot int) Resolution { return Resolution{Kind: Found, Slot: slot} }
func ambiguous(n int) Resolution { return Resolution{Kind: Ambiguous, Slot: -1, Candidates: n} }
func notFound() Resolution { return Resolution{Kind: NotFound, Slot: -1} }
func declined() Resolution { return Resolution{Kind: Declined, Slot: -1} }

// ---------------------------------------------------------------------------
// Table: live locals at an injection point
// ---------------------------------------------------------------------------

// Table indexes the live locals after the target's parameters. Slots
// below the frame size are never selected.
type Table struct {
	locals    []*bytecode.LocalVariable
	types     []bytecode.Type
	frameSize int
	ordinals  []int
	byType    map[bytecode.Type][]int
}

// NewTable indexes locals, a slot-indexed live variable table, for a
// target whose first non-parameter slot is frameSize.
func NewTable(locals []*bytecode.LocalVariable, frameSize int) *Table {
	t := &Table{
		locals:    locals,
		types:     bytecode.LocalTypes(locals),
		frameSize: frameSize,
		ordinals:  make([]int, len(locals)),
		byType:    make(map[bytecode.Type][]int),
	}
	for i := range t.ordinals {
		t.ordinals[i] = -1
	}
	for slot := frameSize; slot < len(locals); slot++ {
		if locals[slot] == nil {
			continue
		}
		typ := t.types[slot]
		t.ordinals[slot] = len(t.byType[typ])
		t.byType[typ] = append(t.byType[typ], slot)
	}
	return t
}

// Len returns the number of slots.
func (t *Table) Len() int { return len(t.locals) }

// FrameSize returns the first slot after the parameters.
func (t *Table) FrameSize() int { return t.frameSize }

// Local returns the variable in slot, or nil.
func (t *Table) Local(slot int) *bytecode.LocalVariable {
	if slot < 0 || slot >= len(t.locals) {
		return nil
	}
	return t.locals[slot]
}

// Type returns the type of slot, or the zero Type for empty slots.
func (t *Table) Type(slot int) bytecode.Type {
	if slot < 0 || slot >= len(t.types) {
		return bytecode.Type{}
	}
	return t.types[slot]
}

// Ordinal returns the position of slot among the locals of its type, or
// -1 for empty and parameter slots.
func (t *Table) Ordinal(slot int) int {
	if slot < 0 || slot >= len(t.ordinals) {
		return -1
	}
	return t.ordinals[slot]
}

// SlotsOf returns the slots holding a local of type typ, in slot order.
func (t *Table) SlotsOf(typ bytecode.Type) []int {
	return t.byType[typ]
}

// Resolve runs the strategies in order and returns the first result that
// is not Declined. A request every strategy declines is NotFound.
func (t *Table) Resolve(req Local, want bytecode.Type) Resolution {
	for _, strategy := range strategies {
		if r := strategy(req, want, t); r.Kind != Declined {
			return r
		}
	}
	return notFound()
}

// ---------------------------------------------------------------------------
// Strategies
// ---------------------------------------------------------------------------

// Strategy resolves a request against a table, or declines.
type Strategy func(req Local, want bytecode.Type, t *Table) Resolution

var strategies = [...]Strategy{ResolveByOrdinal, ResolveByIndex, ResolveByName, ResolveByType}

// Strategies returns the resolution order. The slice is a copy.
func Strategies() []Strategy {
	return slices.Clone(strategies[:])
}

// ResolveByOrdinal selects the n-th local of the wanted type.
func ResolveByOrdinal(req Local, want bytecode.Type, t *Table) Resolution {
	if req.Ordinal < 0 {
		return declined()
	}
	slots := t.byType[want]
	if req.Ordinal >= len(slots) {
		return declined()
	}
	return found(slots[req.Ordinal])
}

// ResolveByIndex selects slot frameSize+index regardless of type.
func ResolveByIndex(req Local, want bytecode.Type, t *Table) Resolution {
	if req.Index < 0 || req.Index >= len(t.locals)-t.frameSize {
		return declined()
	}
	return found(t.frameSize + req.Index)
}

// ResolveByName selects the first live local, in slot order, named by the
// first name that matches any local.
func ResolveByName(req Local, want bytecode.Type, t *Table) Resolution {
	for _, name := range req.Names {
		for slot := t.frameSize; slot < len(t.locals); slot++ {
			if lv := t.locals[slot]; lv != nil && lv.Name == name {
				return found(slot)
			}
		}
	}
	return declined()
}

// ResolveByType handles implicit requests: the unique local of the wanted
// type. Explicit requests that reach it are NotFound.
func ResolveByType(req Local, want bytecode.Type, t *Table) Resolution {
	if !req.IsImplicit() {
		return notFound()
	}
	switch slots := t.byType[want]; len(slots) {
	case 0:
		return notFound()
	case 1:
		return found(slots[0])
	default:
		return ambiguous(len(slots))
	}
}

// ---------------------------------------------------------------------------
// Captures
// ---------------------------------------------------------------------------

// Capture is the resolution of one extra handler parameter.
type Capture struct {
	Resolution

	// Type is the declared handler parameter type.
	Type bytecode.Type

	// Request is the request used; implicit for parameters beyond the
	// declared requests.
	Request Local

	// Matched reports whether the resolved slot's type equals Type.
	// Ambiguous captures count as matched so that reports describe the
	// ambiguity rather than a type problem.
	Matched bool

	// Modifying marks a parameter annotated for write-back.
	Modifying bool
}

// Successful reports whether the capture can be loaded.
func (c Capture) Successful() bool {
	return c.Kind == Found && c.Matched
}

// Implicit reports whether the capture was resolved by type alone.
func (c Capture) Implicit() bool {
	return c.Request.IsImplicit()
}

// ResolveCaptures resolves one capture per extra handler parameter.
// Declared requests apply to the leading parameters in order; the rest
// are resolved implicitly. modifying reports, per extra parameter,
// whether it is marked for write-back.
func ResolveCaptures(t *Table, requests []Local, extra []bytecode.Type, modifying func(i int) bool) ([]Capture, error) {
	if len(requests) > len(extra) {
		return nil, fmt.Errorf("%w: expected (up to) %d but had %d", injection.ErrTooManyRequests, len(extra), len(requests))
	}
	captures := make([]Capture, len(extra))
	for i, typ := range extra {
		req := Implicit()
		if i < len(requests) {
			req = requests[i]
		}
		r := t.Resolve(req, typ)
		captures[i] = Capture{
			Resolution: r,
			Type:       typ,
			Request:    req,
			Matched:    r.Kind == Ambiguous || (r.Kind == Found && t.Type(r.Slot) == typ),
			Modifying:  modifying != nil && modifying(i),
		}
	}
	return captures, nil
}
