package callback

import (
	"fmt"
	"slices"
)

// Unset marks an unused Local criterion.
const Unset = -1

// Local is a request to capture one local variable. The zero value asks
// for ordinal 0 and index 0; use Implicit, ByOrdinal, ByIndex or ByName
// to build requests.
type Local struct {
	// Ordinal selects the n-th live local of the parameter's type.
	Ordinal int

	// Index selects the n-th slot after the target's parameters.
	Index int

	// Names lists candidate variable names, tried in order.
	Names []string
}

// Implicit returns a request with no criteria: the local is found by type.
func Implicit() Local {
	return Local{Ordinal: Unset, Index: Unset}
}

// ByOrdinal returns a request for the n-th local of the parameter's type.
func ByOrdinal(n int) Local {
	l := Implicit()
	l.Ordinal = n
	return l
}

// ByIndex returns a request for slot frameSize+n.
func ByIndex(n int) Local {
	l := Implicit()
	l.Index = n
	return l
}

// ByName returns a request for the first live local with one of names.
// Duplicate names are dropped.
func ByName(names ...string) Local {
	l := Implicit()
	for _, n := range names {
		if !slices.Contains(l.Names, n) {
			l.Names = append(l.Names, n)
		}
	}
	return l
}

// IsImplicit reports whether the request carries no criteria.
func (l Local) IsImplicit() bool {
	return l.Ordinal < 0 && l.Index < 0 && len(l.Names) == 0
}

func (l Local) String() string {
	return fmt.Sprintf("Local[ordinal=%d, index=%d, names=%v]", l.Ordinal, l.Index, l.Names)
}
