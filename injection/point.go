package injection

import (
	"fmt"
	"strings"

	"github.com/chazu/weave/pkg/bytecode"
)

// Point selects the instructions of a target an injection applies to.
type Point interface {
	Find(t *Target) []*bytecode.Insn
	String() string
}

// ParsePoint parses HEAD, RETURN, TAIL or INVOKE:<owner>.<name><desc>.
func ParsePoint(text string) (Point, error) {
	switch strings.ToUpper(text) {
	case "HEAD", "":
		return headPoint{}, nil
	case "RETURN":
		return returnPoint{}, nil
	case "TAIL":
		return tailPoint{}, nil
	}
	if rest, ok := strings.CutPrefix(text, "INVOKE:"); ok {
		paren := strings.IndexByte(rest, '(')
		if paren < 0 {
			return nil, fmt.Errorf("invalid injection point %q: missing descriptor", text)
		}
		dot := strings.LastIndexByte(rest[:paren], '.')
		if dot <= 0 || dot == paren-1 {
			return nil, fmt.Errorf("invalid injection point %q: expected owner.name", text)
		}
		p := InvokePoint{Owner: rest[:dot], Name: rest[dot+1 : paren], Desc: rest[paren:]}
		if _, _, err := bytecode.ParseMethodDescriptor(p.Desc); err != nil {
			return nil, fmt.Errorf("invalid injection point %q: %w", text, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("invalid injection point %q", text)
}

type headPoint struct{}

func (headPoint) String() string { return "HEAD" }

// Find returns the first instruction of the method.
func (headPoint) Find(t *Target) []*bytecode.Insn {
	if first := t.Method.Instructions.First(); first != nil {
		return []*bytecode.Insn{first}
	}
	return nil
}

type returnPoint struct{}

func (returnPoint) String() string { return "RETURN" }

// Find returns every return instruction.
func (returnPoint) Find(t *Target) []*bytecode.Insn {
	var out []*bytecode.Insn
	for insn := range t.Method.Instructions.All() {
		if insn.Op.IsReturn() {
			out = append(out, insn)
		}
	}
	return out
}

type tailPoint struct{}

func (tailPoint) String() string { return "TAIL" }

// Find returns the last return instruction.
func (tailPoint) Find(t *Target) []*bytecode.Insn {
	returns := returnPoint{}.Find(t)
	if len(returns) == 0 {
		return nil
	}
	return returns[len(returns)-1:]
}

// InvokePoint selects invocations of a specific method.
type InvokePoint struct {
	Owner, Name, Desc string
}

func (p InvokePoint) String() string {
	return fmt.Sprintf("INVOKE:%s.%s%s", p.Owner, p.Name, p.Desc)
}

// Find returns every matching method instruction.
func (p InvokePoint) Find(t *Target) []*bytecode.Insn {
	var out []*bytecode.Insn
	for insn := range t.Method.Instructions.All() {
		if insn.Op.IsInvoke() && insn.Owner == p.Owner && insn.Name == p.Name && insn.Desc == p.Desc {
			out = append(out, insn)
		}
	}
	return out
}
