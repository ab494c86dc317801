// Package injection holds the collaborators shared by injectors: the
// method being rewritten, the instruction an injection applies to, the
// per-handler bookkeeping and the error kinds.
package injection

import (
	"fmt"
	"sync"

	"github.com/chazu/weave/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Target
// ---------------------------------------------------------------------------

// Target is a method being instrumented, with its parsed signature.
type Target struct {
	Class      *bytecode.ClassNode
	Method     *bytecode.MethodNode
	Arguments  []bytecode.Type
	ReturnType bytecode.Type
	IsStatic   bool
}

// NewTarget wraps method m of class c.
func NewTarget(c *bytecode.ClassNode, m *bytecode.MethodNode) *Target {
	return &Target{
		Class:      c,
		Method:     m,
		Arguments:  m.ArgumentTypes(),
		ReturnType: m.ReturnType(),
		IsStatic:   m.IsStatic(),
	}
}

// FrameSize returns the first slot after the receiver and parameters.
func (t *Target) FrameSize() int {
	return t.Method.FirstNonArgLocal()
}

// AllocateLocal reserves size new local slots and returns the first.
func (t *Target) AllocateLocal(size int) int {
	slot := t.Method.MaxLocals
	t.Method.MaxLocals += size
	return slot
}

// Insert places insns before the instruction at and recomputes the stack
// size.
func (t *Target) Insert(at *bytecode.Insn, insns *bytecode.InsnList) {
	t.Method.Instructions.InsertBefore(at, insns)
	bytecode.ComputeMaxs(t.Method)
}

func (t *Target) String() string {
	return fmt.Sprintf("%s::%s%s", t.Class.Name, t.Method.Name, t.Method.Desc)
}

// InjectionNode is the instruction an injection is applied before.
type InjectionNode struct {
	Current *bytecode.Insn

	// Locals optionally overrides the live locals table at Current.
	Locals []*bytecode.LocalVariable
}

// NewNode creates a node for insn.
func NewNode(insn *bytecode.Insn) *InjectionNode {
	return &InjectionNode{Current: insn}
}

// IsReturn reports whether the node is a return instruction.
func (n *InjectionNode) IsReturn() bool {
	return n.Current.Op.IsReturn()
}

// ---------------------------------------------------------------------------
// Info: per-handler bookkeeping
// ---------------------------------------------------------------------------

// Info describes one handler method and records what injecting it did.
type Info struct {
	// Mixin is the class that declared the handler.
	Mixin string

	// Annotation names the injection kind in messages, e.g.
	// "@InjectWithLocals".
	Annotation string

	// Handler is the method invoked by the injected code. It lives in the
	// target class.
	Handler *bytecode.MethodNode

	// TargetCount is the number of targets the declaration matched.
	TargetCount int

	mu          sync.Mutex
	injected    int
	invocations []*bytecode.MethodNode
}

// NewInfo creates bookkeeping for handler.
func NewInfo(mixin, annotation string, handler *bytecode.MethodNode) *Info {
	return &Info{Mixin: mixin, Annotation: annotation, Handler: handler, TargetCount: 1}
}

func (i *Info) String() string {
	return fmt.Sprintf("%s %s::%s%s", i.Annotation, i.Mixin, i.Handler.Name, i.Handler.Desc)
}

// NotifyInjected records a completed injection into target.
func (i *Info) NotifyInjected(target *Target) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.injected++
}

// InjectedCount returns the number of completed injections.
func (i *Info) InjectedCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.injected
}

// AddCallbackInvocation records a handler invocation that was reported
// but not woven.
func (i *Info) AddCallbackInvocation(handler *bytecode.MethodNode) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.invocations = append(i.invocations, handler)
}

// CallbackInvocations returns the recorded invocations.
func (i *Info) CallbackInvocations() []*bytecode.MethodNode {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*bytecode.MethodNode(nil), i.invocations...)
}
