package callback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/weave/injection"
	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/pkg/bytecode"
)

var (
	ciType  = bytecode.ObjectType(CallbackInfoClass)
	cirType = bytecode.ObjectType(CallbackInfoReturnableClass)
)

// counterClass builds demo/Counter with
//
//	void tick(int delta) { long total; String label; int count; int steps; <at>; return; }
//	int compute(int delta) { int result = delta; return result; }
//
// and returns the class together with the NOP in tick and the IRETURN in
// compute.
func counterClass() (c *bytecode.ClassNode, tickAt, computeAt *bytecode.Insn) {
	c = bytecode.NewClass("demo/Counter", "weave/lang/Object")

	tick := c.VisitMethod(bytecode.AccPublic, "tick", "(I)V")
	start, end := bytecode.NewLabel(), bytecode.NewLabel()
	tickAt = bytecode.NewInsn(bytecode.NOP)
	tick.Emit(
		start,
		bytecode.NewInsn(bytecode.LCONST_0), bytecode.NewVarInsn(bytecode.LSTORE, 2),
		bytecode.NewInsn(bytecode.ACONST_NULL), bytecode.NewVarInsn(bytecode.ASTORE, 4),
		bytecode.NewInsn(bytecode.ICONST_0), bytecode.NewVarInsn(bytecode.ISTORE, 5),
		bytecode.NewInsn(bytecode.ICONST_1), bytecode.NewVarInsn(bytecode.ISTORE, 6),
		tickAt,
		bytecode.NewInsn(bytecode.RETURN),
		end,
	)
	tick.AddLocalVariable("this", "Ldemo/Counter;", 0, start, end)
	tick.AddLocalVariable("delta", "I", 1, start, end)
	tick.AddLocalVariable("total", "J", 2, start, end)
	tick.AddLocalVariable("label", "Lweave/lang/String;", 4, start, end)
	tick.AddLocalVariable("count", "I", 5, start, end)
	tick.AddLocalVariable("steps", "I", 6, start, end)
	bytecode.ComputeMaxs(tick)

	compute := c.VisitMethod(bytecode.AccPublic, "compute", "(I)I")
	start, end = bytecode.NewLabel(), bytecode.NewLabel()
	computeAt = bytecode.NewInsn(bytecode.IRETURN)
	compute.Emit(
		start,
		bytecode.NewVarInsn(bytecode.ILOAD, 1), bytecode.NewVarInsn(bytecode.ISTORE, 2),
		bytecode.NewVarInsn(bytecode.ILOAD, 2),
		computeAt,
		end,
	)
	compute.AddLocalVariable("this", "Ldemo/Counter;", 0, start, end)
	compute.AddLocalVariable("delta", "I", 1, start, end)
	compute.AddLocalVariable("result", "I", 2, start, end)
	bytecode.ComputeMaxs(compute)
	return c, tickAt, computeAt
}

// addHandler adds a handler method to c. The body is a single return
// unless body is given.
func addHandler(c *bytecode.ClassNode, access bytecode.Access, name string, args []bytecode.Type, body ...*bytecode.Insn) *bytecode.MethodNode {
	h := c.VisitMethod(access, name, bytecode.MethodDescriptor(bytecode.Void, args...))
	if len(body) == 0 {
		body = []*bytecode.Insn{bytecode.NewInsn(bytecode.RETURN)}
	}
	h.Emit(body...)
	bytecode.ComputeMaxs(h)
	return h
}

// listing renders a method body one instruction per entry. Labels are
// omitted and jumps are rendered without their target.
func listing(m *bytecode.MethodNode) []string {
	var out []string
	for insn := range m.Instructions.All() {
		switch {
		case insn.IsLabel():
		case insn.Op.IsJump():
			out = append(out, insn.Op.String())
		default:
			out = append(out, insn.String())
		}
	}
	return out
}

type fixture struct {
	class     *bytecode.ClassNode
	tick      *injection.Target
	tickAt    *bytecode.Insn
	compute   *injection.Target
	computeAt *bytecode.Insn
	gen       *LocalsGenerator
	log       *logging.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, tickAt, computeAt := counterClass()
	return &fixture{
		class:     c,
		tick:      injection.NewTarget(c, c.Method("tick", "(I)V")),
		tickAt:    tickAt,
		compute:   injection.NewTarget(c, c.Method("compute", "(I)I")),
		computeAt: computeAt,
		gen:       NewLocalsGenerator(nil, WithGeneratorLogger(logging.NewRecorder())),
		log:       logging.NewRecorder(),
	}
}

// injector builds an injector for handler with the fixture's logger.
func (f *fixture) injector(t *testing.T, handler *bytecode.MethodNode, opts ...Option) (*Injector, *injection.Info) {
	t.Helper()
	info := injection.NewInfo("demo/CounterMixin", Annotation, handler)
	inj, err := NewInjector(info, f.gen, append([]Option{WithLogger(f.log)}, opts...)...)
	require.NoError(t, err)
	return inj, info
}
