package invoke

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/weave/injection"
	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/metrics"
	"github.com/chazu/weave/pkg/bytecode"
	"github.com/chazu/weave/synthetic"
)

const priceDesc = "(IJLweave/lang/String;)V"

var argsType = bytecode.ObjectType(ArgsClass)

// shopClass builds demo/Shop with
//
//	void buy(int qty) { this.price(qty, 1L, null); }
//
// and returns the class and the price invocation.
func shopClass() (*bytecode.ClassNode, *bytecode.Insn) {
	c := bytecode.NewClass("demo/Shop", "weave/lang/Object")
	call := bytecode.NewMethodInsn(bytecode.INVOKEVIRTUAL, "demo/Shop", "price", priceDesc)
	buy := c.VisitMethod(bytecode.AccPublic, "buy", "(I)V")
	buy.Emit(
		bytecode.NewVarInsn(bytecode.ALOAD, 0),
		bytecode.NewVarInsn(bytecode.ILOAD, 1),
		bytecode.NewInsn(bytecode.LCONST_1),
		bytecode.NewInsn(bytecode.ACONST_NULL),
		call,
		bytecode.NewInsn(bytecode.RETURN),
	)
	bytecode.ComputeMaxs(buy)
	c.VisitMethod(bytecode.AccPublic, "price", priceDesc).Emit(bytecode.NewInsn(bytecode.RETURN))
	return c, call
}

func addHandler(c *bytecode.ClassNode, access bytecode.Access, args ...bytecode.Type) *bytecode.MethodNode {
	h := c.VisitMethod(access, "onPrice", bytecode.MethodDescriptor(bytecode.Void, args...))
	h.Emit(bytecode.NewInsn(bytecode.RETURN))
	return h
}

func listing(m *bytecode.MethodNode) []string {
	var out []string
	for insn := range m.Instructions.All() {
		out = append(out, insn.String())
	}
	return out
}

func newInjector(t *testing.T, gen *ArgsGenerator, h *bytecode.MethodNode, opts ...Option) (*ModifyArgsInjector, *injection.Info) {
	t.Helper()
	info := injection.NewInfo("demo/ShopMixin", Annotation, h)
	inj, err := NewModifyArgsInjector(info, gen, append([]Option{WithLogger(logging.NewRecorder())}, opts...)...)
	require.NoError(t, err)
	return inj, info
}

func newGenerator() *ArgsGenerator {
	return NewArgsGenerator(nil, WithGeneratorLogger(logging.NewRecorder()))
}

func TestModifyArgsInstanceHandler(t *testing.T) {
	c, call := shopClass()
	target := injection.NewTarget(c, c.Method("buy", "(I)V"))
	h := addHandler(c, bytecode.AccPrivate, argsType)
	m := metrics.New(prometheus.NewRegistry())
	inj, info := newInjector(t, newGenerator(), h, WithMetrics(m))

	require.NoError(t, inj.Inject(target, injection.NewNode(call)))

	cls := "weave/synthetic/args/Args$1"
	want := []string{
		"ALOAD 0",
		"ILOAD 1",
		"LCONST_1",
		"ACONST_NULL",
		"INVOKESTATIC " + cls + ".of (IJLweave/lang/String;)L" + cls + ";",
		"DUP",
		"ALOAD 0",
		"SWAP",
		"INVOKESPECIAL demo/Shop.onPrice (Lweave/injection/invoke/arg/Args;)V",
		"DUP",
		"INVOKEVIRTUAL " + cls + ".$0 ()I",
		"SWAP",
		"DUP",
		"INVOKEVIRTUAL " + cls + ".$1 ()J",
		"DUP2_X1",
		"POP2",
		"INVOKEVIRTUAL " + cls + ".$2 ()Lweave/lang/String;",
		"INVOKEVIRTUAL demo/Shop.price " + priceDesc,
		"RETURN",
	}
	assert.Equal(t, want, listing(target.Method))
	assert.Equal(t, 1, info.InjectedCount())
	assert.NoError(t, bytecode.Verify(c))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Injections.WithLabelValues(metrics.OutcomeInjected)))
}

func TestModifyArgsStaticHandlerWithTargetArgs(t *testing.T) {
	c, call := shopClass()
	target := injection.NewTarget(c, c.Method("buy", "(I)V"))
	h := addHandler(c, bytecode.AccStatic, argsType, bytecode.Int)
	inj, _ := newInjector(t, newGenerator(), h)

	require.NoError(t, inj.Inject(target, injection.NewNode(call)))

	got := listing(target.Method)
	assert.Equal(t, "DUP", got[5])
	assert.Equal(t, "ILOAD 1", got[6])
	assert.Equal(t, "INVOKESTATIC demo/Shop.onPrice (Lweave/injection/invoke/arg/Args;I)V", got[7])
	assert.NoError(t, bytecode.Verify(c))
}

func TestModifyArgsInvalid(t *testing.T) {
	t.Run("signature", func(t *testing.T) {
		c, call := shopClass()
		target := injection.NewTarget(c, c.Method("buy", "(I)V"))
		inj, _ := newInjector(t, newGenerator(), addHandler(c, bytecode.AccStatic, bytecode.Int))
		err := inj.Inject(target, injection.NewNode(call))
		var invalid *injection.InvalidInjectionError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, err.Error(), "has an invalid signature (I)V, expected (Lweave/injection/invoke/arg/Args;)V or (Lweave/injection/invoke/arg/Args;I)V")
	})

	t.Run("no arguments", func(t *testing.T) {
		c, _ := shopClass()
		m := c.VisitMethod(bytecode.AccStatic, "run", "()V")
		call := bytecode.NewMethodInsn(bytecode.INVOKESTATIC, "demo/Shop", "tick", "()V")
		m.Emit(call, bytecode.NewInsn(bytecode.RETURN))
		inj, _ := newInjector(t, newGenerator(), addHandler(c, bytecode.AccStatic, argsType))
		err := inj.Inject(injection.NewTarget(c, m), injection.NewNode(call))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "targets a method invocation tick()V with no arguments!")
	})

	t.Run("not an invocation", func(t *testing.T) {
		c, _ := shopClass()
		buy := c.Method("buy", "(I)V")
		inj, _ := newInjector(t, newGenerator(), addHandler(c, bytecode.AccStatic, argsType))
		err := inj.Inject(injection.NewTarget(c, buy), injection.NewNode(buy.Instructions.First()))
		assert.ErrorIs(t, err, injection.ErrDescriptorInvalid)
	})
}

func TestArgsGenerator(t *testing.T) {
	registry := synthetic.NewRegistry()
	rec := logging.NewRecorder()
	gen := NewArgsGenerator(registry, WithGeneratorLogger(rec), WithSyntheticPackage("demo/gen"))

	info := gen.ArgsClass(priceDesc, "demo/ShopMixin")
	assert.Same(t, info, gen.ArgsClass(priceDesc, "demo/Other"))
	assert.Equal(t, "demo/gen/args/Args$1", info.Name())
	assert.Equal(t, "demo/gen/args/Args$2", gen.ArgsClass("(D)V", "demo/ShopMixin").Name())
	assert.Equal(t, 2, registry.Len())

	assert.False(t, gen.Generate("demo/gen/args/Args$9", &bytecode.ClassNode{}))

	shell := &bytecode.ClassNode{}
	require.True(t, gen.Generate(info.Name(), shell))
	assert.Equal(t, ArgsClass, shell.SuperName)
	require.NotNil(t, shell.Method("<init>", "([Lweave/lang/Object;)V"))
	require.NotNil(t, shell.Method("setAll", "([Lweave/lang/Object;)V"))

	of := shell.Method("of", "(IJLweave/lang/String;)L"+info.Name()+";")
	require.NotNil(t, of)
	assert.True(t, of.IsStatic())
	assert.Contains(t, listing(of), "INVOKESTATIC weave/lang/Long.valueOf (J)Lweave/lang/Long;")
	assert.Contains(t, listing(of), "LLOAD 1")
	assert.Contains(t, listing(of), "ALOAD 3")

	get := shell.Method("$1", "()J")
	require.NotNil(t, get)
	assert.Equal(t, []string{
		"ALOAD 0",
		"GETFIELD weave/injection/invoke/arg/Args.values [Lweave/lang/Object;",
		"ICONST_1",
		"AALOAD",
		"CHECKCAST weave/lang/Long",
		"INVOKEVIRTUAL weave/lang/Long.longValue ()J",
		"LRETURN",
	}, listing(get))
	assert.Contains(t, listing(shell.Method("$2", "()Lweave/lang/String;")), "CHECKCAST weave/lang/String")
	assert.NoError(t, bytecode.Verify(shell))

	again := &bytecode.ClassNode{}
	require.True(t, gen.Generate(info.Name(), again))
	assert.Equal(t, shell.Disassemble(), again.Disassemble())
	assert.Equal(t, 2, info.LoadCount())
}

func TestArgsThroughLoader(t *testing.T) {
	registry := synthetic.NewRegistry()
	gen := NewArgsGenerator(registry, WithGeneratorLogger(logging.NewRecorder()))
	loader := synthetic.NewLoader(synthetic.NewExtensions(gen), registry,
		synthetic.WithVerify(true), synthetic.WithLogger(logging.NewRecorder()))

	info := gen.ArgsClass("(ZCBSF)V", "demo/ShopMixin")
	classes, err := loader.LoadAll()
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, info.Name(), classes[0].Name)
	assert.True(t, info.IsLoaded())
}
