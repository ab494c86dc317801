// Package invoke rewrites method invocations. The modify-args injector
// packs the arguments of a call into a synthetic Args subclass, lets a
// handler change them, and unpacks them back onto the stack before the
// call proceeds.
package invoke

import (
	"strconv"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/metrics"
	"github.com/chazu/weave/pkg/bytecode"
	"github.com/chazu/weave/synthetic"
)

// Runtime classes referenced by generated Args classes.
const (
	ArgsClass                   = "weave/injection/invoke/arg/Args"
	ArgumentCountExceptionClass = "weave/injection/invoke/arg/ArgumentCountException"
)

// Generated member names.
const (
	ValuesField   = "values"
	FactoryMethod = "of"
	GetterPrefix  = "$"
	SetAllMethod  = "setAll"
)

// GeneratorName identifies the args generator.
const GeneratorName = "args"

const argsSimpleName = "Args$"

var valuesDesc = bytecode.ObjectArray.Descriptor()

// boxes maps primitive descriptors to their wrapper class and unboxing
// method.
var boxes = map[bytecode.Type]struct{ class, unbox string }{
	bytecode.Boolean: {"weave/lang/Boolean", "booleanValue"},
	bytecode.Char:    {"weave/lang/Character", "charValue"},
	bytecode.Byte:    {"weave/lang/Byte", "byteValue"},
	bytecode.Short:   {"weave/lang/Short", "shortValue"},
	bytecode.Int:     {"weave/lang/Integer", "intValue"},
	bytecode.Float:   {"weave/lang/Float", "floatValue"},
	bytecode.Long:    {"weave/lang/Long", "longValue"},
	bytecode.Double:  {"weave/lang/Double", "doubleValue"},
}

// ArgsInfo is the identity of a generated Args class. It implements
// synthetic.ClassInfo.
type ArgsInfo struct {
	name  string
	mixin string
	desc  string

	loaded int // guarded by the generator mutex
	gen    *ArgsGenerator
}

func (a *ArgsInfo) Name() string { return a.name }
func (a *ArgsInfo) Mixin() string { return a.mixin }

// Descriptor returns the call descriptor the class packs.
func (a *ArgsInfo) Descriptor() string { return a.desc }

// LoadCount returns how many times the class has been generated.
func (a *ArgsInfo) LoadCount() int {
	a.gen.mu.Lock()
	defer a.gen.mu.Unlock()
	return a.loaded
}

func (a *ArgsInfo) IsLoaded() bool { return a.LoadCount() > 0 }

// ArgsGenerator allocates and generates Args subclasses, one per call
// descriptor. It is safe for concurrent use.
type ArgsGenerator struct {
	mu        sync.Mutex
	registrar synthetic.Registrar
	pkg       string
	byDesc    map[string]*ArgsInfo
	byName    map[string]*ArgsInfo
	next      int

	log     commonlog.Logger
	metrics *metrics.Collectors
}

// GeneratorOption configures an ArgsGenerator.
type GeneratorOption func(*ArgsGenerator)

// WithSyntheticPackage allocates classes below pkg.
func WithSyntheticPackage(pkg string) GeneratorOption {
	return func(g *ArgsGenerator) {
		if pkg != "" {
			g.pkg = pkg
		}
	}
}

// WithGeneratorLogger replaces the generator logger.
func WithGeneratorLogger(log commonlog.Logger) GeneratorOption {
	return func(g *ArgsGenerator) { g.log = log }
}

// WithGeneratorMetrics records allocations and generations.
func WithGeneratorMetrics(m *metrics.Collectors) GeneratorOption {
	return func(g *ArgsGenerator) { g.metrics = m }
}

// NewArgsGenerator creates a generator reporting new classes to
// registrar, which may be nil.
func NewArgsGenerator(registrar synthetic.Registrar, opts ...GeneratorOption) *ArgsGenerator {
	g := &ArgsGenerator{
		registrar: registrar,
		pkg:       "weave/synthetic",
		byDesc:    make(map[string]*ArgsInfo),
		byName:    make(map[string]*ArgsInfo),
		log:       logging.Generator(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements synthetic.Generator.
func (g *ArgsGenerator) Name() string { return GeneratorName }

// ArgsClass returns the Args class packing the arguments of desc.
func (g *ArgsGenerator) ArgsClass(desc, mixin string) *ArgsInfo {
	g.mu.Lock()
	if info, ok := g.byDesc[desc]; ok {
		g.mu.Unlock()
		return info
	}
	g.next++
	info := &ArgsInfo{
		name:  g.pkg + "/args/" + argsSimpleName + strconv.Itoa(g.next),
		mixin: mixin,
		desc:  desc,
		gen:   g,
	}
	g.byDesc[desc] = info
	g.byName[info.name] = info
	g.mu.Unlock()

	g.log.Debugf("allocated %s for %s%s", info.name, mixin, desc)
	g.metrics.Allocated(GeneratorName)
	if g.registrar != nil {
		g.registrar.Register(info)
	}
	return info
}

// Generate implements synthetic.Generator.
func (g *ArgsGenerator) Generate(name string, shell *bytecode.ClassNode) bool {
	g.mu.Lock()
	info, ok := g.byName[name]
	if !ok {
		g.mu.Unlock()
		return false
	}
	regenerated := info.loaded > 0
	info.loaded++
	g.mu.Unlock()

	if regenerated {
		g.log.Debugf("regenerating %s", name)
	}
	g.metrics.Generated(GeneratorName, regenerated)
	generateArgs(info, shell)
	return true
}

func generateArgs(info *ArgsInfo, shell *bytecode.ClassNode) {
	args := bytecode.ArgumentTypes(info.desc)
	ctorDesc := bytecode.MethodDescriptor(bytecode.Void, bytecode.ObjectArray)

	shell.Visit(bytecode.Version, bytecode.AccPublic|bytecode.AccSuper|bytecode.AccSynthetic, info.name, ArgsClass)
	shell.VisitSource(bytecode.SimpleClassName(info.name))

	ctor := shell.VisitMethod(bytecode.AccPrivate, "<init>", ctorDesc)
	ctor.Emit(
		bytecode.NewVarInsn(bytecode.ALOAD, 0),
		bytecode.NewVarInsn(bytecode.ALOAD, 1),
		bytecode.NewMethodInsn(bytecode.INVOKESPECIAL, ArgsClass, "<init>", ctorDesc),
		bytecode.NewInsn(bytecode.RETURN),
	)
	bytecode.ComputeMaxs(ctor)

	// of: static factory boxing every argument into the values array.
	self := bytecode.ObjectType(info.name)
	of := shell.VisitMethod(bytecode.AccPublic|bytecode.AccStatic, FactoryMethod, bytecode.MethodDescriptor(self, args...))
	of.Emit(
		bytecode.NewTypeInsn(bytecode.NEW, info.name),
		bytecode.NewInsn(bytecode.DUP),
		bytecode.PushInt(len(args)),
		bytecode.NewTypeInsn(bytecode.ANEWARRAY, bytecode.ObjectRoot.InternalName()),
	)
	slot := 0
	for i, t := range args {
		of.Emit(
			bytecode.NewInsn(bytecode.DUP),
			bytecode.PushInt(i),
			bytecode.NewVarInsn(t.Opcode(bytecode.ILOAD), slot),
		)
		if b, ok := boxes[t]; ok {
			of.Emit(bytecode.NewMethodInsn(bytecode.INVOKESTATIC, b.class, "valueOf",
				bytecode.MethodDescriptor(bytecode.ObjectType(b.class), t)))
		}
		of.Emit(bytecode.NewInsn(bytecode.AASTORE))
		slot += t.Size()
	}
	of.Emit(
		bytecode.NewMethodInsn(bytecode.INVOKESPECIAL, info.name, "<init>", ctorDesc),
		bytecode.NewInsn(bytecode.ARETURN),
	)
	bytecode.ComputeMaxs(of)

	for i, t := range args {
		getter := shell.VisitMethod(bytecode.AccPublic, GetterPrefix+strconv.Itoa(i), bytecode.MethodDescriptor(t))
		getter.Emit(
			bytecode.NewVarInsn(bytecode.ALOAD, 0),
			bytecode.NewFieldInsn(bytecode.GETFIELD, ArgsClass, ValuesField, valuesDesc),
			bytecode.PushInt(i),
			bytecode.NewInsn(bytecode.AALOAD),
		)
		if b, ok := boxes[t]; ok {
			getter.Emit(
				bytecode.NewTypeInsn(bytecode.CHECKCAST, b.class),
				bytecode.NewMethodInsn(bytecode.INVOKEVIRTUAL, b.class, b.unbox, bytecode.MethodDescriptor(t)),
			)
		} else if t != bytecode.ObjectRoot {
			getter.Emit(bytecode.NewTypeInsn(bytecode.CHECKCAST, t.InternalName()))
		}
		getter.Emit(bytecode.NewInsn(t.Opcode(bytecode.IRETURN)))
		bytecode.ComputeMaxs(getter)
	}

	// setAll replaces every value after checking the count.
	setAll := shell.VisitMethod(bytecode.AccPublic, SetAllMethod, ctorDesc)
	ok := bytecode.NewLabel()
	setAll.Emit(
		bytecode.NewVarInsn(bytecode.ALOAD, 1),
		bytecode.NewInsn(bytecode.ARRAYLENGTH),
		bytecode.PushInt(len(args)),
		bytecode.NewInsn(bytecode.ISUB),
		bytecode.NewJumpInsn(bytecode.IFEQ, ok),
		bytecode.NewTypeInsn(bytecode.NEW, ArgumentCountExceptionClass),
		bytecode.NewInsn(bytecode.DUP),
		bytecode.NewVarInsn(bytecode.ALOAD, 1),
		bytecode.NewInsn(bytecode.ARRAYLENGTH),
		bytecode.PushInt(len(args)),
		bytecode.NewLdcInsn(info.desc),
		bytecode.NewMethodInsn(bytecode.INVOKESPECIAL, ArgumentCountExceptionClass, "<init>",
			bytecode.MethodDescriptor(bytecode.Void, bytecode.Int, bytecode.Int, bytecode.StringType)),
		bytecode.NewInsn(bytecode.ATHROW),
		ok,
		bytecode.NewVarInsn(bytecode.ALOAD, 0),
		bytecode.NewVarInsn(bytecode.ALOAD, 1),
		bytecode.NewFieldInsn(bytecode.PUTFIELD, ArgsClass, ValuesField, valuesDesc),
		bytecode.NewInsn(bytecode.RETURN),
	)
	bytecode.ComputeMaxs(setAll)
}
