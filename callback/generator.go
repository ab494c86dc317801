package callback

import (
	"strconv"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/metrics"
	"github.com/chazu/weave/pkg/bytecode"
	"github.com/chazu/weave/synthetic"
)

// Carrier member names.
const (
	LocalFieldPrefix = "local$"
	SetLocalsMethod  = "setLocals"
	GetLocalPrefix   = "getLocal$"
)

// GeneratorName identifies the locals carrier generator.
const GeneratorName = "local-callback"

// DefaultSyntheticPackage is the package synthetic classes are allocated in.
const DefaultSyntheticPackage = "weave/synthetic"

const carrierSimpleName = "CallbackInfoWithLocals$"

// ---------------------------------------------------------------------------
// Carrier: identity of a generated class
// ---------------------------------------------------------------------------

// Carrier is the identity of a synthetic handler-info subclass that
// carries captured locals. It implements synthetic.ClassInfo.
type Carrier struct {
	mixin string
	name  string
	key   CaptureKey

	loaded int // guarded by the generator mutex
	gen    *LocalsGenerator
}

// Name returns the internal class name.
func (c *Carrier) Name() string { return c.name }

// Mixin returns the owner that first requested the carrier.
func (c *Carrier) Mixin() string { return c.mixin }

// Key returns the carrier shape.
func (c *Carrier) Key() CaptureKey { return c.key }

// LoadCount returns how many times the class has been generated.
func (c *Carrier) LoadCount() int {
	c.gen.mu.Lock()
	defer c.gen.mu.Unlock()
	return c.loaded
}

// IsLoaded reports whether the class has been generated at least once.
func (c *Carrier) IsLoaded() bool { return c.LoadCount() > 0 }

// SuperName returns the handler-info base class the carrier extends.
func (c *Carrier) SuperName() string { return CallInfoClassName(c.key.ReturnType) }

// SuperConstructor returns the base constructor descriptor the carrier's
// constructor forwards to.
func (c *Carrier) SuperConstructor() string {
	return ConstructorDescriptor(c.key.ReturnType, c.key.UseReturn)
}

// ---------------------------------------------------------------------------
// LocalsGenerator
// ---------------------------------------------------------------------------

// LocalsGenerator allocates and generates carrier classes. Carriers are
// pooled by CaptureKey; all methods are safe for concurrent use.
type LocalsGenerator struct {
	mu        sync.Mutex
	registrar synthetic.Registrar
	pkg       string
	pool      map[string]*Carrier
	byName    map[string]*Carrier
	next      int

	log     commonlog.Logger
	metrics *metrics.Collectors
}

// GeneratorOption configures a LocalsGenerator.
type GeneratorOption func(*LocalsGenerator)

// WithSyntheticPackage allocates carriers below pkg.
func WithSyntheticPackage(pkg string) GeneratorOption {
	return func(g *LocalsGenerator) {
		if pkg != "" {
			g.pkg = pkg
		}
	}
}

// WithGeneratorLogger replaces the generator logger.
func WithGeneratorLogger(log commonlog.Logger) GeneratorOption {
	return func(g *LocalsGenerator) { g.log = log }
}

// WithGeneratorMetrics records allocations and generations.
func WithGeneratorMetrics(m *metrics.Collectors) GeneratorOption {
	return func(g *LocalsGenerator) { g.metrics = m }
}

// NewLocalsGenerator creates a generator that reports new carriers to
// registrar, which may be nil.
func NewLocalsGenerator(registrar synthetic.Registrar, opts ...GeneratorOption) *LocalsGenerator {
	g := &LocalsGenerator{
		registrar: registrar,
		pkg:       DefaultSyntheticPackage,
		pool:      make(map[string]*Carrier),
		byName:    make(map[string]*Carrier),
		log:       logging.Generator(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements synthetic.Generator.
func (g *LocalsGenerator) Name() string { return GeneratorName }

// ArgsClass returns the carrier for the given shape, allocating and
// registering a new one the first time the shape is seen.
func (g *LocalsGenerator) ArgsClass(mixin string, ret bytecode.Type, useReturn bool, locals ...bytecode.Type) *Carrier {
	key := NewCaptureKey(ret, useReturn, locals...)
	id := key.id()

	g.mu.Lock()
	if c, ok := g.pool[id]; ok {
		g.mu.Unlock()
		return c
	}
	g.next++
	c := &Carrier{
		mixin: mixin,
		name:  g.pkg + "/callback/" + carrierSimpleName + strconv.Itoa(g.next),
		key:   key,
		gen:   g,
	}
	g.pool[id] = c
	g.byName[c.name] = c
	g.mu.Unlock()

	g.log.Debugf("allocated %s for %s (return %s, value %v, locals %v)", c.name, mixin, ret, key.UseReturn, key.Locals)
	g.metrics.Allocated(GeneratorName)
	if g.registrar != nil {
		g.registrar.Register(c)
	}
	return c
}

// Carrier returns the carrier allocated under name.
func (g *LocalsGenerator) Carrier(name string) (*Carrier, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.byName[name]
	return c, ok
}

// Generate implements synthetic.Generator. It fills shell with the
// carrier's members and returns false for names it did not allocate.
// Generating the same carrier again produces the same members.
func (g *LocalsGenerator) Generate(name string, shell *bytecode.ClassNode) bool {
	g.mu.Lock()
	c, ok := g.byName[name]
	if !ok {
		g.mu.Unlock()
		return false
	}
	regenerated := c.loaded > 0
	c.loaded++
	g.mu.Unlock()

	if regenerated {
		g.log.Debugf("regenerating %s", name)
	}
	g.metrics.Generated(GeneratorName, regenerated)

	generateCarrier(c, shell)
	return true
}

func generateCarrier(c *Carrier, shell *bytecode.ClassNode) {
	shell.Visit(bytecode.Version, bytecode.AccPublic|bytecode.AccSuper|bytecode.AccSynthetic, c.name, c.SuperName())
	shell.VisitSource(bytecode.SimpleClassName(c.name))

	locals := c.key.Locals
	for i, t := range locals {
		shell.VisitField(bytecode.AccPrivate, LocalFieldPrefix+strconv.Itoa(i), t.Descriptor())
	}

	// Constructor forwarding to the base handler-info constructor.
	superDesc := c.SuperConstructor()
	ctor := shell.VisitMethod(bytecode.AccPublic, constructorName, superDesc)
	ctor.Emit(
		bytecode.NewVarInsn(bytecode.ALOAD, 0),
		bytecode.NewVarInsn(bytecode.ALOAD, 1),
		bytecode.NewVarInsn(bytecode.ILOAD, 2),
	)
	if c.key.UseReturn {
		ctor.Emit(bytecode.NewVarInsn(valueType(c.key.ReturnType).Opcode(bytecode.ILOAD), 3))
	}
	ctor.Emit(
		bytecode.NewMethodInsn(bytecode.INVOKESPECIAL, c.SuperName(), constructorName, superDesc),
		bytecode.NewInsn(bytecode.RETURN),
	)
	bytecode.ComputeMaxs(ctor)

	// setLocals stores every carried value.
	setter := shell.VisitMethod(bytecode.AccPublic, SetLocalsMethod, c.key.SetterDescriptor())
	slot := 1
	for i, t := range locals {
		setter.Emit(
			bytecode.NewVarInsn(bytecode.ALOAD, 0),
			bytecode.NewVarInsn(t.Opcode(bytecode.ILOAD), slot),
			bytecode.NewFieldInsn(bytecode.PUTFIELD, c.name, LocalFieldPrefix+strconv.Itoa(i), t.Descriptor()),
		)
		slot += t.Size()
	}
	setter.Emit(bytecode.NewInsn(bytecode.RETURN))
	bytecode.ComputeMaxs(setter)

	for i, t := range locals {
		getter := shell.VisitMethod(bytecode.AccPublic, GetLocalPrefix+strconv.Itoa(i), bytecode.MethodDescriptor(t))
		getter.Emit(
			bytecode.NewVarInsn(bytecode.ALOAD, 0),
			bytecode.NewFieldInsn(bytecode.GETFIELD, c.name, LocalFieldPrefix+strconv.Itoa(i), t.Descriptor()),
			bytecode.NewInsn(t.Opcode(bytecode.IRETURN)),
		)
		bytecode.ComputeMaxs(getter)
	}
}
