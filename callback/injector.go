package callback

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/weave/injection"
	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/metrics"
	"github.com/chazu/weave/pkg/bytecode"
)

// Injector weaves a call to a handler method into target methods and
// passes the handler the target's live locals.
type Injector struct {
	info        *injection.Info
	generator   *LocalsGenerator
	cancellable bool
	behaviour   LocalCapture
	requests    []Local
	identifier  string
	report      io.Writer

	log     commonlog.Logger
	metrics *metrics.Collectors
}

// Option configures an Injector.
type Option func(*Injector)

// Cancellable makes the injected call honour handler cancellation.
func Cancellable(v bool) Option {
	return func(i *Injector) { i.cancellable = v }
}

// Behaviour selects the reaction to locals that cannot be captured.
func Behaviour(lc LocalCapture) Option {
	return func(i *Injector) { i.behaviour = lc }
}

// Locals declares capture requests for the leading extra handler
// parameters.
func Locals(reqs ...Local) Option {
	return func(i *Injector) { i.requests = append(i.requests, reqs...) }
}

// ID sets the identifier passed to the handler-info constructor. The
// target method name is used when empty.
func ID(id string) Option {
	return func(i *Injector) { i.identifier = id }
}

// WithReport sends Print reports to w instead of stderr.
func WithReport(w io.Writer) Option {
	return func(i *Injector) { i.report = w }
}

// WithLogger replaces the injector logger.
func WithLogger(log commonlog.Logger) Option {
	return func(i *Injector) { i.log = log }
}

// WithMetrics records injection outcomes.
func WithMetrics(m *metrics.Collectors) Option {
	return func(i *Injector) { i.metrics = m }
}

// NewInjector creates an injector for the handler described by info.
// Carriers for modified locals are allocated from gen.
func NewInjector(info *injection.Info, gen *LocalsGenerator, opts ...Option) (*Injector, error) {
	inj := &Injector{
		info:      info,
		generator: gen,
		behaviour: CaptureFailHard,
		report:    os.Stderr,
		log:       logging.Injector(),
	}
	for _, opt := range opts {
		opt(inj)
	}
	if inj.behaviour == NoCapture {
		return nil, &injection.InvalidInjectionError{
			Info: info.String(),
			Msg:  fmt.Sprintf("Invalid value of local capture behaviour (%s) in %s", inj.behaviour, info),
		}
	}
	if gen == nil {
		return nil, &injection.InvalidInjectionError{
			Info: info.String(),
			Msg:  "no carrier generator for " + info.String(),
		}
	}
	return inj, nil
}

// Info returns the handler bookkeeping.
func (inj *Injector) Info() *injection.Info { return inj.info }

// Behaviour returns the capture failure behaviour.
func (inj *Injector) Behaviour() LocalCapture { return inj.behaviour }

// Inject rewrites target before node. A nil error with no rewrite means
// the injection was printed or skipped by policy.
func (inj *Injector) Inject(target *injection.Target, node *injection.InjectionNode) error {
	handler := inj.info.Handler
	if target.IsStatic && !handler.IsStatic() {
		inj.metrics.Injection(metrics.OutcomeFailed)
		return &injection.InvalidInjectionError{
			Info: inj.info.String(),
			Msg:  fmt.Sprintf("%s cannot instrument static target %s with an instance handler", inj.info, target),
		}
	}

	cb, err := inj.newCallback(target, node)
	if err != nil {
		inj.metrics.Injection(metrics.OutcomeFailed)
		return err
	}

	if inj.behaviour == Print {
		if err := cb.printLocals(inj.report); err != nil {
			return fmt.Errorf("printing locals for %s: %w", target, err)
		}
		inj.info.AddCallbackInvocation(handler)
		inj.metrics.Injection(metrics.OutcomePrinted)
		return nil
	}

	ok, err := cb.checkDescriptor(handler.Desc)
	if err != nil {
		inj.metrics.Injection(metrics.OutcomeFailed)
		return err
	}

	outcome := metrics.OutcomeInjected
	if !ok {
		if inj.info.TargetCount > 1 {
			inj.metrics.Injection(metrics.OutcomeSkipped)
			return nil
		}
		problems := captureProblems(cb.table, cb.captures, cb.handlerArgs, cb.argOffset)
		msg := problems.Error()
		switch inj.behaviour {
		case CaptureFailException:
			inj.log.Errorf("Injection error: %s", msg)
			handler = cb.generateErrorMethod(msg)
			outcome = metrics.OutcomeErrorMethod
		case CaptureFailSoft:
			inj.log.Warningf("Injection warning: %s", msg)
			inj.metrics.Injection(metrics.OutcomeSkipped)
			return nil
		default:
			inj.log.Criticalf("Critical injection failure: %s", msg)
			inj.metrics.Injection(metrics.OutcomeFailed)
			return &injection.InjectionError{Info: inj.info.String(), Msg: msg, Err: problems}
		}
	}

	cb.emit(handler)
	target.Insert(node.Current, cb.insns)
	inj.info.NotifyInjected(target)
	inj.metrics.Injection(outcome)
	inj.log.Debugf("injected %s into %s before %s", handler.Name, target, node.Current)
	return nil
}

// ---------------------------------------------------------------------------
// callback: per-injection state
// ---------------------------------------------------------------------------

type callback struct {
	inj    *Injector
	target *injection.Target
	node   *injection.InjectionNode

	handler     *bytecode.MethodNode
	handlerArgs []bytecode.Type
	argOffset   int
	extraArgs   int

	locals     []*bytecode.LocalVariable
	table      *Table
	frameSize  int
	argNames   []string
	captures   []Capture
	isAtReturn bool

	usesCallbackInfo bool
	modifiesLocals   bool
	errorMode        bool

	insns      *bytecode.InsnList
	marshalVar int
	returnVar  int
	ciClass    string
}

func (inj *Injector) newCallback(target *injection.Target, node *injection.InjectionNode) (*callback, error) {
	handler := inj.info.Handler
	locals := node.Locals
	if locals == nil {
		locals = bytecode.LocalsAt(target.Class.Name, target.Method, node.Current)
	}

	cb := &callback{
		inj:         inj,
		target:      target,
		node:        node,
		handler:     handler,
		handlerArgs: handler.ArgumentTypes(),
		argOffset:   len(target.Arguments) + 1,
		locals:      locals,
		frameSize:   target.FrameSize(),
		isAtReturn:  node.IsReturn(),
		insns:       bytecode.NewInsnList(),
		marshalVar:  -1,
		returnVar:   -1,
	}
	cb.extraArgs = max(len(cb.handlerArgs)-cb.argOffset, 0)
	cb.table = NewTable(locals, cb.frameSize)
	cb.argNames = cb.parameterNames()

	for i := cb.argOffset; i < len(cb.handlerArgs); i++ {
		if handler.HasParamAnnotation(i, ModifyAnnotation) {
			cb.modifiesLocals = true
			break
		}
	}
	cb.usesCallbackInfo = inj.cancellable || cb.modifiesLocals || cb.readsCallbackInfo()

	captures, err := ResolveCaptures(cb.table, inj.requests, cb.handlerArgs[min(cb.argOffset, len(cb.handlerArgs)):], func(i int) bool {
		return handler.HasParamAnnotation(cb.argOffset+i, ModifyAnnotation)
	})
	if err != nil {
		if inj.behaviour == Print {
			inj.log.Warningf("%s: %v", inj.info, err)
			return cb, nil
		}
		return nil, &injection.InvalidInjectionError{
			Info: inj.info.String(),
			Msg:  fmt.Sprintf("Too many locals specified in %s! Expected (up to) %d but had %d", inj.info, cb.extraArgs, len(inj.requests)),
			Err:  err,
		}
	}
	cb.captures = captures

	inj.log.Debugf("%s at %s: frame %d, %d locals, %d captures", inj.info, target, cb.frameSize, len(locals), len(captures))
	return cb, nil
}

// parameterNames returns the names of the target's parameters as seen at
// the injection point.
func (cb *callback) parameterNames() []string {
	names := make([]string, len(cb.target.Arguments))
	slot := 0
	if !cb.target.IsStatic {
		slot = 1
	}
	for i, arg := range cb.target.Arguments {
		if slot < len(cb.locals) && cb.locals[slot] != nil {
			names[i] = cb.locals[slot].Name
		}
		slot += arg.Size()
	}
	return names
}

// callbackInfoSlot returns the handler's slot holding the handler-info.
func (cb *callback) callbackInfoSlot() int {
	slot := bytecode.ArgumentsSize(cb.target.Arguments)
	if !cb.handler.IsStatic() {
		slot++
	}
	return slot
}

// readsCallbackInfo reports whether the handler body loads its
// handler-info argument.
func (cb *callback) readsCallbackInfo() bool {
	slot := cb.callbackInfoSlot()
	for insn := range cb.handler.Instructions.All() {
		if insn.Op == bytecode.ALOAD && insn.Operand == slot {
			return true
		}
	}
	return false
}

// modifyingTypes returns the types of the @Modify captures in order.
func (cb *callback) modifyingTypes() []bytecode.Type {
	var types []bytecode.Type
	for _, c := range cb.captures {
		if c.Modifying {
			types = append(types, c.Type)
		}
	}
	return types
}

// callbackInfoClass returns the class of the handler-info passed to the
// handler: a carrier when locals are written back, else the base class.
func (cb *callback) callbackInfoClass() string {
	if cb.ciClass != "" {
		return cb.ciClass
	}
	ret := cb.target.ReturnType
	if cb.modifiesLocals && !cb.errorMode {
		carrier := cb.inj.generator.ArgsClass(cb.inj.info.Mixin, ret, cb.isAtReturn, cb.modifyingTypes()...)
		cb.ciClass = carrier.Name()
	} else {
		cb.ciClass = CallInfoClassName(ret)
	}
	return cb.ciClass
}

func (cb *callback) identifier() string {
	if cb.inj.identifier != "" {
		return cb.inj.identifier
	}
	return cb.target.Method.Name
}

// ---------------------------------------------------------------------------
// Descriptor validation
// ---------------------------------------------------------------------------

// checkDescriptor validates the handler descriptor against the target
// and the captures. Problems with the target parameters or the
// handler-info type are returned as errors; unsatisfied captures make
// the result false.
func (cb *callback) checkDescriptor(desc string) (bool, error) {
	args := bytecode.ArgumentTypes(desc)
	info := cb.inj.info

	invalid := func(msg string) error {
		return &injection.InvalidInjectionError{Info: info.String(), Msg: msg, Err: injection.ErrDescriptorInvalid}
	}
	plural := func(n int, many, one string) string {
		if n == 1 {
			return one
		}
		return many
	}

	i := 0
	for _, param := range cb.target.Arguments {
		if i >= len(args) || args[i] != param {
			return false, invalid(fmt.Sprintf("Invalid descriptor on %s! Target parameter%s missing/incorrect, expected %s",
				info, plural(len(cb.target.Arguments), "s are", " is"), argumentList(cb.target.Arguments)))
		}
		i++
	}

	ret := cb.target.ReturnType
	expected := bytecode.ObjectType(CallInfoClassName(ret))
	if i >= len(args) || args[i] != expected {
		other := bytecode.Void
		if ret == bytecode.Void {
			other = bytecode.Int
		}
		if i < len(args) && args[i] == bytecode.ObjectType(CallInfoClassName(other)) {
			return false, invalid(fmt.Sprintf("Invalid descriptor on %s! %s is required!", info, expected.SimpleName()))
		}
		found := "<nothing>"
		if i < len(args) {
			found = args[i].ClassName()
		}
		return false, invalid(fmt.Sprintf("Invalid descriptor on %s! Expected %s after target parameter%s but found %s",
			info, expected.ClassName(), plural(len(cb.target.Arguments), "s", ""), found))
	}
	i++

	for _, c := range cb.captures {
		if !c.Successful() || i >= len(args) || args[i] != c.Type {
			return false, nil
		}
		i++
	}
	return true, nil
}

func argumentList(args []bytecode.Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Descriptor()
	}
	return "(" + strings.Join(parts, "") + ")"
}

// ---------------------------------------------------------------------------
// Error method
// ---------------------------------------------------------------------------

// generateErrorMethod adds a method to the target class that throws an
// InjectionError carrying msg, and switches the callback to invoke it in
// place of the handler.
func (cb *callback) generateErrorMethod(msg string) *bytecode.MethodNode {
	cb.errorMode = true
	cb.modifiesLocals = false
	cb.usesCallbackInfo = cb.inj.cancellable

	class := cb.target.Class
	prefix := cb.handler.Name + errorMethodSuffix
	name := prefix + strconv.Itoa(len(class.MethodsNamedPrefix(prefix)))

	args := append(append([]bytecode.Type(nil), cb.target.Arguments...), bytecode.ObjectType(cb.callbackInfoClass()))
	access := bytecode.AccPrivate | bytecode.AccSynthetic | (cb.handler.Access & bytecode.AccStatic)
	m := class.VisitMethod(access, name, bytecode.MethodDescriptor(bytecode.Void, args...))
	m.Emit(
		bytecode.NewTypeInsn(bytecode.NEW, InjectionErrorClass),
		bytecode.NewInsn(bytecode.DUP),
		bytecode.NewLdcInsn(msg),
		bytecode.NewMethodInsn(bytecode.INVOKESPECIAL, InjectionErrorClass, constructorName, bytecode.MethodDescriptor(bytecode.Void, bytecode.StringType)),
		bytecode.NewInsn(bytecode.ATHROW),
	)
	bytecode.ComputeMaxs(m)
	return m
}
