package invoke

import (
	"fmt"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/weave/injection"
	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/metrics"
	"github.com/chazu/weave/pkg/bytecode"
)

// Annotation names this injection kind in messages.
const Annotation = "@ModifyArgs"

// ModifyArgsInjector lets a handler rewrite the arguments of a method
// invocation in the target.
type ModifyArgsInjector struct {
	info *injection.Info
	gen  *ArgsGenerator

	log     commonlog.Logger
	metrics *metrics.Collectors
}

// Option configures a ModifyArgsInjector.
type Option func(*ModifyArgsInjector)

// WithLogger replaces the injector logger.
func WithLogger(log commonlog.Logger) Option {
	return func(i *ModifyArgsInjector) { i.log = log }
}

// WithMetrics records injection outcomes.
func WithMetrics(m *metrics.Collectors) Option {
	return func(i *ModifyArgsInjector) { i.metrics = m }
}

// NewModifyArgsInjector creates an injector for the handler described by
// info. Args classes are allocated from gen.
func NewModifyArgsInjector(info *injection.Info, gen *ArgsGenerator, opts ...Option) (*ModifyArgsInjector, error) {
	if gen == nil {
		return nil, &injection.InvalidInjectionError{Info: info.String(), Msg: "no args generator for " + info.String()}
	}
	inj := &ModifyArgsInjector{info: info, gen: gen, log: logging.Injector()}
	for _, opt := range opts {
		opt(inj)
	}
	return inj, nil
}

func (inj *ModifyArgsInjector) String() string {
	return inj.info.Handler.Name + inj.info.Handler.Desc
}

// Inject rewrites the invocation at node so that its arguments pass
// through the handler.
func (inj *ModifyArgsInjector) Inject(target *injection.Target, node *injection.InjectionNode) error {
	call := node.Current
	if call.Kind() != bytecode.KindMethod {
		inj.metrics.Injection(metrics.OutcomeFailed)
		return inj.invalid(fmt.Sprintf("%s injector %s targets %s, expected a method invocation", Annotation, inj, call))
	}
	handler := inj.info.Handler
	if target.IsStatic && !handler.IsStatic() {
		inj.metrics.Injection(metrics.OutcomeFailed)
		return inj.invalid(fmt.Sprintf("%s injector %s cannot instrument static target %s with an instance handler", Annotation, inj, target))
	}

	args := bytecode.ArgumentTypes(call.Desc)
	if len(args) == 0 {
		inj.metrics.Injection(metrics.OutcomeFailed)
		return inj.invalid(fmt.Sprintf("%s injector %s targets a method invocation %s%s with no arguments!", Annotation, inj, call.Name, call.Desc))
	}

	withArgs, err := inj.verifyTarget(target)
	if err != nil {
		inj.metrics.Injection(metrics.OutcomeFailed)
		return err
	}
	cls := inj.gen.ArgsClass(call.Desc, inj.info.Mixin).Name()

	insns := bytecode.NewInsnList()
	inj.packArgs(insns, cls, call.Desc, handler)
	if withArgs {
		slot := 0
		if !target.IsStatic {
			slot = 1
		}
		for _, a := range target.Arguments {
			insns.Add(bytecode.NewVarInsn(a.Opcode(bytecode.ILOAD), slot))
			slot += a.Size()
		}
	}
	insns.Add(bytecode.NewMethodInsn(invokeOpcode(handler), target.Class.Name, handler.Name, handler.Desc))
	unpackArgs(insns, cls, args)

	target.Insert(call, insns)
	inj.info.NotifyInjected(target)
	inj.metrics.Injection(metrics.OutcomeInjected)
	inj.log.Debugf("injected %s into %s before %s", handler.Name, target, call)
	return nil
}

func (inj *ModifyArgsInjector) invalid(msg string) error {
	return &injection.InvalidInjectionError{Info: inj.info.String(), Msg: msg, Err: injection.ErrDescriptorInvalid}
}

// verifyTarget checks the handler descriptor. It reports whether the
// handler also takes the target's arguments.
func (inj *ModifyArgsInjector) verifyTarget(target *injection.Target) (bool, error) {
	argsType := bytecode.ObjectType(ArgsClass)
	short := bytecode.MethodDescriptor(bytecode.Void, argsType)
	desc := inj.info.Handler.Desc
	if desc == short {
		return false, nil
	}
	long := bytecode.MethodDescriptor(bytecode.Void, append([]bytecode.Type{argsType}, target.Arguments...)...)
	if desc == long {
		return true, nil
	}
	return false, inj.invalid(fmt.Sprintf("%s injector %s has an invalid signature %s, expected %s or %s", Annotation, inj, desc, short, long))
}

// packArgs replaces the call arguments on the stack with an Args
// instance and leaves a second reference to it below the handler's
// receiver.
func (inj *ModifyArgsInjector) packArgs(insns *bytecode.InsnList, cls, desc string, handler *bytecode.MethodNode) {
	factory := bytecode.MethodDescriptor(bytecode.ObjectType(cls), bytecode.ArgumentTypes(desc)...)
	insns.Add(bytecode.NewMethodInsn(bytecode.INVOKESTATIC, cls, FactoryMethod, factory))
	insns.Add(bytecode.NewInsn(bytecode.DUP))
	if !handler.IsStatic() {
		insns.Add(bytecode.NewVarInsn(bytecode.ALOAD, 0))
		insns.Add(bytecode.NewInsn(bytecode.SWAP))
	}
}

// unpackArgs pushes the values held by the Args instance on top of the
// stack back in argument order, consuming the instance.
func unpackArgs(insns *bytecode.InsnList, cls string, args []bytecode.Type) {
	for i, t := range args {
		last := i == len(args)-1
		if !last {
			insns.Add(bytecode.NewInsn(bytecode.DUP))
		}
		insns.Add(bytecode.NewMethodInsn(bytecode.INVOKEVIRTUAL, cls, GetterPrefix+strconv.Itoa(i), bytecode.MethodDescriptor(t)))
		if last {
			continue
		}
		if t.Size() == 1 {
			insns.Add(bytecode.NewInsn(bytecode.SWAP))
		} else {
			insns.Add(bytecode.NewInsn(bytecode.DUP2_X1))
			insns.Add(bytecode.NewInsn(bytecode.POP2))
		}
	}
}

func invokeOpcode(handler *bytecode.MethodNode) bytecode.Opcode {
	switch {
	case handler.IsStatic():
		return bytecode.INVOKESTATIC
	case handler.IsPrivate():
		return bytecode.INVOKESPECIAL
	}
	return bytecode.INVOKEVIRTUAL
}
