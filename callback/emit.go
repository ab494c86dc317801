package callback

import (
	"strconv"

	"github.com/chazu/weave/pkg/bytecode"
)

// emit builds the instructions inserted before the injection node.
func (cb *callback) emit(handler *bytecode.MethodNode) {
	cb.prepareCallbackInfo()
	cb.invokeCallback(handler)
	cb.injectCancellationCode()
	cb.readBackLocals()
}

func (cb *callback) add(insns ...*bytecode.Insn) {
	for _, insn := range insns {
		cb.insns.Add(insn)
	}
}

// prepareCallbackInfo stores the handler-info in a new local when it is
// needed after the handler returns.
func (cb *callback) prepareCallbackInfo() {
	if !cb.usesCallbackInfo {
		return
	}
	cb.createCallbackInfo()
	cb.marshalVar = cb.target.AllocateLocal(1)
	cb.add(bytecode.NewVarInsn(bytecode.ASTORE, cb.marshalVar))
}

// createCallbackInfo pushes a new handler-info. At a return site of a
// non-void target the pending return value is copied into a local first
// and passed to the constructor.
func (cb *callback) createCallbackInfo() {
	ret := cb.target.ReturnType
	useReturn := cb.isAtReturn && ret != bytecode.Void
	if useReturn && cb.returnVar < 0 {
		dup := bytecode.DUP
		if ret.Size() == 2 {
			dup = bytecode.DUP2
		}
		cb.returnVar = cb.target.AllocateLocal(ret.Size())
		cb.add(
			bytecode.NewInsn(dup),
			bytecode.NewVarInsn(ret.Opcode(bytecode.ISTORE), cb.returnVar),
		)
	}

	ci := cb.callbackInfoClass()
	cancellable := bytecode.ICONST_0
	if cb.inj.cancellable {
		cancellable = bytecode.ICONST_1
	}
	cb.add(
		bytecode.NewTypeInsn(bytecode.NEW, ci),
		bytecode.NewInsn(bytecode.DUP),
		bytecode.NewLdcInsn(cb.identifier()),
		bytecode.NewInsn(cancellable),
	)
	if useReturn {
		cb.add(bytecode.NewVarInsn(ret.Opcode(bytecode.ILOAD), cb.returnVar))
	}
	cb.add(bytecode.NewMethodInsn(bytecode.INVOKESPECIAL, ci, constructorName, ConstructorDescriptor(ret, useReturn)))
}

// invokeCallback pushes the receiver, the target arguments, the
// handler-info and the captured locals, then calls handler.
func (cb *callback) invokeCallback(handler *bytecode.MethodNode) {
	if !handler.IsStatic() {
		cb.add(bytecode.NewVarInsn(bytecode.ALOAD, 0))
	}

	slot := 0
	if !cb.target.IsStatic {
		slot = 1
	}
	for _, arg := range cb.target.Arguments {
		cb.add(bytecode.NewVarInsn(arg.Opcode(bytecode.ILOAD), slot))
		slot += arg.Size()
	}

	if cb.marshalVar >= 0 {
		cb.add(bytecode.NewVarInsn(bytecode.ALOAD, cb.marshalVar))
	} else {
		cb.createCallbackInfo()
	}

	if !cb.errorMode {
		for _, c := range cb.captures {
			cb.add(bytecode.NewVarInsn(c.Type.Opcode(bytecode.ILOAD), c.Slot))
		}
	}

	op := bytecode.INVOKEVIRTUAL
	switch {
	case handler.IsStatic():
		op = bytecode.INVOKESTATIC
	case handler.IsPrivate():
		op = bytecode.INVOKESPECIAL
	}
	cb.add(bytecode.NewMethodInsn(op, cb.target.Class.Name, handler.Name, handler.Desc))

	if cb.modifiesLocals && !cb.errorMode {
		cb.instrumentHandlerReturns()
	}
}

// instrumentHandlerReturns makes the handler copy its @Modify parameters
// into the carrier before each return. The handler is marked so that the
// copy is inserted only once.
func (cb *callback) instrumentHandlerReturns() {
	h := cb.handler
	if h.HasMarker(ModificationsCaught) {
		return
	}
	carrier := cb.callbackInfoClass()
	ciSlot := cb.callbackInfoSlot()
	setter := bytecode.MethodDescriptor(bytecode.Void, cb.modifyingTypes()...)

	for _, insn := range h.Instructions.Slice() {
		if !insn.Op.IsReturn() {
			continue
		}
		list := bytecode.NewInsnList(
			bytecode.NewVarInsn(bytecode.ALOAD, ciSlot),
			bytecode.NewTypeInsn(bytecode.CHECKCAST, carrier),
		)
		slot := ciSlot + 1
		for _, c := range cb.captures {
			if c.Modifying {
				list.Add(bytecode.NewVarInsn(c.Type.Opcode(bytecode.ILOAD), slot))
			}
			slot += c.Type.Size()
		}
		list.Add(bytecode.NewMethodInsn(bytecode.INVOKEVIRTUAL, carrier, SetLocalsMethod, setter))
		h.Instructions.InsertBefore(insn, list)
	}
	h.Mark(ModificationsCaught)
	bytecode.ComputeMaxs(h)
}

// injectCancellationCode returns early from the target when the handler
// cancelled the call, returning the stored value for non-void targets.
func (cb *callback) injectCancellationCode() {
	if !cb.inj.cancellable {
		return
	}
	ci := cb.callbackInfoClass()
	resume := bytecode.NewLabel()
	cb.add(
		bytecode.NewVarInsn(bytecode.ALOAD, cb.marshalVar),
		bytecode.NewMethodInsn(bytecode.INVOKEVIRTUAL, ci, isCancelledMethod, "()Z"),
		bytecode.NewJumpInsn(bytecode.IFEQ, resume),
	)

	ret := cb.target.ReturnType
	if ret != bytecode.Void {
		name, desc := ReturnAccessor(ret)
		cb.add(
			bytecode.NewVarInsn(bytecode.ALOAD, cb.marshalVar),
			bytecode.NewMethodInsn(bytecode.INVOKEVIRTUAL, ci, name, desc),
		)
		if ret.IsReference() && ret != bytecode.ObjectRoot {
			cb.add(bytecode.NewTypeInsn(bytecode.CHECKCAST, ret.InternalName()))
		}
	}
	cb.add(bytecode.NewInsn(ret.Opcode(bytecode.IRETURN)), resume)
}

// readBackLocals stores the values the handler left in the carrier back
// into the target's slots.
func (cb *callback) readBackLocals() {
	if !cb.modifiesLocals || cb.errorMode {
		return
	}
	carrier := cb.callbackInfoClass()
	k := 0
	for _, c := range cb.captures {
		if !c.Modifying {
			continue
		}
		cb.add(
			bytecode.NewVarInsn(bytecode.ALOAD, cb.marshalVar),
			bytecode.NewMethodInsn(bytecode.INVOKEVIRTUAL, carrier, GetLocalPrefix+strconv.Itoa(k), bytecode.MethodDescriptor(c.Type)),
			bytecode.NewVarInsn(c.Type.Opcode(bytecode.ISTORE), c.Slot),
		)
		k++
	}
}
