package callback

import (
	"fmt"
	"strings"

	"github.com/chazu/weave/pkg/bytecode"
)

// Runtime classes and annotations the rewritten code refers to.
const (
	CallbackInfoClass           = "weave/callback/CallbackInfo"
	CallbackInfoReturnableClass = "weave/callback/CallbackInfoReturnable"
	InjectionErrorClass         = "weave/injection/InjectionError"

	// ModifyAnnotation marks a captured handler parameter whose final value
	// is written back into the target's local.
	ModifyAnnotation = "weave/callback/Modify"

	// ModificationsCaught is the invisible marker placed on a handler once
	// its returns have been instrumented with the write-back.
	ModificationsCaught = "weave/callback/ModificationsCaught"

	// Annotation names this injection kind in messages.
	Annotation = "@InjectWithLocals"
)

// Handler-info runtime methods.
const (
	isCancelledMethod  = "isCancelled"
	returnValuePrefix  = "getReturnValue"
	constructorName    = "<init>"
	errorMethodSuffix  = "$missingLocals"
	ciConstructorNoVal = "(Lweave/lang/String;Z)V"
)

// CallInfoClassName returns the handler-info base class for a target
// returning ret.
func CallInfoClassName(ret bytecode.Type) string {
	if ret == bytecode.Void {
		return CallbackInfoClass
	}
	return CallbackInfoReturnableClass
}

// ConstructorDescriptor returns the handler-info constructor descriptor.
// With useReturn the constructor takes the return value as a third
// argument, typed as the primitive itself or as Object for references.
func ConstructorDescriptor(ret bytecode.Type, useReturn bool) string {
	if !useReturn || ret == bytecode.Void {
		return ciConstructorNoVal
	}
	return bytecode.MethodDescriptor(bytecode.Void, bytecode.StringType, bytecode.Boolean, valueType(ret))
}

// ReturnAccessor returns the name and descriptor of the typed accessor for
// the stored return value.
func ReturnAccessor(ret bytecode.Type) (name, desc string) {
	if ret.IsReference() {
		return returnValuePrefix, bytecode.MethodDescriptor(bytecode.ObjectRoot)
	}
	return returnValuePrefix + ret.Descriptor(), bytecode.MethodDescriptor(ret)
}

func valueType(t bytecode.Type) bytecode.Type {
	if t.IsReference() {
		return bytecode.ObjectRoot
	}
	return t
}

// ---------------------------------------------------------------------------
// LocalCapture
// ---------------------------------------------------------------------------

// LocalCapture selects how an injector reacts when locals cannot be
// captured.
type LocalCapture uint8

const (
	// NoCapture is invalid for local-capturing injectors.
	NoCapture LocalCapture = iota

	// Print renders the live locals report instead of injecting.
	Print

	// CaptureFailSoft logs a warning and skips the injection.
	CaptureFailSoft

	// CaptureFailHard aborts with an InjectionError.
	CaptureFailHard

	// CaptureFailException injects a call that throws at run time.
	CaptureFailException
)

var localCaptureNames = [...]string{
	NoCapture:            "no-capture",
	Print:                "print",
	CaptureFailSoft:      "capture-failsoft",
	CaptureFailHard:      "capture-failhard",
	CaptureFailException: "capture-failexception",
}

func (lc LocalCapture) String() string {
	if int(lc) < len(localCaptureNames) {
		return localCaptureNames[lc]
	}
	return fmt.Sprintf("LocalCapture(%d)", lc)
}

// ParseLocalCapture accepts "capture-failhard", "CAPTURE_FAILHARD" and
// similar spellings. The empty string selects CaptureFailHard.
func ParseLocalCapture(s string) (LocalCapture, error) {
	if s == "" {
		return CaptureFailHard, nil
	}
	norm := strings.ReplaceAll(strings.ToLower(s), "_", "-")
	for i, name := range localCaptureNames {
		if name == norm {
			return LocalCapture(i), nil
		}
	}
	return NoCapture, fmt.Errorf("unknown local capture behaviour %q", s)
}
