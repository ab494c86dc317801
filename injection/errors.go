package injection

import "errors"

// Error kinds. Concrete errors wrap one of these so callers can test with
// errors.Is.
var (
	// ErrResolutionAmbiguous: implicit capture with more than one local of
	// the requested type.
	ErrResolutionAmbiguous = errors.New("ambiguous local")

	// ErrResolutionNotFound: no local satisfies the capture criteria.
	ErrResolutionNotFound = errors.New("local not found")

	// ErrTypeMismatch: a local was found but its type differs from the
	// handler parameter.
	ErrTypeMismatch = errors.New("local type mismatch")

	// ErrTooManyRequests: more capture requests than extra handler
	// parameters.
	ErrTooManyRequests = errors.New("too many local requests")

	// ErrDescriptorInvalid: the handler descriptor does not fit the
	// target.
	ErrDescriptorInvalid = errors.New("invalid handler descriptor")
)

// InvalidInjectionError reports an author error in an injection
// declaration. It is fatal for the injector that raised it.
type InvalidInjectionError struct {
	// Info describes the injection declaration.
	Info string
	Msg  string
	Err  error
}

func (e *InvalidInjectionError) Error() string { return e.Msg }

func (e *InvalidInjectionError) Unwrap() error { return e.Err }

// InjectionError reports a failure to apply an otherwise valid injection.
type InjectionError struct {
	Info string
	Msg  string
	Err  error
}

func (e *InjectionError) Error() string { return e.Msg }

func (e *InjectionError) Unwrap() error { return e.Err }
