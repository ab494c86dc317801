// Package synthetic manages classes that exist only at instrumentation
// time: generators that fill empty class shells on demand, the registry
// of allocated synthetic class names, and a loader that materialises them
// lazily.
package synthetic

import (
	"sync"

	"github.com/chazu/weave/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

// Generator produces the contents of synthetic classes it has allocated.
type Generator interface {
	// Name identifies the generator in logs and metrics.
	Name() string

	// Generate fills shell with the members of the class called name.
	// It returns false when name was not allocated by this generator.
	Generate(name string, shell *bytecode.ClassNode) bool
}

// ---------------------------------------------------------------------------
// Class info and registration
// ---------------------------------------------------------------------------

// ClassInfo describes an allocated synthetic class.
type ClassInfo interface {
	// Name is the internal class name.
	Name() string

	// Mixin is the owner that first requested the class.
	Mixin() string

	// IsLoaded reports whether the class has been generated at least once.
	IsLoaded() bool
}

// Registrar accepts newly allocated synthetic classes.
type Registrar interface {
	Register(info ClassInfo)
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(ClassInfo)

// Register calls f(info).
func (f RegistrarFunc) Register(info ClassInfo) { f(info) }

// Registry is a thread-safe Registrar that remembers registration order.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]ClassInfo
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]ClassInfo)}
}

// Register records info. Registering a name twice keeps the first info.
func (r *Registry) Register(info ClassInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[info.Name()]; ok {
		return
	}
	r.byName[info.Name()] = info
	r.order = append(r.order, info.Name())
}

// Lookup returns the info registered under name.
func (r *Registry) Lookup(name string) (ClassInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byName[name]
	return info, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ---------------------------------------------------------------------------
// Extensions
// ---------------------------------------------------------------------------

// Extensions is the ordered set of generators available to a loader.
type Extensions struct {
	generators []Generator
}

// NewExtensions creates a set holding gens in order.
func NewExtensions(gens ...Generator) *Extensions {
	return &Extensions{generators: append([]Generator(nil), gens...)}
}

// Add appends a generator.
func (e *Extensions) Add(g Generator) {
	e.generators = append(e.generators, g)
}

// Generators returns the generators in order.
func (e *Extensions) Generators() []Generator {
	return append([]Generator(nil), e.generators...)
}

// Generate asks each generator in turn to fill shell for name and returns
// the generator that did, or nil.
func (e *Extensions) Generate(name string, shell *bytecode.ClassNode) Generator {
	for _, g := range e.generators {
		if g.Generate(name, shell) {
			return g
		}
	}
	return nil
}

// Lookup returns the first generator of type T.
func Lookup[T Generator](e *Extensions) (T, bool) {
	for _, g := range e.generators {
		if t, ok := g.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}
