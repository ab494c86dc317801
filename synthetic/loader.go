package synthetic

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/pkg/bytecode"
)

// ErrUnknownClass is returned when no generator can produce a class.
var ErrUnknownClass = errors.New("unknown synthetic class")

// ---------------------------------------------------------------------------
// Lazy: deferred class node
// ---------------------------------------------------------------------------

// Lazy is a class node that is produced on first access.
type Lazy struct {
	mu       sync.Mutex
	supplier func() (*bytecode.ClassNode, error)
	node     *bytecode.ClassNode
	err      error
	loaded   bool
}

// NewLazy wraps supplier. The supplier runs at most once.
func NewLazy(supplier func() (*bytecode.ClassNode, error)) *Lazy {
	return &Lazy{supplier: supplier}
}

// HasLoaded reports whether the supplier has run.
func (l *Lazy) HasLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Get returns the class node, running the supplier if needed.
func (l *Lazy) Get() (*bytecode.ClassNode, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		l.node, l.err = l.supplier()
		l.loaded = true
	}
	return l.node, l.err
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// Loader materialises registered synthetic classes through the generator
// extensions. Classes are generated lazily and cached until Reset.
type Loader struct {
	ext       *Extensions
	registry  *Registry
	verify    bool
	exportDir string
	log       commonlog.Logger

	mu      sync.Mutex
	classes map[string]*Lazy
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithVerify runs bytecode verification on every generated class.
func WithVerify(verify bool) LoaderOption {
	return func(l *Loader) { l.verify = verify }
}

// WithExportDir writes every generated class, CBOR encoded, below dir.
func WithExportDir(dir string) LoaderOption {
	return func(l *Loader) { l.exportDir = dir }
}

// WithLogger replaces the loader logger.
func WithLogger(log commonlog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader creates a loader. When registry is non-nil only registered
// names can be loaded.
func NewLoader(ext *Extensions, registry *Registry, opts ...LoaderOption) *Loader {
	l := &Loader{
		ext:      ext,
		registry: registry,
		log:      logging.Loader(),
		classes:  make(map[string]*Lazy),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lazy returns the deferred node for name without generating it.
func (l *Loader) Lazy(name string) *Lazy {
	l.mu.Lock()
	defer l.mu.Unlock()
	lazy, ok := l.classes[name]
	if !ok {
		lazy = NewLazy(func() (*bytecode.ClassNode, error) { return l.generate(name) })
		l.classes[name] = lazy
	}
	return lazy
}

// Load returns the generated class called name.
func (l *Loader) Load(name string) (*bytecode.ClassNode, error) {
	return l.Lazy(name).Get()
}

// LoadAll loads every registered class in registration order.
func (l *Loader) LoadAll() ([]*bytecode.ClassNode, error) {
	if l.registry == nil {
		return nil, nil
	}
	var out []*bytecode.ClassNode
	for _, name := range l.registry.Names() {
		c, err := l.Load(name)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Reset drops every materialised class. The next Load regenerates it.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Debugf("resetting %d synthetic classes", len(l.classes))
	l.classes = make(map[string]*Lazy)
}

func (l *Loader) generate(name string) (*bytecode.ClassNode, error) {
	if l.registry != nil {
		if _, ok := l.registry.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %s is not registered", ErrUnknownClass, name)
		}
	}
	shell := &bytecode.ClassNode{}
	g := l.ext.Generate(name, shell)
	if g == nil {
		return nil, fmt.Errorf("%w: no generator for %s", ErrUnknownClass, name)
	}
	l.log.Debugf("generated %s with %s generator", name, g.Name())

	if l.verify {
		if err := bytecode.Verify(shell); err != nil {
			return nil, fmt.Errorf("synthetic class %s failed verification: %w", name, err)
		}
	}
	if l.exportDir != "" {
		if err := l.export(shell); err != nil {
			return nil, err
		}
	}
	return shell, nil
}

func (l *Loader) export(c *bytecode.ClassNode) error {
	data, err := bytecode.MarshalClass(c)
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", c.Name, err)
	}
	path := filepath.Join(l.exportDir, filepath.FromSlash(c.Name)+".cbor")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
