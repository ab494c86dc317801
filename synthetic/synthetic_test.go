package synthetic

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/weave/pkg/bytecode"
)

type stubInfo struct {
	name   string
	loaded bool
}

func (s *stubInfo) Name() string { return s.name }
func (s *stubInfo) Mixin() string { return "demo/Mixin" }
func (s *stubInfo) IsLoaded() bool { return s.loaded }

// stubGenerator produces a class with a single void method for every name
// with its prefix.
type stubGenerator struct {
	prefix string
	calls  int
	broken bool
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(name string, shell *bytecode.ClassNode) bool {
	if !strings.HasPrefix(name, g.prefix) {
		return false
	}
	g.calls++
	shell.Visit(bytecode.Version, bytecode.AccPublic, name, "weave/lang/Object")
	m := shell.VisitMethod(bytecode.AccPublic, "run", "()V")
	if g.broken {
		m.Emit(bytecode.NewInsn(bytecode.POP))
	}
	m.Emit(bytecode.NewInsn(bytecode.RETURN))
	return true
}

type otherGenerator struct{}

func (otherGenerator) Name() string { return "other" }
func (otherGenerator) Generate(string, *bytecode.ClassNode) bool { return false }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubInfo{name: "b"})
	r.Register(&stubInfo{name: "a"})
	r.Register(&stubInfo{name: "b", loaded: true})

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if got := r.Names(); got[0] != "b" || got[1] != "a" {
		t.Errorf("Names() = %v, want [b a]", got)
	}
	info, ok := r.Lookup("b")
	if !ok || info.IsLoaded() {
		t.Error("first registration should win")
	}
	if _, ok := r.Lookup("zzz"); ok {
		t.Error("Lookup of unknown name should fail")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(&stubInfo{name: "same"})
		}()
	}
	wg.Wait()
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistrarFunc(t *testing.T) {
	var got string
	var reg Registrar = RegistrarFunc(func(info ClassInfo) { got = info.Name() })
	reg.Register(&stubInfo{name: "x"})
	if got != "x" {
		t.Errorf("registered %q, want x", got)
	}
}

func TestExtensionsLookup(t *testing.T) {
	stub := &stubGenerator{prefix: "gen/"}
	ext := NewExtensions(otherGenerator{}, stub)

	g, ok := Lookup[*stubGenerator](ext)
	if !ok || g != stub {
		t.Errorf("Lookup[*stubGenerator] = %v, %v", g, ok)
	}
	if _, ok := Lookup[otherGenerator](NewExtensions()); ok {
		t.Error("Lookup on empty extensions should fail")
	}

	shell := &bytecode.ClassNode{}
	if got := ext.Generate("gen/A", shell); got != stub {
		t.Errorf("Generate() used %v, want stub", got)
	}
	if ext.Generate("nope/A", &bytecode.ClassNode{}) != nil {
		t.Error("Generate() of unknown name should return nil")
	}
}

func TestLoaderLazy(t *testing.T) {
	stub := &stubGenerator{prefix: "gen/"}
	reg := NewRegistry()
	reg.Register(&stubInfo{name: "gen/A"})
	l := NewLoader(NewExtensions(stub), reg)

	lazy := l.Lazy("gen/A")
	if lazy.HasLoaded() || stub.calls != 0 {
		t.Fatal("class generated before first access")
	}
	c, err := l.Load("gen/A")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Name != "gen/A" || !lazy.HasLoaded() {
		t.Errorf("Load() = %s, loaded=%v", c.Name, lazy.HasLoaded())
	}
	if _, err := l.Load("gen/A"); err != nil || stub.calls != 1 {
		t.Errorf("second Load regenerated: calls = %d", stub.calls)
	}

	l.Reset()
	if _, err := l.Load("gen/A"); err != nil || stub.calls != 2 {
		t.Errorf("Load after Reset: calls = %d, want 2", stub.calls)
	}
}

func TestLoaderUnknown(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubInfo{name: "nope/A"})
	l := NewLoader(NewExtensions(&stubGenerator{prefix: "gen/"}), reg)

	if _, err := l.Load("gen/Unregistered"); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("Load(unregistered) error = %v, want ErrUnknownClass", err)
	}
	if _, err := l.Load("nope/A"); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("Load(no generator) error = %v, want ErrUnknownClass", err)
	}
}

func TestLoaderVerify(t *testing.T) {
	l := NewLoader(NewExtensions(&stubGenerator{prefix: "gen/", broken: true}), nil, WithVerify(true))
	_, err := l.Load("gen/Broken")
	var ve *bytecode.VerifyError
	if !errors.As(err, &ve) {
		t.Fatalf("Load() error = %v, want a VerifyError", err)
	}
}

func TestLoaderExport(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	reg.Register(&stubInfo{name: "gen/pkg/A"})
	reg.Register(&stubInfo{name: "gen/pkg/B"})
	l := NewLoader(NewExtensions(&stubGenerator{prefix: "gen/"}), reg, WithExportDir(dir))

	classes, err := l.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(classes) != 2 {
		t.Fatalf("LoadAll() returned %d classes, want 2", len(classes))
	}

	data, err := os.ReadFile(filepath.Join(dir, "gen", "pkg", "A.cbor"))
	if err != nil {
		t.Fatalf("exported class missing: %v", err)
	}
	c, err := bytecode.UnmarshalClass(data)
	if err != nil {
		t.Fatalf("UnmarshalClass: %v", err)
	}
	if c.Name != "gen/pkg/A" || c.Method("run", "()V") == nil {
		t.Errorf("exported class = %s", c.Disassemble())
	}
}
