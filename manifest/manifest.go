// Package manifest handles weave.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/weave/callback"
	"github.com/chazu/weave/injection"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "weave.toml"

// DefaultSyntheticPackage is where carriers and args classes are allocated
// when the manifest does not say otherwise.
const DefaultSyntheticPackage = "weave/synthetic"

// Injection kinds.
const (
	KindLocals     = "locals"
	KindModifyArgs = "modify-args"
)

// Manifest represents a weave.toml project configuration.
type Manifest struct {
	Project     Project     `toml:"project"`
	Environment Environment `toml:"environment"`
	Injections  []Injection `toml:"injection"`

	// Dir is the directory containing the weave.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Mixin string `toml:"mixin"`
}

// Environment configures the injection environment shared by every
// injection in the project.
type Environment struct {
	SyntheticPackage string `toml:"synthetic-package"`
	Verify           bool   `toml:"verify"`
	ExportDir        string `toml:"export-dir"`
	Verbosity        int    `toml:"verbosity"`
	DefaultBehaviour string `toml:"default-behaviour"`
}

// Injection describes one handler applied to one target method.
type Injection struct {
	Kind        string      `toml:"kind"`
	Class       string      `toml:"class"`
	Method      string      `toml:"method"`
	Desc        string      `toml:"desc"`
	Handler     string      `toml:"handler"`
	HandlerDesc string      `toml:"handler-desc"`
	Mixin       string      `toml:"mixin"`
	At          string      `toml:"at"`
	Cancellable bool        `toml:"cancellable"`
	Behaviour   string      `toml:"behaviour"`
	ID          string      `toml:"id"`
	Locals      []LocalSpec `toml:"locals"`
}

// LocalSpec is the TOML form of a local capture request. Absent criteria
// stay unset.
type LocalSpec struct {
	Ordinal *int     `toml:"ordinal"`
	Index   *int     `toml:"index"`
	Name    []string `toml:"name"`
}

// Load parses a weave.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text, applies defaults and validates every
// injection entry.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	// Defaults
	if m.Environment.SyntheticPackage == "" {
		m.Environment.SyntheticPackage = DefaultSyntheticPackage
	}
	if m.Environment.DefaultBehaviour == "" {
		m.Environment.DefaultBehaviour = callback.CaptureFailHard.String()
	}
	if m.Project.Mixin == "" {
		m.Project.Mixin = MixinName(m.Project.Name)
	}
	if _, err := callback.ParseLocalCapture(m.Environment.DefaultBehaviour); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	var errs []error
	for i := range m.Injections {
		inj := &m.Injections[i]
		if inj.Kind == "" {
			inj.Kind = KindLocals
		}
		if inj.Mixin == "" {
			inj.Mixin = m.Project.Mixin
		}
		if err := inj.validate(); err != nil {
			errs = append(errs, fmt.Errorf("injection %d (%s): %w", i, inj, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a weave.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ExportDirPath returns the absolute export directory, or "" when
// generated classes are not exported.
func (m *Manifest) ExportDirPath() string {
	if m.Environment.ExportDir == "" {
		return ""
	}
	if filepath.IsAbs(m.Environment.ExportDir) {
		return m.Environment.ExportDir
	}
	return filepath.Join(m.Dir, m.Environment.ExportDir)
}

// ForClass returns the injections targeting class, in manifest order.
func (m *Manifest) ForClass(class string) []Injection {
	var out []Injection
	for _, inj := range m.Injections {
		if inj.Class == class {
			out = append(out, inj)
		}
	}
	return out
}

// Behaviour returns the capture behaviour of inj, falling back to the
// environment default.
func (m *Manifest) Behaviour(inj Injection) (callback.LocalCapture, error) {
	if inj.Behaviour != "" {
		return callback.ParseLocalCapture(inj.Behaviour)
	}
	return callback.ParseLocalCapture(m.Environment.DefaultBehaviour)
}

// ---------------------------------------------------------------------------
// Injection helpers
// ---------------------------------------------------------------------------

func (inj Injection) String() string {
	return fmt.Sprintf("%s %s::%s%s -> %s", inj.Kind, inj.Class, inj.Method, inj.Desc, inj.Handler)
}

func (inj Injection) validate() error {
	switch inj.Kind {
	case KindLocals, KindModifyArgs:
	default:
		return fmt.Errorf("unknown kind %q", inj.Kind)
	}
	if inj.Class == "" || inj.Method == "" || inj.Handler == "" {
		return errors.New("class, method and handler are required")
	}
	if IsRuntimeClass(inj.Class) {
		return fmt.Errorf("%s is a runtime class", inj.Class)
	}
	if inj.Behaviour != "" {
		if _, err := callback.ParseLocalCapture(inj.Behaviour); err != nil {
			return err
		}
	}
	if _, err := inj.Point(); err != nil {
		return err
	}
	if inj.Kind == KindModifyArgs {
		if len(inj.Locals) > 0 || inj.Cancellable {
			return errors.New("modify-args injections take no locals and cannot be cancellable")
		}
		if !strings.HasPrefix(inj.At, "INVOKE:") {
			return fmt.Errorf("modify-args injections need an INVOKE point, got %q", inj.At)
		}
	}
	for i, l := range inj.Locals {
		if (l.Ordinal != nil && *l.Ordinal < 0) || (l.Index != nil && *l.Index < 0) {
			return fmt.Errorf("local %d: ordinal and index must not be negative", i)
		}
	}
	return nil
}

// Point parses the injection point.
func (inj Injection) Point() (injection.Point, error) {
	return injection.ParsePoint(inj.At)
}

// Requests converts the local specs into capture requests.
func (inj Injection) Requests() []callback.Local {
	if len(inj.Locals) == 0 {
		return nil
	}
	out := make([]callback.Local, len(inj.Locals))
	for i, l := range inj.Locals {
		out[i] = l.Local()
	}
	return out
}

// Local converts l into a capture request.
func (l LocalSpec) Local() callback.Local {
	req := callback.ByName(l.Name...)
	if l.Ordinal != nil {
		req.Ordinal = *l.Ordinal
	}
	if l.Index != nil {
		req.Index = *l.Index
	}
	return req
}
