// Package weaver applies the injections declared in a manifest to target
// classes. A Session owns the synthetic class generators shared by every
// class it weaves, so carriers and args classes are pooled across the
// whole run.
package weaver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/weave/callback"
	"github.com/chazu/weave/injection"
	"github.com/chazu/weave/invoke"
	"github.com/chazu/weave/logging"
	"github.com/chazu/weave/manifest"
	"github.com/chazu/weave/metrics"
	"github.com/chazu/weave/pkg/bytecode"
	"github.com/chazu/weave/synthetic"
)

// ErrNoTarget is returned when an injection matches no method or handler.
var ErrNoTarget = errors.New("no matching target")

// Session weaves classes against one manifest.
type Session struct {
	manifest *manifest.Manifest

	registry *synthetic.Registry
	ext      *synthetic.Extensions
	locals   *callback.LocalsGenerator
	args     *invoke.ArgsGenerator
	loader   *synthetic.Loader

	override callback.LocalCapture
	report   io.Writer
	jobs     int
	exportTo string

	registerer prometheus.Registerer
	metrics    *metrics.Collectors
	log        commonlog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithBehaviour forces every locals injection to use lc.
func WithBehaviour(lc callback.LocalCapture) Option {
	return func(s *Session) { s.override = lc }
}

// WithReport sets where print reports are written.
func WithReport(w io.Writer) Option {
	return func(s *Session) { s.report = w }
}

// WithJobs bounds how many classes are woven concurrently.
func WithJobs(n int) Option {
	return func(s *Session) { s.jobs = n }
}

// WithExportDir exports generated synthetic classes below dir, replacing
// the manifest's export directory.
func WithExportDir(dir string) Option {
	return func(s *Session) { s.exportTo = dir }
}

// WithRegisterer registers the session metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Session) { s.registerer = reg }
}

// WithLogger replaces the session logger. It is passed on to the
// injectors, generators and loader.
func WithLogger(log commonlog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// NewSession creates a session for m.
func NewSession(m *manifest.Manifest, opts ...Option) *Session {
	s := &Session{
		manifest: m,
		registry: synthetic.NewRegistry(),
		report:   os.Stdout,
		jobs:     runtime.GOMAXPROCS(0),
		exportTo: m.ExportDirPath(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registerer != nil {
		s.metrics = metrics.New(s.registerer)
	}

	pkg := m.Environment.SyntheticPackage
	genLog, loadLog := logging.Generator(), logging.Loader()
	if s.log != nil {
		genLog, loadLog = s.log, s.log
	} else {
		s.log = logging.Injector()
	}
	s.locals = callback.NewLocalsGenerator(s.registry,
		callback.WithSyntheticPackage(pkg),
		callback.WithGeneratorLogger(genLog),
		callback.WithGeneratorMetrics(s.metrics))
	s.args = invoke.NewArgsGenerator(s.registry,
		invoke.WithSyntheticPackage(pkg),
		invoke.WithGeneratorLogger(genLog),
		invoke.WithGeneratorMetrics(s.metrics))
	s.ext = synthetic.NewExtensions(s.locals, s.args)
	s.loader = synthetic.NewLoader(s.ext, s.registry,
		synthetic.WithVerify(m.Environment.Verify),
		synthetic.WithExportDir(s.exportTo),
		synthetic.WithLogger(loadLog))
	return s
}

// Registry returns the synthetic classes allocated so far.
func (s *Session) Registry() *synthetic.Registry { return s.registry }

// Loader returns the loader materialising synthetic classes.
func (s *Session) Loader() *synthetic.Loader { return s.loader }

// Result summarises the injections applied to one class.
type Result struct {
	Class *bytecode.ClassNode

	// Applied counts the injection sites handled, per handler name.
	Applied map[string]int
}

// Total returns the number of injection sites handled.
func (r *Result) Total() int {
	n := 0
	for _, c := range r.Applied {
		n += c
	}
	return n
}

// Weave applies every manifest injection targeting c. The class is
// modified in place.
func (s *Session) Weave(c *bytecode.ClassNode) (*Result, error) {
	res := &Result{Class: c, Applied: make(map[string]int)}
	for _, decl := range s.manifest.ForClass(c.Name) {
		n, err := s.apply(c, decl)
		if err != nil {
			return res, fmt.Errorf("%s: %w", decl, err)
		}
		res.Applied[decl.Handler] += n
	}
	if res.Total() > 0 && s.manifest.Environment.Verify {
		if err := bytecode.Verify(c); err != nil {
			return res, fmt.Errorf("woven class %s failed verification: %w", c.Name, err)
		}
	}
	s.log.Infof("wove %s: %d injection sites", c.Name, res.Total())
	return res, nil
}

// WeaveAll weaves independent classes concurrently. Results are returned
// in input order.
func (s *Session) WeaveAll(ctx context.Context, classes []*bytecode.ClassNode) ([]*Result, error) {
	results := make([]*Result, len(classes))
	g, gctx := errgroup.WithContext(ctx)
	if s.jobs > 0 {
		g.SetLimit(s.jobs)
	}
	for i, c := range classes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.Weave(c)
			results[i] = res
			return err
		})
	}
	return results, g.Wait()
}

// Synthetic materialises every synthetic class allocated by the session,
// exporting them when an export directory is configured.
func (s *Session) Synthetic() ([]*bytecode.ClassNode, error) {
	return s.loader.LoadAll()
}

func (s *Session) apply(c *bytecode.ClassNode, decl manifest.Injection) (int, error) {
	methods := targetMethods(c, decl)
	if len(methods) == 0 {
		return 0, fmt.Errorf("%w: %s has no method %s%s", ErrNoTarget, c.Name, decl.Method, decl.Desc)
	}
	handler, err := findHandler(c, decl)
	if err != nil {
		return 0, err
	}
	point, err := decl.Point()
	if err != nil {
		return 0, err
	}

	inject, err := s.injector(decl, handler, len(methods))
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range methods {
		target := injection.NewTarget(c, m)
		for _, insn := range point.Find(target) {
			if err := inject(target, injection.NewNode(insn)); err != nil {
				return n, err
			}
			n++
		}
	}
	if n == 0 {
		s.log.Warningf("%s matched no instructions at %s", decl, point)
	}
	return n, nil
}

type injectFunc func(*injection.Target, *injection.InjectionNode) error

func (s *Session) injector(decl manifest.Injection, handler *bytecode.MethodNode, targets int) (injectFunc, error) {
	if decl.Kind == manifest.KindModifyArgs {
		info := injection.NewInfo(decl.Mixin, invoke.Annotation, handler)
		info.TargetCount = targets
		inj, err := invoke.NewModifyArgsInjector(info, s.args,
			invoke.WithLogger(s.log),
			invoke.WithMetrics(s.metrics))
		if err != nil {
			return nil, err
		}
		return inj.Inject, nil
	}

	behaviour, err := s.manifest.Behaviour(decl)
	if err != nil {
		return nil, err
	}
	if s.override != callback.NoCapture {
		behaviour = s.override
	}
	info := injection.NewInfo(decl.Mixin, callback.Annotation, handler)
	info.TargetCount = targets
	inj, err := callback.NewInjector(info, s.locals,
		callback.Cancellable(decl.Cancellable),
		callback.Behaviour(behaviour),
		callback.Locals(decl.Requests()...),
		callback.ID(decl.ID),
		callback.WithReport(s.report),
		callback.WithLogger(s.log),
		callback.WithMetrics(s.metrics))
	if err != nil {
		return nil, err
	}
	return inj.Inject, nil
}

func targetMethods(c *bytecode.ClassNode, decl manifest.Injection) []*bytecode.MethodNode {
	if decl.Desc != "" {
		if m := c.Method(decl.Method, decl.Desc); m != nil {
			return []*bytecode.MethodNode{m}
		}
		return nil
	}
	return c.MethodsNamed(decl.Method)
}

func findHandler(c *bytecode.ClassNode, decl manifest.Injection) (*bytecode.MethodNode, error) {
	if decl.HandlerDesc != "" {
		if h := c.Method(decl.Handler, decl.HandlerDesc); h != nil {
			return h, nil
		}
		return nil, fmt.Errorf("%w: %s has no handler %s%s", ErrNoTarget, c.Name, decl.Handler, decl.HandlerDesc)
	}
	switch hs := c.MethodsNamed(decl.Handler); len(hs) {
	case 0:
		return nil, fmt.Errorf("%w: %s has no handler %s", ErrNoTarget, c.Name, decl.Handler)
	case 1:
		return hs[0], nil
	default:
		return nil, fmt.Errorf("handler %s is overloaded in %s, set handler-desc", decl.Handler, c.Name)
	}
}
