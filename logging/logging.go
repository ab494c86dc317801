// Package logging names the loggers used across weave and configures the
// commonlog backend.
package logging

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
)

// Logger names. Each component logs under its own name so verbosity can be
// raised per component.
const (
	InjectorName  = "weave.injector"
	GeneratorName = "weave.generator"
	LoaderName    = "weave.loader"
	CLIName       = "weave.cli"
)

// Injector returns the logger for injection rewriting.
func Injector() commonlog.Logger { return commonlog.GetLogger(InjectorName) }

// Generator returns the logger for synthetic class generation.
func Generator() commonlog.Logger { return commonlog.GetLogger(GeneratorName) }

// Loader returns the logger for synthetic class loading.
func Loader() commonlog.Logger { return commonlog.GetLogger(LoaderName) }

// CLI returns the logger for the command line front end.
func CLI() commonlog.Logger { return commonlog.GetLogger(CLIName) }

// Configure sets the backend verbosity and optional log file. A backend
// must have been registered (for example by importing
// github.com/tliron/commonlog/simple); otherwise this is a no-op.
func Configure(verbosity int, path string) {
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

// ---------------------------------------------------------------------------
// Recorder: an in-memory Logger
// ---------------------------------------------------------------------------

// Entry is one recorded log line.
type Entry struct {
	Level   commonlog.Level
	Message string
}

// Recorder is a Logger that keeps formatted messages in memory. Levels
// above the max level are dropped. It is safe for concurrent use.
type Recorder struct {
	commonlog.MockLogger

	mu      sync.Mutex
	max     commonlog.Level
	entries []Entry
}

// NewRecorder creates a recorder keeping every level.
func NewRecorder() *Recorder {
	return &Recorder{max: commonlog.Debug}
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// At returns the messages recorded at level.
func (r *Recorder) At(level commonlog.Level) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func (r *Recorder) record(level commonlog.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if level > r.max {
		return
	}
	r.entries = append(r.entries, Entry{Level: level, Message: message})
}

func (r *Recorder) AllowLevel(level commonlog.Level) bool { return level <= r.GetMaxLevel() }

func (r *Recorder) GetMaxLevel() commonlog.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max
}

func (r *Recorder) SetMaxLevel(level commonlog.Level) {
	r.mu.Lock()
	r.max = level
	r.mu.Unlock()
}

func (r *Recorder) Log(level commonlog.Level, depth int, message string, keysAndValues ...any) {
	r.record(level, message)
}

func (r *Recorder) Logf(level commonlog.Level, depth int, format string, args ...any) {
	r.record(level, fmt.Sprintf(format, args...))
}

func (r *Recorder) Critical(message string, keysAndValues ...any) { r.record(commonlog.Critical, message) }
func (r *Recorder) Criticalf(format string, args ...any) {
	r.record(commonlog.Critical, fmt.Sprintf(format, args...))
}
func (r *Recorder) Error(message string, keysAndValues ...any) { r.record(commonlog.Error, message) }
func (r *Recorder) Errorf(format string, args ...any) {
	r.record(commonlog.Error, fmt.Sprintf(format, args...))
}
func (r *Recorder) Warning(message string, keysAndValues ...any) { r.record(commonlog.Warning, message) }
func (r *Recorder) Warningf(format string, args ...any) {
	r.record(commonlog.Warning, fmt.Sprintf(format, args...))
}
func (r *Recorder) Notice(message string, keysAndValues ...any) { r.record(commonlog.Notice, message) }
func (r *Recorder) Noticef(format string, args ...any) {
	r.record(commonlog.Notice, fmt.Sprintf(format, args...))
}
func (r *Recorder) Info(message string, keysAndValues ...any) { r.record(commonlog.Info, message) }
func (r *Recorder) Infof(format string, args ...any) {
	r.record(commonlog.Info, fmt.Sprintf(format, args...))
}
func (r *Recorder) Debug(message string, keysAndValues ...any) { r.record(commonlog.Debug, message) }
func (r *Recorder) Debugf(format string, args ...any) {
	r.record(commonlog.Debug, fmt.Sprintf(format, args...))
}
