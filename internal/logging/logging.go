// Package logging provides the level-prefixed logger used throughout the
// control plane. It wraps the standard library's log.Logger rather than
// pulling in a structured logging library, matching the teacher's own
// call-site logging style.
package logging

import (
	"io"
	"log"
	"os"
)

// Logger is a small level-prefixed wrapper around *log.Logger. The zero
// value is not usable; construct with New or Noop.
type Logger struct {
	std *log.Logger
}

// New returns a Logger writing to w with the given name prefixed to every
// line (e.g. "orchestrator", "watcher").
func New(w io.Writer, name string) *Logger {
	return &Logger{std: log.New(w, "["+name+"] ", log.LstdFlags)}
}

// Default returns a Logger writing to stderr.
func Default(name string) *Logger {
	return New(os.Stderr, name)
}

// Noop returns a Logger that discards everything, for tests that want to
// suppress log output.
func Noop() *Logger {
	return New(io.Discard, "")
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.std.Printf("DEBUG "+format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.std.Printf("INFO "+format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.std.Printf("WARN "+format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.std.Printf("ERROR "+format, args...)
}
