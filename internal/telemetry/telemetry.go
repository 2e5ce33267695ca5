// Package telemetry is the engine's logger: a plain stdlib log.Logger with
// a bracketed-tag convention ("[SYMBOL] message", "[ENTRY] ...") and a
// bounded in-memory tail for the dashboard's recent-activity panel.
package telemetry

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Logger writes timestamped, tagged lines to an underlying *log.Logger. The
// zero value is not usable; construct with New.
type Logger struct {
	std *log.Logger

	mu      sync.Mutex
	recent  []string
	maxKept int
}

// New creates a Logger writing to os.Stdout with date and second-resolution
// time stamps (log.LstdFlags), and
// keeping the last maxKept formatted lines in memory for the dashboard's
// recent-activity panel (0 disables retention).
func New(maxKept int) *Logger {
	return &Logger{
		std:     log.New(os.Stdout, "", log.LstdFlags),
		maxKept: maxKept,
	}
}

// Infof logs an informational line tagged with tag (e.g. a symbol or
// subsystem name such as "ENTRY", "RECONCILE", "SCREENER").
func (l *Logger) Infof(tag, format string, args ...any) {
	l.emit(tag, format, args...)
}

// Warnf logs a line prefixed with a warning marker, same tagging convention.
func (l *Logger) Warnf(tag, format string, args ...any) {
	l.emit(tag, "WARN "+format, args...)
}

// Errorf logs a line prefixed with an error marker.
func (l *Logger) Errorf(tag, format string, args ...any) {
	l.emit(tag, "ERROR "+format, args...)
}

func (l *Logger) emit(tag, format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...))
	l.std.Println(msg)

	if l.maxKept <= 0 {
		return
	}
	l.mu.Lock()
	l.recent = append(l.recent, msg)
	if len(l.recent) > l.maxKept {
		l.recent = l.recent[len(l.recent)-l.maxKept:]
	}
	l.mu.Unlock()
}

// Recent returns a copy of the most recently logged lines, newest last.
func (l *Logger) Recent() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.recent))
	copy(out, l.recent)
	return out
}
