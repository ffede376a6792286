// ABOUTME: Levelled diagnostic logging with verbosity control
// ABOUTME: Always writes to stderr because stdout carries protocol data

package logger

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

var (
	verbose = false
	base    = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "insights",
	})
	l.SetLevel(log.DebugLevel)
	return l
}

// SetVerbose enables or disables verbose (DEBUG) logging
func SetVerbose(v bool) {
	verbose = v
}

// IsVerbose returns current verbose setting
func IsVerbose() bool {
	return verbose
}

// SetOutput sets the output destination for logs; nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		base.SetOutput(os.Stderr)
		return
	}
	base.SetOutput(w)
}

// Debug logs at DEBUG level (only shown when verbose)
func Debug(format string, args ...interface{}) {
	if verbose {
		base.Debugf(format, args...)
	}
}

// Info logs at INFO level (always shown)
func Info(format string, args ...interface{}) {
	base.Infof(format, args...)
}

// Warn logs at WARN level (always shown)
func Warn(format string, args ...interface{}) {
	base.Warnf(format, args...)
}

// Error logs at ERROR level (always shown)
func Error(format string, args ...interface{}) {
	base.Errorf(format, args...)
}
