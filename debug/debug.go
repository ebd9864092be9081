// Package debug provides category scoped debug logging for the kernel.
//
// Each subsystem logs under a single letter flag. Flags are off by
// default and enabled with SetFlags, typically from the -d command line
// option. Messages go through a shared logrus logger so the output
// format and destination can be controlled in one place (and captured
// by tests with a hook).
package debug

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Flag identifies a debug category.
type Flag byte

// Debug categories, one per kernel subsystem.
const (
	Thread    Flag = 't' // thread lifecycle
	Sched     Flag = 'z' // scheduler queue and dispatch events
	Interrupt Flag = 'i' // interrupt level changes and timer
	File      Flag = 'f' // file system operations
	Disk      Flag = 'd' // raw sector I/O
)

var (
	logger  = newLogger()
	enabled = map[Flag]bool{}
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return l
}

// Logger returns the shared logger so callers can adjust its output or
// attach hooks.
func Logger() *logrus.Logger {
	return logger
}

// SetFlags enables the categories named in spec, one letter per
// category. "+" enables everything.
func SetFlags(spec string) {
	enabled = map[Flag]bool{}
	if strings.Contains(spec, "+") {
		for _, f := range []Flag{Thread, Sched, Interrupt, File, Disk} {
			enabled[f] = true
		}
		return
	}
	for i := 0; i < len(spec); i++ {
		enabled[Flag(spec[i])] = true
	}
}

// Enabled reports whether the category is switched on.
func Enabled(f Flag) bool {
	return enabled[f]
}

// Logf logs a message under the given category if it is enabled.
func Logf(f Flag, format string, args ...interface{}) {
	if !enabled[f] {
		return
	}
	logger.WithField("flag", string(f)).Debug(fmt.Sprintf(format, args...))
}

// Assert panics if the condition does not hold. It is the moral
// equivalent of a kernel panic: the caller has detected a broken
// invariant and continuing would corrupt state. The message names the
// call site so the failure can be located without a stack trace.
func Assert(condition bool, format string, args ...interface{}) {
	if condition {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if _, file, line, ok := runtime.Caller(1); ok {
		msg = fmt.Sprintf("%s:%d: %s", file, line, msg)
	}
	logger.Error("assertion failed: " + msg)
	panic("assertion failed: " + msg)
}
