// Package debug gates diagnostic logging behind the CANOPY_DEBUG
// environment variable. With it unset every call is a no-op; with it
// set, messages go to stderr with microsecond timestamps, clear of the
// TUI on stdout:
//
//	CANOPY_DEBUG=1 canopy --robot-dump
package debug

import (
	"log"
	"os"
)

var logger = func() *log.Logger {
	if os.Getenv("CANOPY_DEBUG") == "" {
		return nil
	}
	return log.New(os.Stderr, "[CANOPY_DEBUG] ", log.Ltime|log.Lmicroseconds)
}()

// Enabled reports whether debug logging is on, for callers that want to
// skip building an expensive message.
func Enabled() bool { return logger != nil }

// Log writes one printf-formatted message when debug logging is on.
func Log(format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
