// logging.go - Structured Logging for the nbio Runtime
//
// Package-level configuration mirroring the rest of the joeycumines
// ecosystem: a logiface logger installed once at startup, with a stumpy
// (JSON lines) backend as the default file sink.
//
// The logger is a package-level global: the runtime's log stream is a
// process-wide resource (one log file per process), and a nil logger
// disables all output without any call-site checks, as logiface builders
// are nil-receiver safe.

package nbio

import (
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

// SetLogger sets the package-level structured logger. A nil logger disables
// logging.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// logger safely retrieves the package-level logger, which may be nil.
func logger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

// NewFileLogger opens path truncated and returns a stumpy-backed logiface
// logger appending JSON lines to it.
func NewFileLogger(path string, level logiface.Level) (*logiface.Logger[logiface.Event], error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(f)),
		stumpy.L.WithLevel(level),
	)
	return l.Logger(), nil
}
