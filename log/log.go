/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package log

import (
	"sync"
	"sync/atomic"
)

// Logger defines a logging backend. A single logger instance is shared
// package wide, so implementations must be safe for concurrent use.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	Close() error
}

// singleton interface
var (
	inst        Logger = &disabledLogger{}
	instMu      sync.RWMutex
	initialized uint32
)

// Set sets the package level logging backend.
func Set(logger Logger) {
	if atomic.CompareAndSwapUint32(&initialized, 0, 1) {
		instMu.Lock()
		defer instMu.Unlock()
		inst = logger
	}
}

// Unset disables the package level logging backend.
// This method should be used only for testing purposes.
func Unset() {
	if atomic.CompareAndSwapUint32(&initialized, 1, 0) {
		instMu.Lock()
		defer instMu.Unlock()
		_ = inst.Close()
		inst = &disabledLogger{}
	}
}

func instance() Logger {
	instMu.RLock()
	defer instMu.RUnlock()
	return inst
}

// Debugf logs a 'debug' message.
func Debugf(format string, args ...interface{}) {
	instance().Debugf(format, args...)
}

// Infof logs an 'info' message.
func Infof(format string, args ...interface{}) {
	instance().Infof(format, args...)
}

// Warnf logs a 'warning' message.
func Warnf(format string, args ...interface{}) {
	instance().Warnf(format, args...)
}

// Errorf logs an 'error' message.
func Errorf(format string, args ...interface{}) {
	instance().Errorf(format, args...)
}

// Error logs an 'error' value.
func Error(err error) {
	instance().Errorf("%v", err)
}

// Fatalf logs a 'fatal' message.
// Application will terminate after logging.
func Fatalf(format string, args ...interface{}) {
	instance().Fatalf(format, args...)
}

type disabledLogger struct{}

func (*disabledLogger) Debugf(format string, args ...interface{}) {}
func (*disabledLogger) Infof(format string, args ...interface{})  {}
func (*disabledLogger) Warnf(format string, args ...interface{})  {}
func (*disabledLogger) Errorf(format string, args ...interface{}) {}
func (*disabledLogger) Fatalf(format string, args ...interface{}) {}
func (*disabledLogger) Close() error                              { return nil }
