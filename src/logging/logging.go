// Package logging contains the singleton-per-package loggers used
// throughout quill. It deliberately has little else since it's a
// dependency everywhere.
package logging

import (
	"gopkg.in/op/go-logging.v1"
)

// Level is a re-export of the library type.
type Level = logging.Level

// Re-exports of various log levels.
const (
	CRITICAL = logging.CRITICAL
	ERROR    = logging.ERROR
	WARNING  = logging.WARNING
	NOTICE   = logging.NOTICE
	INFO     = logging.INFO
	DEBUG    = logging.DEBUG
)

// MustGetLogger returns a named logger, panicking if the name is invalid.
// Packages should call this once at init time and keep the result in a
// package-level var, e.g. `var log = logging.MustGetLogger("quill/exec")`.
func MustGetLogger(name string) *logging.Logger {
	return logging.MustGetLogger(name)
}
