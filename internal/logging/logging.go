// Package logging builds the structured loggers handed to every component.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Prefix tags every line written by the plugin.
const Prefix = "sqlplugin"

// New returns a logger writing to stderr. Stdout is left to protocol front-ends.
func New(debug bool) *log.Logger {
	return NewWithWriter(os.Stderr, debug)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, debug bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		ReportTimestamp: true,
		ReportCaller:    debug,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns logger, or a discarding logger when nil.
func OrDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}
