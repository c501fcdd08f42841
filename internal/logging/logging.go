// Package logging provides the per-component loggers shared by the
// beacon, protocol engine, pipeline, and status store. It replaces the
// teacher's hand-rolled text_color_set/dw_printf narration with a real
// structured, leveled logger.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger prefixed with component, writing to stderr.
// Pass debug=true to enable Debug-level tracing (the --debug flag);
// otherwise the logger runs at Info level.
func New(component string, debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          component,
	})

	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}

	return logger
}
