// Package log provides the logging infrastructure for askdoc.
//
// Loggers are injected as dependencies, never used as globals. Each
// component receives a logger via its constructor and may add context
// with logger.With().
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger. Using the standard library
// type directly keeps full compatibility with the slog ecosystem and
// avoids a custom interface.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool
}

// New creates a logger writing to os.Stderr. Stderr keeps log output
// out of the interactive chat transcript on stdout.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to the given writer.
// Useful for capturing output in tests.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Test use only;
// production code should always configure a real writer.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
