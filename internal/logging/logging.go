// Package logging centralizes zerolog setup. Grounded on cuemby-warren's
// use of zerolog as its sole logging library; the teacher repo itself only
// uses fmt.Printf, which this replaces for the ambient logging concern.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to w (os.Stdout in production,
// an io.Writer in tests) at the given level string ("debug", "info",
// "warn", "error"; unknown values fall back to "info").
func New(w io.Writer, levelStr string) zerolog.Logger {
	level := parseLevel(levelStr)
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default returns the stdout logger at info level, used when no explicit
// logger is wired (e.g. in quick tests).
func Default() zerolog.Logger {
	return New(os.Stdout, "info")
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}
