// Package logging builds the process logger from the -v/-q counts.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// LevelTrace sits below debug for per-poll and per-predicate chatter.
const LevelTrace = slog.LevelDebug - 4

// Format selects the handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps a configured format name to a Format, defaulting to text.
func ParseFormat(s string) Format {
	if s == string(FormatJSON) {
		return FormatJSON
	}
	return FormatText
}

// Level returns the minimum level for the net verbosity (verbose - quiet) and
// whether logging is enabled at all.
//
//	<= -2  off
//	   -1  error
//	    0  warn
//	    1  debug
//	>=  2  trace
func Level(verbose, quiet int) (slog.Level, bool) {
	switch net := verbose - quiet; {
	case net <= -2:
		return 0, false
	case net == -1:
		return slog.LevelError, true
	case net == 0:
		return slog.LevelWarn, true
	case net == 1:
		return slog.LevelDebug, true
	default:
		return LevelTrace, true
	}
}

// New returns a logger writing to w at the level derived from verbose and quiet.
func New(w io.Writer, verbose, quiet int, format Format) *slog.Logger {
	level, ok := Level(verbose, quiet)
	if !ok {
		return slog.New(slog.DiscardHandler)
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr(format),
	}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func replaceAttr(format Format) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if format == FormatText {
				return slog.Attr{}
			}
		case slog.LevelKey:
			if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
				return slog.String(slog.LevelKey, "TRACE")
			}
		}
		return a
	}
}

// Trace logs at LevelTrace on the default logger.
func Trace(ctx context.Context, msg string, args ...any) {
	slog.Log(ctx, LevelTrace, msg, args...)
}
