package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Initialize sets the default slog logger with the given level and format.
// Unknown levels fall back to info; any format other than "json" is text.
func Initialize(level, format string) *slog.Logger {
	return InitializeTo(os.Stdout, level, format)
}

// InitializeTo is Initialize writing to w.
func InitializeTo(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
