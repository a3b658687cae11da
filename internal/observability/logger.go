package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/maritime-event-pipeline/internal/config"
)

// NewLogger builds the root slog.Logger from config. Unknown levels fall
// back to info, unknown formats to JSON.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(newHandler(os.Stdout, cfg.LogLevel, cfg.LogFormat))
}

func newHandler(w *os.File, levelName, format string) slog.Handler {
	var level slog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
