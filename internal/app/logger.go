package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the quotation service's process logger: JSON when
// LOG_FORMAT=json, human-readable text otherwise. Source locations are
// attached in both modes.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
