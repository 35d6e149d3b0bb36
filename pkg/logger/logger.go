package logger

import (
	"log/slog"
	"os"

	"github.com/PocketPalCo/receipts-service/config"
)

// NewLogger creates the local logger: a text or JSON handler on stdout at the configured level.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.GetSlogLevel()}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
