package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the service logger. Production deployments set
// LOG_FORMAT=json; everything else gets the text handler. Every record
// carries the service and env attributes so ledger lines are filterable in
// aggregated output.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With(slog.String("service", "stockledger"))
	if cfg != nil && cfg.AppEnv != "" {
		logger = logger.With(slog.String("env", cfg.AppEnv))
	}
	return logger
}
