package orchestrator

import (
	"log/slog"
	"time"
)

// DefaultTimeout bounds a whole pipeline run when Config.Timeout is zero.
const DefaultTimeout = 5 * time.Minute

// Config holds runtime configuration for a pipeline run.
type Config struct {
	// StageURLs maps each driven stage to the base URL its card is served
	// from.
	StageURLs map[Stage]string

	// Timeout bounds the whole run, including every remote call.
	Timeout time.Duration

	// Logger receives stage transitions. Nil means slog.Default().
	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
