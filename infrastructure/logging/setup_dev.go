//go:build !prod

package logging

import (
	"log/slog"
	"os"
)

// Setup initializes console logging: text lines to cfg.Output, stderr by
// default, so that they never interleave with the report on stdout.
func Setup(cfg *Config) (*slog.Logger, func() error, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(out, handlerOptions(cfg)))
	setGlobal(logger)

	return logger, func() error { return nil }, nil
}
