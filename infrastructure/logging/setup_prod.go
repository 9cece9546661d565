//go:build prod

package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logFile is the name of the active log file inside the log directory.
const logFile = "spw.log"

// Setup initializes file logging for CI machines: JSON lines to a rotating
// file under cfg.Dir, so the logs of many runs can be archived and searched.
// The returned function closes the file.
func Setup(cfg *Config) (*slog.Logger, func() error, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	dir := cfg.Dir
	if dir == "" {
		dir = DefaultLogDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	lj := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFile),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}

	logger := slog.New(slog.NewJSONHandler(lj, handlerOptions(cfg)))
	setGlobal(logger)

	return logger, lj.Close, nil
}
