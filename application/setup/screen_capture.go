package setup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/natefinch/atomic"

	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

// captureTimeout bounds a failure screenshot, which may run after the
// attempt's context was canceled.
const captureTimeout = 10 * time.Second

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ScreenCapture saves screenshots of failed attempts.
type ScreenCapture struct {
	dir    string
	clock  clock.Clock
	logger *slog.Logger
}

// NewScreenCapture creates a capture service writing to dir. An empty dir
// disables capturing.
func NewScreenCapture(dir string, clk clock.Clock, logger *slog.Logger) *ScreenCapture {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenCapture{
		dir:    dir,
		clock:  clk,
		logger: logger,
	}
}

// Enabled reports whether screenshots are saved.
func (s *ScreenCapture) Enabled() bool {
	return s.dir != ""
}

// CaptureAndSave captures the page and saves it as
// "<dir>/<identity>-<attempt>-<unix ms>.png".
func (s *ScreenCapture) CaptureAndSave(ctx context.Context, page browser.Page, identity string, attempt int) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	buf, err := page.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	filename := s.filename(identity, attempt)
	if err := atomic.WriteFile(filename, bytes.NewReader(buf)); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	s.logger.Debug("Screenshot saved", "filename", filename)
	return filename, nil
}

func (s *ScreenCapture) filename(identity string, attempt int) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(identity, "-"), "-")
	if name == "" {
		name = "setup"
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s-%d-%d.png", name, attempt, s.clock.Now().UnixMilli()))
}
