package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/tidwall/gjson"

	"github.com/matspina/screen-play-wright/domain/setup"
)

// ErrLockTimeout is returned when the TTL file lock stays taken for all retries.
var ErrLockTimeout = errors.New("timed out acquiring ttl file lock")

// ErrCorruptTTLFile is returned when the TTL file is not a JSON object.
var ErrCorruptTTLFile = errors.New("corrupt ttl file")

var errLockBusy = errors.New("ttl file lock busy")

// FileTTLConfig configures a FileTTLRepository.
type FileTTLConfig struct {
	// Path is the TTL JSON file
	Path string

	// LockAttempts is how many times the lock is tried before giving up
	LockAttempts int

	// LockInterval is the pause between lock attempts
	LockInterval time.Duration

	// Clock supplies the current time
	Clock clock.Clock

	// Logger receives debug output. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileTTLConfig returns the default file location and lock policy.
func DefaultFileTTLConfig() *FileTTLConfig {
	return &FileTTLConfig{
		Path:         filepath.Join("browser-states", "ttl", "globalSetupTTL.json"),
		LockAttempts: 20,
		LockInterval: 250 * time.Millisecond,
	}
}

// FileTTLRepository implements setup.CacheStore on a JSON file shared by all
// processes of a run:
//
//	{ "<identity>": { "<env>": { "lastExecutedAt": <unix ms> } } }
//
// Writers serialize through an advisory lock on "<path>.lock" and replace the
// file atomically, so readers never see a partial write.
type FileTTLRepository struct {
	path         string
	lockAttempts int
	lockInterval time.Duration
	clock        clock.Clock
	logger       *slog.Logger
}

// NewFileTTLRepository creates a file-backed TTL repository.
func NewFileTTLRepository(cfg *FileTTLConfig) *FileTTLRepository {
	def := DefaultFileTTLConfig()
	if cfg == nil {
		cfg = def
	}

	r := &FileTTLRepository{
		path:         cfg.Path,
		lockAttempts: cfg.LockAttempts,
		lockInterval: cfg.LockInterval,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
	if r.path == "" {
		r.path = def.Path
	}
	if r.lockAttempts < 1 {
		r.lockAttempts = def.LockAttempts
	}
	if r.lockInterval <= 0 {
		r.lockInterval = def.LockInterval
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Path returns the TTL file location.
func (r *FileTTLRepository) Path() string {
	return r.path
}

// IsExpired reports whether identity must run again in env. The file is
// created on first use; a file created by this call has no entries.
func (r *FileTTLRepository) IsExpired(ctx context.Context, identity, env string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	created, err := r.ensureFile()
	if err != nil {
		return false, err
	}
	if created || ttl <= 0 {
		return true, nil
	}

	last, found, err := r.lastExecution(identity, env)
	if err != nil {
		return false, err
	}
	return setup.Expired(last, found, r.clock.Now(), ttl), nil
}

// LastExecution returns the last recorded execution of identity in env.
func (r *FileTTLRepository) LastExecution(ctx context.Context, identity, env string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	if _, err := os.Stat(r.path); errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	return r.lastExecution(identity, env)
}

func (r *FileTTLRepository) lastExecution(identity, env string) (time.Time, bool, error) {
	data, err := r.read()
	if err != nil {
		return time.Time{}, false, err
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return time.Time{}, false, fmt.Errorf("%w: %s", ErrCorruptTTLFile, r.path)
	}

	result := gjson.GetBytes(data, entryPath(identity, env))
	if !result.Exists() || result.Int() == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(result.Int()), true, nil
}

// read returns the TTL file contents. A blank file reads as an empty object:
// it is what a reader sees between another process creating the file and
// writing "{}" into it.
func (r *FileTTLRepository) read() ([]byte, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ttl file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("{}"), nil
	}
	return data, nil
}

// entryPath is the gjson path of the lastExecutedAt field of a key.
func entryPath(identity, env string) string {
	return gjson.Escape(identity) + "." + gjson.Escape(env) + ".lastExecutedAt"
}

// RecordExecution stores the current time under identity and env, keeping
// every other entry of the file.
func (r *FileTTLRepository) RecordExecution(ctx context.Context, identity, env string) error {
	if _, err := r.ensureFile(); err != nil {
		return err
	}

	unlock, err := r.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := r.read()
	if err != nil {
		return err
	}

	entries := make(map[string]map[string]map[string]any)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptTTLFile, r.path, err)
	}

	envs := entries[identity]
	if envs == nil {
		envs = make(map[string]map[string]any)
		entries[identity] = envs
	}
	entry := envs[env]
	if entry == nil {
		entry = make(map[string]any)
		envs[env] = entry
	}
	now := r.clock.Now()
	entry["lastExecutedAt"] = now.UnixMilli()

	out, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode ttl file: %w", err)
	}
	if err := atomic.WriteFile(r.path, bytes.NewReader(out)); err != nil {
		return fmt.Errorf("failed to write ttl file: %w", err)
	}

	r.logger.Debug("Setup execution recorded", "identity", identity, "env", env, "at", now)
	return nil
}

// ensureFile creates the TTL file with an empty object when it does not exist.
// created is false when another process won the race.
func (r *FileTTLRepository) ensureFile() (created bool, err error) {
	if _, err := os.Stat(r.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to access ttl file: %w", err)
	}

	created, err = r.createFile()
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
			return false, fmt.Errorf("failed to create ttl directory: %w", err)
		}
		created, err = r.createFile()
	}
	if err != nil {
		return false, fmt.Errorf("failed to create ttl file: %w", err)
	}
	return created, nil
}

func (r *FileTTLRepository) createFile() (bool, error) {
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.WriteString("{}"); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}

// lock takes the exclusive lock, retrying at a fixed interval.
func (r *FileTTLRepository) lock(ctx context.Context) (func(), error) {
	fl := flock.New(r.path + ".lock")

	op := func() error {
		ok, err := fl.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockBusy
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.lockInterval), uint64(r.lockAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, errLockBusy) {
			return nil, fmt.Errorf("%w after %d attempts: %s", ErrLockTimeout, r.lockAttempts, fl.Path())
		}
		return nil, fmt.Errorf("failed to lock ttl file: %w", err)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			r.logger.Warn("Failed to release ttl file lock", "path", fl.Path(), "error", err)
		}
	}, nil
}

var _ setup.CacheStore = (*FileTTLRepository)(nil)
