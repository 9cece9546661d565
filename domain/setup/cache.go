package setup

import (
	"context"
	"time"
)

// CacheStore records when each descriptor last ran successfully per environment.
type CacheStore interface {
	// IsExpired reports whether identity must run again in env. It is true
	// when no entry exists, when ttl is zero, or when the entry is older than ttl.
	IsExpired(ctx context.Context, identity, env string, ttl time.Duration) (bool, error)

	// RecordExecution stores the current time as the last execution of
	// identity in env.
	RecordExecution(ctx context.Context, identity, env string) error

	// LastExecution returns the last recorded execution, if any.
	LastExecution(ctx context.Context, identity, env string) (time.Time, bool, error)
}

// Expired applies the TTL rule shared by every CacheStore.
func Expired(last time.Time, found bool, now time.Time, ttl time.Duration) bool {
	if !found || ttl <= 0 {
		return true
	}
	return now.Sub(last) > ttl
}
