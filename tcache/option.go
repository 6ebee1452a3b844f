package tcache

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultFreshTTL       = 30 * time.Minute
	defaultStaleTTL       = time.Hour
	defaultSweepThreshold = 500
)

type config struct {
	freshTTL       time.Duration
	staleTTL       time.Duration
	sweepThreshold int
	clock          clock.Clock
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		freshTTL:       defaultFreshTTL,
		staleTTL:       defaultStaleTTL,
		sweepThreshold: defaultSweepThreshold,
		clock:          clock.New(),
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	if cfg.freshTTL >= cfg.staleTTL {
		return config{}, fmt.Errorf("fresh TTL %s must be shorter than stale TTL %s", cfg.freshTTL, cfg.staleTTL)
	}
	return cfg, nil
}

// WithFreshTTL sets how long an entry is served as authoritative after its
// last fetch.
//
// Default is 30 minutes.
func WithFreshTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl <= 0 {
			return fmt.Errorf("fresh TTL must be positive")
		}
		cfg.freshTTL = ttl
		return nil
	}
}

// WithStaleTTL sets the age past which an entry is no longer served at all.
// Between the fresh TTL and this value, an entry is served stale while a
// background revalidation runs. Must be longer than the fresh TTL.
//
// Default is 1 hour.
func WithStaleTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl <= 0 {
			return fmt.Errorf("stale TTL must be positive")
		}
		cfg.staleTTL = ttl
		return nil
	}
}

// WithSweepThreshold sets the entry count above which a write triggers a
// sweep of expired entries.
//
// Default is 500.
func WithSweepThreshold(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("sweep threshold must be at least 1")
		}
		cfg.sweepThreshold = n
		return nil
	}
}

// WithClock replaces the wall clock, for tests that need to control entry
// age deterministically.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.clock = c
		}
		return nil
	}
}
