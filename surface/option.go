package surface

import (
	"fmt"

	"github.com/tessera-archive/go-tessera/coordinator"
	"github.com/tessera-archive/go-tessera/geometry"
	"github.com/tessera-archive/go-tessera/tcache"
)

const (
	defaultPageSize = 40

	// Search results are far fewer than tiles in a long session.
	defaultSearchSweepThreshold = 100
)

type config struct {
	concurrency     int
	seed            int64
	cullMargin      float64
	pageSize        int
	tileCacheOpts   []tcache.Option
	searchCacheOpts []tcache.Option
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		concurrency: coordinator.DefaultLimit,
		cullMargin:  geometry.DefaultCullMargin,
		pageSize:    defaultPageSize,
		searchCacheOpts: []tcache.Option{
			tcache.WithSweepThreshold(defaultSearchSweepThreshold),
		},
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithConcurrency sets the bounded-concurrency limit for upstream fetches.
//
// Default is coordinator.DefaultLimit.
func WithConcurrency(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be at least 1")
		}
		cfg.concurrency = n
		return nil
	}
}

// WithSeed fixes the session variation seed instead of drawing a random one
// at construction. Used by tests that need reproducible tile content.
func WithSeed(seed int64) Option {
	return func(cfg *config) error {
		cfg.seed = seed
		return nil
	}
}

// WithCullMargin sets the screen-space margin used when culling.
//
// Default is geometry.DefaultCullMargin.
func WithCullMargin(margin float64) Option {
	return func(cfg *config) error {
		if margin < 0 {
			return fmt.Errorf("cull margin cannot be negative")
		}
		cfg.cullMargin = margin
		return nil
	}
}

// WithPageSize sets the search pagination page size.
//
// Default is 40.
func WithPageSize(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("page size must be at least 1")
		}
		cfg.pageSize = n
		return nil
	}
}

// WithTileCacheOptions passes options through to the tile cache.
func WithTileCacheOptions(opts ...tcache.Option) Option {
	return func(cfg *config) error {
		cfg.tileCacheOpts = append(cfg.tileCacheOpts, opts...)
		return nil
	}
}

// WithSearchCacheOptions passes options through to the search result cache.
func WithSearchCacheOptions(opts ...tcache.Option) Option {
	return func(cfg *config) error {
		cfg.searchCacheOpts = append(cfg.searchCacheOpts, opts...)
		return nil
	}
}
