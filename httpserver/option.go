package httpserver

import (
	"fmt"
)

type config struct {
	startServer bool
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		startServer: true,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithServer, when false, skips starting a listener; the caller serves
// requests through ServeHTTP. Used by tests with httptest.
//
// Default is true.
func WithServer(start bool) Option {
	return func(cfg *config) error {
		cfg.startServer = start
		return nil
	}
}
