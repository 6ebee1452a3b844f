package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout  = 10 * time.Second
	defaultRetryMax     = 2
	defaultRetryWaitMin = 250 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
)

type config struct {
	httpClient  *http.Client
	httpTimeout time.Duration
	retryMax    int
	limiter     *rate.Limiter
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		httpTimeout: defaultHTTPTimeout,
		retryMax:    defaultRetryMax,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	if cfg.httpClient == nil {
		// Retrying client so that transient upstream failures surface as a
		// request error rather than hanging the tile forever.
		rc := &retryablehttp.Client{
			HTTPClient:   &http.Client{Timeout: cfg.httpTimeout},
			RetryMax:     cfg.retryMax,
			RetryWaitMin: defaultRetryWaitMin,
			RetryWaitMax: defaultRetryWaitMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
		}
		cfg.httpClient = rc.StandardClient()
	}
	return cfg, nil
}

// WithClient replaces the HTTP client used for upstream requests, disabling
// the default retry behavior.
func WithClient(c *http.Client) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.httpClient = c
		}
		return nil
	}
}

// WithTimeout sets the per-request upstream timeout used by the default
// client. The provider must fail rather than hang; this is the failure.
//
// Default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		cfg.httpTimeout = d
		return nil
	}
}

// WithRetryMax sets how many times the default client retries a failed
// upstream request.
//
// Default is 2.
func WithRetryMax(n int) Option {
	return func(cfg *config) error {
		if n < 0 {
			return fmt.Errorf("retry max cannot be negative")
		}
		cfg.retryMax = n
		return nil
	}
}

// WithRateLimit caps the rate of upstream requests. Zero rps disables
// limiting, which is the default.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *config) error {
		if rps < 0 {
			return fmt.Errorf("rate limit cannot be negative")
		}
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			cfg.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
		return nil
	}
}
