package httpserver

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment surface for running the tile server as a
// process. Layout constants (card size, tile arity, cull margin) are
// compile-time constants in the geometry package, not configuration.
type Config struct {
	// ListenAddr is the address the HTTP server binds.
	ListenAddr string `env:"TESSERA_LISTEN_ADDR" envDefault:":8410"`
	// UpstreamURL is the base URL of the archive content provider.
	UpstreamURL string `env:"TESSERA_UPSTREAM_URL,notEmpty"`
	// Concurrency bounds simultaneous upstream fetches.
	Concurrency int `env:"TESSERA_FETCH_CONCURRENCY" envDefault:"6"`
	// FreshTTL and StaleTTL tune the cache freshness windows.
	FreshTTL time.Duration `env:"TESSERA_CACHE_FRESH_TTL" envDefault:"30m"`
	StaleTTL time.Duration `env:"TESSERA_CACHE_STALE_TTL" envDefault:"1h"`
	// UpstreamRPS rate-limits upstream requests; zero disables limiting.
	UpstreamRPS float64 `env:"TESSERA_UPSTREAM_RPS" envDefault:"0"`
}

// ConfigFromEnv loads Config from the process environment.
func ConfigFromEnv() (Config, error) {
	return env.ParseAs[Config]()
}
