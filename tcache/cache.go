package tcache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("tcache")

// State classifies a cache lookup by entry age.
type State int

const (
	// Miss means no entry exists, or the entry aged past the stale TTL.
	Miss State = iota
	// Hit means the entry is within the fresh TTL and is authoritative.
	Hit
	// Stale means the entry aged past the fresh TTL but not the stale TTL.
	// It may be served, and the caller should revalidate it in the
	// background.
	Stale
)

func (s State) String() string {
	switch s {
	case Hit:
		return "HIT"
	case Stale:
		return "STALE"
	default:
		return "MISS"
	}
}

// Entry is one cached payload with its terminal fetch outcome. Err is set
// when the last fetch for the key failed; such entries still age and expire
// normally, so a failed key is retried once it falls out of the fresh
// window.
type Entry[T any] struct {
	Key       string
	Payload   T
	Err       error
	UpdatedAt time.Time
}

// Cache is a mutex-guarded key to entry store with TTL-derived freshness.
// Freshness is computed at lookup time from the entry timestamp; it is never
// stored.
type Cache[T any] struct {
	mutex   sync.Mutex
	entries map[string]Entry[T]

	freshTTL       time.Duration
	staleTTL       time.Duration
	sweepThreshold int
	clock          clock.Clock
}

// New creates a cache with the given options.
func New[T any](options ...Option) (*Cache[T], error) {
	cfg, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	return &Cache[T]{
		entries:        make(map[string]Entry[T]),
		freshTTL:       cfg.freshTTL,
		staleTTL:       cfg.staleTTL,
		sweepThreshold: cfg.sweepThreshold,
		clock:          cfg.clock,
	}, nil
}

// Get returns the entry for key and its freshness state. On Miss the
// returned entry is the zero value and must not be served.
func (c *Cache[T]) Get(key string) (Entry[T], State) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return Entry[T]{}, Miss
	}
	age := c.clock.Now().Sub(ent.UpdatedAt)
	switch {
	case age < c.freshTTL:
		return ent, Hit
	case age < c.staleTTL:
		return ent, Stale
	default:
		return Entry[T]{}, Miss
	}
}

// Set stores a successful fetch result, stamping it with the current time.
func (c *Cache[T]) Set(key string, payload T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = Entry[T]{
		Key:       key,
		Payload:   payload,
		UpdatedAt: c.clock.Now(),
	}
	c.maybeSweep()
}

// SetError records a failed terminal fetch for key. The entry serves an
// empty payload alongside the error until it expires and the key is retried.
func (c *Cache[T]) SetError(key string, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = Entry[T]{
		Key:       key,
		Err:       err,
		UpdatedAt: c.clock.Now(),
	}
	c.maybeSweep()
}

// Delete removes the entry for key, if any.
func (c *Cache[T]) Delete(key string) {
	c.mutex.Lock()
	delete(c.entries, key)
	c.mutex.Unlock()
}

// Purge removes all entries. Used when a filter or query change invalidates
// an entire namespace.
func (c *Cache[T]) Purge() {
	c.mutex.Lock()
	c.entries = make(map[string]Entry[T])
	c.mutex.Unlock()
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *Cache[T]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// maybeSweep removes entries older than the stale TTL once the map has grown
// past the sweep threshold. Caller holds the mutex.
func (c *Cache[T]) maybeSweep() {
	if len(c.entries) <= c.sweepThreshold {
		return
	}
	now := c.clock.Now()
	var removed int
	for key, ent := range c.entries {
		if now.Sub(ent.UpdatedAt) >= c.staleTTL {
			delete(c.entries, key)
			removed++
		}
	}
	if removed != 0 {
		log.Debugw("Swept expired cache entries", "removed", removed, "remaining", len(c.entries))
	}
}
