// Package tcache provides the in-memory TTL cache used for tile and search
// result payloads.
//
// ## Freshness
//
// Every entry records the time of its last terminal fetch, successful or
// failed. A lookup classifies the entry by age: younger than the fresh TTL it
// is a HIT and authoritative; between the fresh TTL and the stale TTL it is
// STALE, still served to keep perceived latency low for a slow upstream, and
// the caller is expected to trigger one background revalidation; at or past
// the stale TTL it is a MISS and must be fetched synchronously. An entry's
// timestamp changes only when a fetch completes, never on a cache hit.
//
// ## Eviction
//
// The cache sweeps opportunistically: once the entry count exceeds the
// configured threshold, the next write removes every entry older than the
// stale TTL. This bounds memory for a long session that has panned across
// thousands of tiles without needing a background goroutine.
//
// ## Namespaces
//
// Tile data and search results live in separate Cache instances. Invalidating
// one namespace (for example on a filter change) never touches the other.
package tcache
