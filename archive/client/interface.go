// Package client provides the boundary to the upstream archive content
// provider: the Provider interface the caching core depends on, and an HTTP
// implementation of it.
package client

import (
	"context"

	"github.com/tessera-archive/go-tessera/archive/model"
)

// Provider is the contract the caching core consumes. All three operations
// may fail with network or upstream errors; callers treat failure as an
// empty result with a recorded error, never a crash. All three are slow
// relative to UI frame budgets, which is why results are cached.
type Provider interface {
	// Search returns one page of results for a free-text query and filter
	// set. The returned Total may be model.TotalUnknown when it cannot be
	// reliably counted.
	Search(ctx context.Context, query string, filters model.Filters, page, pageSize int) (*model.SearchResult, error)

	// FetchTile returns up to req.Limit deduplicated, thumbnail-bearing
	// items for one tile.
	FetchTile(ctx context.Context, req TileRequest) ([]model.Item, error)

	// ItemDetail returns the full record for one item, or a not-found
	// error.
	ItemDetail(ctx context.Context, id string) (*model.ItemDetail, error)
}

// Distinct large primes spacing adjacent tiles across the upstream page
// space, so neighboring tiles do not alias to the same page and show
// repeating blocks of items. This is a heuristic, not a uniqueness
// guarantee.
const (
	tilePrimeX = 15485863
	tilePrimeY = 32452843

	// upstreamPageSpan bounds the derived page number to a range the
	// upstream can serve.
	upstreamPageSpan = 9973
)

// TileRequest identifies the content wanted for one tile.
type TileRequest struct {
	TileX   int
	TileY   int
	Query   string
	Filters model.Filters
	Limit   int
	// Seed is the session variation seed. The same tile requested twice in
	// one session maps to the same upstream page; a fresh session maps it
	// elsewhere.
	Seed int64
}

// UpstreamPage derives the upstream result page for the tile. Pure function
// of the tile coordinate and seed.
func (r TileRequest) UpstreamPage() int {
	p := (int64(r.TileX)*tilePrimeX + int64(r.TileY)*tilePrimeY + r.Seed) % upstreamPageSpan
	if p < 0 {
		p += upstreamPageSpan
	}
	return int(p)
}
