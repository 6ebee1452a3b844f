// Package surface ties the caching core together: it owns the tile and
// search caches, the request coordinator, and the session variation seed,
// and exposes the operations the rendering layer calls as the viewport
// moves. Camera state itself belongs to the UI; the surface only consumes
// camera values.
//
// The surface is an explicit state machine rather than a reactive store:
// each viewport change produces the set of tiles needed, which is diffed
// against what is cached or in flight to produce fetch requests. Nothing
// here depends on how the caller schedules those changes.
package surface

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/tessera-archive/go-tessera/archive/client"
	"github.com/tessera-archive/go-tessera/archive/model"
	"github.com/tessera-archive/go-tessera/coordinator"
	"github.com/tessera-archive/go-tessera/geometry"
	"github.com/tessera-archive/go-tessera/placement"
	"github.com/tessera-archive/go-tessera/tcache"
)

var log = logging.Logger("surface")

// Surface is the process-wide owner of tile loading state. Construct one per
// process with New and share it; all methods are safe for concurrent use.
type Surface struct {
	provider client.Provider
	tiles    *tcache.Cache[[]model.CanvasItem]
	searches *tcache.Cache[model.SearchResult]
	coord    *coordinator.Coordinator

	seed       int64
	cullMargin float64
	pageSize   int

	mutex   sync.Mutex
	query   string
	filters model.Filters
	search  SearchState

	// Event distribution, see events.go.
	inEvents     chan TileLoaded
	addEventChan chan chan<- TileLoaded
	rmEventChan  chan chan<- TileLoaded
	closing      chan struct{}
	closeOnce    sync.Once
}

// New creates a Surface backed by the given content provider.
func New(provider client.Provider, options ...Option) (*Surface, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, errors.New("no content provider")
	}

	tiles, err := tcache.New[[]model.CanvasItem](opts.tileCacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("tile cache: %w", err)
	}
	searches, err := tcache.New[model.SearchResult](opts.searchCacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("search cache: %w", err)
	}

	seed := opts.seed
	if seed == 0 {
		seed = rand.Int63()
	}

	s := &Surface{
		provider:   provider,
		tiles:      tiles,
		searches:   searches,
		coord:      coordinator.New(opts.concurrency),
		seed:       seed,
		cullMargin: opts.cullMargin,
		pageSize:   opts.pageSize,
		search:     SearchState{Total: model.TotalUnknown},

		inEvents:     make(chan TileLoaded, 1),
		addEventChan: make(chan chan<- TileLoaded),
		rmEventChan:  make(chan chan<- TileLoaded),
		closing:      make(chan struct{}),
	}
	go s.distributeEvents()
	return s, nil
}

// Close stops event distribution. In-flight fetches are left to finish; the
// caches remain readable.
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	return nil
}

// Seed returns the session variation seed.
func (s *Surface) Seed() int64 {
	return s.seed
}

// Query returns the current free-text query.
func (s *Surface) Query() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.query
}

// Filters returns the current filter set.
func (s *Surface) Filters() model.Filters {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.filters
}

// SetQuery replaces the free-text query. A change invalidates the entire
// tile namespace and resets search pagination; the search result cache is
// untouched since its entries are keyed by query.
func (s *Surface) SetQuery(query string) {
	s.mutex.Lock()
	changed := s.query != query
	s.query = query
	if changed {
		s.search = SearchState{Total: model.TotalUnknown}
	}
	s.mutex.Unlock()

	if changed {
		s.invalidateTiles("query changed")
	}
}

// SetFilters replaces the filter set. A change purges the tile cache and
// drops queued-but-not-started tile fetches. Fetches already running are
// left to land: their results are keyed by the old filter fingerprint, so
// future lookups simply never reach them.
func (s *Surface) SetFilters(f model.Filters) {
	s.mutex.Lock()
	changed := s.filters.Fingerprint() != f.Fingerprint()
	s.filters = f
	if changed {
		s.search = SearchState{Total: model.TotalUnknown}
	}
	s.mutex.Unlock()

	if changed {
		s.invalidateTiles("filters changed")
	}
}

func (s *Surface) invalidateTiles(reason string) {
	s.tiles.Purge()
	dropped := s.coord.DiscardQueued()
	log.Infow("Tile namespace invalidated", "reason", reason, "droppedQueued", dropped)
}

// LoadVisible requests every visible tile that is neither cached fresh nor
// already in flight, nearest to the viewport center first. It does not wait
// for fetches to complete; the returned handles allow callers that want to.
func (s *Surface) LoadVisible(cam geometry.Camera, vp geometry.Viewport) []*coordinator.Handle {
	coords := geometry.VisibleTiles(cam, vp)
	geometry.SortByCenterDistance(coords, cam, vp)

	query, filters := s.snapshotContext()

	var handles []*coordinator.Handle
	for _, tc := range coords {
		key := s.tileKey(tc.X, tc.Y, query, filters)
		_, state := s.tiles.Get(key)
		switch state {
		case tcache.Hit:
			continue
		case tcache.Stale:
			// Serveable; revalidate in the background.
			s.revalidateTile(key, tc.X, tc.Y, query, filters)
			continue
		}
		if s.coord.InFlight(key) {
			continue
		}
		handles = append(handles, s.coord.Request(key, s.tileFetch(key, tc.X, tc.Y, query, filters)))
	}
	return handles
}

// GetTile returns the items for one tile, fetching synchronously on a cache
// miss. The returned state is the cache state before any fetch: Hit and
// Stale serve from cache (Stale also starts one background revalidation),
// Miss waits for the fetch. Upstream failure yields empty items with the
// error recorded in the cache, not returned; the error return is only for
// context cancellation.
func (s *Surface) GetTile(ctx context.Context, tileX, tileY int) ([]model.CanvasItem, tcache.State, error) {
	query, filters := s.snapshotContext()
	key := s.tileKey(tileX, tileY, query, filters)

	ent, state := s.tiles.Get(key)
	switch state {
	case tcache.Hit:
		return ent.Payload, state, nil
	case tcache.Stale:
		s.revalidateTile(key, tileX, tileY, query, filters)
		return ent.Payload, state, nil
	}

	h := s.coord.Request(key, s.tileFetch(key, tileX, tileY, query, filters))
	if err := h.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, tcache.Miss, ctx.Err()
		}
		// Fetch or queue failure; the cache entry carries it. Fall through
		// to serve whatever was recorded.
	}
	ent, _ = s.tiles.Get(key)
	return ent.Payload, tcache.Miss, nil
}

// TileItems returns the cached items for one tile without fetching. The
// second return is false when no serveable entry exists. A stale entry is
// served and triggers one background revalidation.
func (s *Surface) TileItems(tileX, tileY int) ([]model.CanvasItem, bool) {
	query, filters := s.snapshotContext()
	key := s.tileKey(tileX, tileY, query, filters)

	ent, state := s.tiles.Get(key)
	switch state {
	case tcache.Hit:
		return ent.Payload, true
	case tcache.Stale:
		s.revalidateTile(key, tileX, tileY, query, filters)
		return ent.Payload, true
	}
	return nil, false
}

// VisibleItems returns the culled render list for the viewport from cached
// tiles only. Tiles still loading contribute nothing; they are "not yet
// available", not empty.
func (s *Surface) VisibleItems(cam geometry.Camera, vp geometry.Viewport) []model.CanvasItem {
	var items []model.CanvasItem
	for _, tc := range geometry.VisibleTiles(cam, vp) {
		if tileItems, ok := s.TileItems(tc.X, tc.Y); ok {
			items = append(items, tileItems...)
		}
	}
	return geometry.Cull(items, cam, vp, s.cullMargin)
}

// RepackVisible lays the cached visible items out in a dense sequential
// grid, center-first tile order, discarding their scattered tile positions.
// Used when active filters thin the surface out so far that the organic
// scatter would show mostly empty tiles.
func (s *Surface) RepackVisible(cam geometry.Camera, vp geometry.Viewport) []model.CanvasItem {
	coords := geometry.VisibleTiles(cam, vp)
	geometry.SortByCenterDistance(coords, cam, vp)

	columns := int(vp.Width) / (geometry.CardWidth + geometry.CardGap)
	if columns < 1 {
		columns = 1
	}

	var packed []model.CanvasItem
	for _, tc := range coords {
		tileItems, ok := s.TileItems(tc.X, tc.Y)
		if !ok {
			continue
		}
		for _, ci := range tileItems {
			p := placement.PlaceDense(len(packed), columns)
			ci.X = p.X
			ci.Y = p.Y
			ci.Width = p.Width
			ci.Height = p.Height
			ci.Rotation = p.Rotation
			packed = append(packed, ci)
		}
	}
	return packed
}

// TileCacheLen reports the number of tile cache entries.
func (s *Surface) TileCacheLen() int {
	return s.tiles.Len()
}

// revalidateTile starts one background refetch for a stale key. The
// coordinator's in-flight dedup guarantees concurrent stale hits do not
// stack revalidations.
func (s *Surface) revalidateTile(key string, tileX, tileY int, query string, filters model.Filters) {
	s.coord.Request(key, s.tileFetch(key, tileX, tileY, query, filters))
}

// tileFetch builds the fetch closure for one tile. The closure records its
// terminal outcome, success or failure, in the tile cache before resolving,
// so waiters always find an entry.
func (s *Surface) tileFetch(key string, tileX, tileY int, query string, filters model.Filters) coordinator.FetchFunc {
	return func(ctx context.Context) error {
		items, err := s.provider.FetchTile(ctx, client.TileRequest{
			TileX:   tileX,
			TileY:   tileY,
			Query:   query,
			Filters: filters,
			Limit:   geometry.ItemsPerTile,
			Seed:    s.seed,
		})
		if err != nil {
			log.Errorw("Cannot fetch tile", "err", err, "tileX", tileX, "tileY", tileY)
			s.tiles.SetError(key, err)
			s.publish(TileLoaded{Tile: geometry.TileCoord{X: tileX, Y: tileY}, Key: key, Err: err})
			return err
		}

		placed := make([]model.CanvasItem, len(items))
		for i, it := range items {
			p := placement.Place(tileX, tileY, i)
			placed[i] = model.CanvasItem{
				Item:     it,
				X:        p.X,
				Y:        p.Y,
				Width:    p.Width,
				Height:   p.Height,
				Rotation: p.Rotation,
				TileX:    tileX,
				TileY:    tileY,
			}
		}
		s.tiles.Set(key, placed)
		s.publish(TileLoaded{Tile: geometry.TileCoord{X: tileX, Y: tileY}, Key: key, Count: len(placed)})
		return nil
	}
}

func (s *Surface) snapshotContext() (string, model.Filters) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.query, s.filters
}

// tileKey composes the cache key from tile coordinate, query, canonical
// filter fingerprint, and the session seed. Two semantically identical
// filter sets always produce the same key.
func (s *Surface) tileKey(tileX, tileY int, query string, filters model.Filters) string {
	return fmt.Sprintf("tile:%d:%d:q=%s:f=%s:s=%d", tileX, tileY, query, filters.Fingerprint(), s.seed)
}

// CullMargin returns the configured screen-space culling margin.
func (s *Surface) CullMargin() float64 {
	return s.cullMargin
}
