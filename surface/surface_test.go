package surface_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/tessera-archive/go-tessera/archive/client"
	"github.com/tessera-archive/go-tessera/archive/model"
	"github.com/tessera-archive/go-tessera/coordinator"
	"github.com/tessera-archive/go-tessera/geometry"
	"github.com/tessera-archive/go-tessera/surface"
	"github.com/tessera-archive/go-tessera/tcache"
)

var vp = geometry.Viewport{Width: 800, Height: 600}

// mockProvider serves deterministic tile content keyed by tile coordinate,
// so refetches of the same tile always return the same items.
type mockProvider struct {
	mutex     sync.Mutex
	tileCalls map[string]int
	lastSeed  int64

	failTiles  bool
	failSearch bool
	// block, when set, parks FetchTile until the channel closes. The call is
	// counted before parking.
	block chan struct{}

	searchPages map[int]model.SearchResult
	searchCalls int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		tileCalls:   make(map[string]int),
		searchPages: make(map[int]model.SearchResult),
	}
}

func (m *mockProvider) FetchTile(_ context.Context, req client.TileRequest) ([]model.Item, error) {
	key := fmt.Sprintf("%d,%d", req.TileX, req.TileY)

	m.mutex.Lock()
	m.tileCalls[key]++
	m.lastSeed = req.Seed
	fail := m.failTiles
	block := m.block
	m.mutex.Unlock()

	if block != nil {
		<-block
	}
	if fail {
		return nil, errors.New("upstream down")
	}

	items := make([]model.Item, req.Limit)
	for i := range items {
		id := fmt.Sprintf("%s-%d", key, i)
		items[i] = model.Item{
			ID:           id,
			Title:        "Artefact " + id,
			ThumbnailURL: "https://archive.example/thumbs/" + id + ".jpg",
		}
	}
	return items, nil
}

func (m *mockProvider) Search(_ context.Context, query string, filters model.Filters, page, pageSize int) (*model.SearchResult, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.searchCalls++
	if m.failSearch {
		return nil, errors.New("search down")
	}
	res := m.searchPages[page]
	return &res, nil
}

func (m *mockProvider) ItemDetail(_ context.Context, id string) (*model.ItemDetail, error) {
	return &model.ItemDetail{Item: model.Item{ID: id}}, nil
}

func (m *mockProvider) calls(x, y int) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.tileCalls[fmt.Sprintf("%d,%d", x, y)]
}

func (m *mockProvider) setBlock(ch chan struct{}) {
	m.mutex.Lock()
	m.block = ch
	m.mutex.Unlock()
}

func (m *mockProvider) setFailTiles(fail bool) {
	m.mutex.Lock()
	m.failTiles = fail
	m.mutex.Unlock()
}

func newTestSurface(t *testing.T, mp *mockProvider, options ...surface.Option) *surface.Surface {
	s, err := surface.New(mp, append([]surface.Option{surface.WithSeed(42)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func waitAll(t *testing.T, handles []*coordinator.Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range handles {
		require.NoError(t, h.Wait(ctx))
	}
}

func TestLoadVisibleFetchesEachTileOnce(t *testing.T) {
	mp := newMockProvider()
	s := newTestSurface(t, mp)

	cam := geometry.Camera{}
	coords := geometry.VisibleTiles(cam, vp)

	handles := s.LoadVisible(cam, vp)
	require.Len(t, handles, len(coords))
	waitAll(t, handles)

	for _, tc := range coords {
		require.Equal(t, 1, mp.calls(tc.X, tc.Y), "tile (%d,%d)", tc.X, tc.Y)
	}
	require.Equal(t, len(coords), s.TileCacheLen())

	// Everything visible is now fresh; nothing to request.
	require.Empty(t, s.LoadVisible(cam, vp))
}

func TestPanLoadsOnlyNewTiles(t *testing.T) {
	mp := newMockProvider()
	s := newTestSurface(t, mp)

	camA := geometry.Camera{}
	camB := geometry.Camera{X: -2000}

	waitAll(t, s.LoadVisible(camA, vp))

	loaded := make(map[geometry.TileCoord]struct{})
	for _, tc := range geometry.VisibleTiles(camA, vp) {
		loaded[tc] = struct{}{}
	}
	var wantNew int
	for _, tc := range geometry.VisibleTiles(camB, vp) {
		if _, ok := loaded[tc]; !ok {
			wantNew++
		}
	}
	require.NotZero(t, wantNew)

	handles := s.LoadVisible(camB, vp)
	require.Len(t, handles, wantNew)
	waitAll(t, handles)

	// No tile was ever fetched more than once.
	for _, tc := range geometry.VisibleTiles(camB, vp) {
		require.Equal(t, 1, mp.calls(tc.X, tc.Y))
	}
}

func TestGetTileCachesResult(t *testing.T) {
	mp := newMockProvider()
	s := newTestSurface(t, mp)
	ctx := context.Background()

	items, state, err := s.GetTile(ctx, 3, -1)
	require.NoError(t, err)
	require.Equal(t, tcache.Miss, state)
	require.Len(t, items, geometry.ItemsPerTile)

	again, state, err := s.GetTile(ctx, 3, -1)
	require.NoError(t, err)
	require.Equal(t, tcache.Hit, state)
	require.Equal(t, items, again)
	require.Equal(t, 1, mp.calls(3, -1))
}

func TestPlacementStableAcrossSessionsWithSameSeed(t *testing.T) {
	mp := newMockProvider()
	ctx := context.Background()

	s1 := newTestSurface(t, mp)
	first, _, err := s1.GetTile(ctx, 2, 1)
	require.NoError(t, err)

	s2 := newTestSurface(t, mp)
	second, _, err := s2.GetTile(ctx, 2, 1)
	require.NoError(t, err)

	// Same seed, same tile, same provider content: identical placement.
	require.Equal(t, first, second)

	// Every placed item carries its tile coordinate and a bounded rotation.
	for _, ci := range first {
		require.Equal(t, 2, ci.TileX)
		require.Equal(t, 1, ci.TileY)
		require.LessOrEqual(t, ci.Rotation, 3.0)
		require.GreaterOrEqual(t, ci.Rotation, -3.0)
	}
}

func TestSeedPropagation(t *testing.T) {
	mp := newMockProvider()
	s, err := surface.New(mp, surface.WithSeed(777))
	require.NoError(t, err)
	defer s.Close()

	require.EqualValues(t, 777, s.Seed())
	_, _, err = s.GetTile(context.Background(), 0, 0)
	require.NoError(t, err)

	mp.mutex.Lock()
	seen := mp.lastSeed
	mp.mutex.Unlock()
	require.EqualValues(t, 777, seen)

	// Without WithSeed a random session seed is drawn.
	s2, err := surface.New(mp)
	require.NoError(t, err)
	defer s2.Close()
	require.NotZero(t, s2.Seed())
}

func TestUpstreamFailureYieldsEmptyTile(t *testing.T) {
	mp := newMockProvider()
	mp.setFailTiles(true)
	s := newTestSurface(t, mp)

	items, state, err := s.GetTile(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Equal(t, tcache.Miss, state)
	require.Empty(t, items)
	require.Equal(t, 1, mp.calls(0, 0))
}

func TestGetTileHonorsContext(t *testing.T) {
	mp := newMockProvider()
	block := make(chan struct{})
	mp.setBlock(block)
	defer close(block)
	s := newTestSurface(t, mp)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err := s.GetTile(ctx, 0, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFilterChangeInvalidatesTiles(t *testing.T) {
	mp := newMockProvider()
	block := make(chan struct{})
	mp.setBlock(block)
	s := newTestSurface(t, mp, surface.WithConcurrency(1))

	cam := geometry.Camera{}
	handles := s.LoadVisible(cam, vp)
	require.NotEmpty(t, handles)

	// One fetch is running against the upstream; the rest are queued. The
	// filter change purges the cache and drops the queue.
	s.SetFilters(model.Filters{Languages: []string{"ml"}})
	close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var discarded int
	for _, h := range handles {
		if err := h.Wait(ctx); errors.Is(err, coordinator.ErrDiscarded) {
			discarded++
		}
	}
	require.Equal(t, len(handles)-1, discarded)

	// The running fetch landed under the old fingerprint; lookups under the
	// new filter context never reach it.
	require.Equal(t, 1, s.TileCacheLen())
	for _, tc := range geometry.VisibleTiles(cam, vp) {
		_, ok := s.TileItems(tc.X, tc.Y)
		require.False(t, ok)
	}
}

func TestQueryChangeInvalidatesTiles(t *testing.T) {
	mp := newMockProvider()
	s := newTestSurface(t, mp)

	waitAll(t, s.LoadVisible(geometry.Camera{}, vp))
	require.NotZero(t, s.TileCacheLen())

	s.SetQuery("palm leaf")
	require.Zero(t, s.TileCacheLen())

	// Setting the same query again is a no-op.
	waitAll(t, s.LoadVisible(geometry.Camera{}, vp))
	before := s.TileCacheLen()
	s.SetQuery("palm leaf")
	require.Equal(t, before, s.TileCacheLen())
}

func TestStaleServesAndRevalidatesOnce(t *testing.T) {
	mp := newMockProvider()
	mc := clock.NewMock()
	s := newTestSurface(t, mp, surface.WithTileCacheOptions(
		tcache.WithClock(mc),
		tcache.WithFreshTTL(time.Minute),
		tcache.WithStaleTTL(3*time.Minute),
	))

	_, _, err := s.GetTile(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, mp.calls(0, 0))

	// Entry goes stale; every read still serves it.
	mc.Add(2 * time.Minute)
	block := make(chan struct{})
	mp.setBlock(block)

	for i := 0; i < 3; i++ {
		items, ok := s.TileItems(0, 0)
		require.True(t, ok)
		require.Len(t, items, geometry.ItemsPerTile)
	}
	require.Eventually(t, func() bool {
		return mp.calls(0, 0) == 2
	}, 5*time.Second, 10*time.Millisecond)

	// Further stale reads coalesce into the in-flight revalidation.
	_, ok := s.TileItems(0, 0)
	require.True(t, ok)
	require.Equal(t, 2, mp.calls(0, 0))

	close(block)
	require.Eventually(t, func() bool {
		_, state, err := s.GetTile(context.Background(), 0, 0)
		return err == nil && state == tcache.Hit
	}, 5*time.Second, 10*time.Millisecond)
}

func TestVisibleItemsCullsToViewport(t *testing.T) {
	mp := newMockProvider()
	s := newTestSurface(t, mp)
	cam := geometry.Camera{}

	waitAll(t, s.LoadVisible(cam, vp))

	visible := s.VisibleItems(cam, vp)
	require.NotEmpty(t, visible)
	for _, ci := range visible {
		b := ci.Bounds()
		require.Less(t, b.X+cam.X, vp.Width+s.CullMargin())
		require.Greater(t, b.X+b.Width+cam.X, -s.CullMargin())
	}

	// The padding tiles exist in cache but their items are culled out, so
	// the render list is strictly smaller than the cached item count.
	var cached int
	for _, tc := range geometry.VisibleTiles(cam, vp) {
		items, ok := s.TileItems(tc.X, tc.Y)
		require.True(t, ok)
		cached += len(items)
	}
	require.Less(t, len(visible), cached)
}

func TestRepackVisible(t *testing.T) {
	mp := newMockProvider()
	s := newTestSurface(t, mp)
	cam := geometry.Camera{}

	waitAll(t, s.LoadVisible(cam, vp))

	packed := s.RepackVisible(cam, vp)
	require.NotEmpty(t, packed)

	// Dense layout: all items in non-negative rows, no overlap.
	for i := 0; i < len(packed); i++ {
		require.GreaterOrEqual(t, packed[i].Y, 0.0)
		for j := i + 1; j < len(packed); j++ {
			require.False(t, packed[i].Bounds().Intersects(packed[j].Bounds()))
		}
	}
}

func TestTileLoadedEvents(t *testing.T) {
	mp := newMockProvider()
	s := newTestSurface(t, mp)

	events, cancel := s.OnTileLoaded()
	defer cancel()

	_, _, err := s.GetTile(context.Background(), 4, 4)
	require.NoError(t, err)

	ev := recvEvent(t, events)
	require.Equal(t, geometry.TileCoord{X: 4, Y: 4}, ev.Tile)
	require.Equal(t, geometry.ItemsPerTile, ev.Count)
	require.NoError(t, ev.Err)

	// A failed fetch is also a terminal event.
	mp.setFailTiles(true)
	_, _, err = s.GetTile(context.Background(), 5, 5)
	require.NoError(t, err)

	ev = recvEvent(t, events)
	require.Equal(t, geometry.TileCoord{X: 5, Y: 5}, ev.Tile)
	require.Error(t, ev.Err)
	require.Zero(t, ev.Count)
}

func recvEvent(t *testing.T, ch <-chan surface.TileLoaded) surface.TileLoaded {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tile event")
	}
	return surface.TileLoaded{}
}
