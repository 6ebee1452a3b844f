package surface_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tessera-archive/go-tessera/archive/model"
	"github.com/tessera-archive/go-tessera/surface"
	"github.com/tessera-archive/go-tessera/tcache"
	"github.com/tessera-archive/go-tessera/test"
)

func searchCalls(mp *mockProvider) int {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()
	return mp.searchCalls
}

func TestNextSearchPageAppends(t *testing.T) {
	mp := newMockProvider()
	items := test.RandomItems(5)
	mp.searchPages[0] = model.SearchResult{Items: items[:3], Total: 5}
	mp.searchPages[1] = model.SearchResult{Items: items[3:], Total: 5}
	s := newTestSurface(t, mp, surface.WithPageSize(3))
	ctx := context.Background()

	state, err := s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.Len(t, state.Results, 3)
	require.Equal(t, 5, state.Total)
	require.Equal(t, 1, state.Page)
	require.True(t, state.HasMore)
	require.False(t, state.Loading)

	state, err = s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.Equal(t, items, state.Results)
	require.False(t, state.HasMore)
	require.Equal(t, 2, searchCalls(mp))
}

func TestSearchPagesCachedAcrossQueryFlips(t *testing.T) {
	mp := newMockProvider()
	mp.searchPages[0] = model.SearchResult{Items: test.RandomItems(3), Total: 3}
	s := newTestSurface(t, mp, surface.WithPageSize(3))
	ctx := context.Background()

	_, err := s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, searchCalls(mp))

	// A different query misses the cache.
	s.SetQuery("palm leaf")
	_, err = s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, searchCalls(mp))

	// Returning to the original query finds its first page still cached.
	s.SetQuery("")
	state, err := s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.Len(t, state.Results, 3)
	require.Equal(t, 2, searchCalls(mp))
}

func TestQueryChangeResetsSearchState(t *testing.T) {
	mp := newMockProvider()
	mp.searchPages[0] = model.SearchResult{Items: test.RandomItems(3), Total: 3}
	s := newTestSurface(t, mp, surface.WithPageSize(3))

	_, err := s.NextSearchPage(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, s.Search().Results)

	s.SetQuery("maps")
	state := s.Search()
	require.Empty(t, state.Results)
	require.Zero(t, state.Page)
	require.Equal(t, model.TotalUnknown, state.Total)
	require.False(t, state.HasMore)

	// Filter changes reset the same way.
	s.SetQuery("")
	_, err = s.NextSearchPage(context.Background())
	require.NoError(t, err)
	s.SetFilters(model.Filters{Types: []string{"map"}})
	require.Empty(t, s.Search().Results)
}

func TestSearchFailureKeepsExistingResults(t *testing.T) {
	mp := newMockProvider()
	mp.searchPages[0] = model.SearchResult{Items: test.RandomItems(3), Total: 9}
	s := newTestSurface(t, mp, surface.WithPageSize(3))
	ctx := context.Background()

	state, err := s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.Len(t, state.Results, 3)
	require.True(t, state.HasMore)

	mp.mutex.Lock()
	mp.failSearch = true
	mp.mutex.Unlock()

	state, err = s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.Error(t, state.Err)
	require.False(t, state.HasMore)
	// The loaded page survives the failure, and pagination did not advance.
	require.Len(t, state.Results, 3)
	require.Equal(t, 1, state.Page)
}

func TestSearchUnknownTotal(t *testing.T) {
	mp := newMockProvider()
	mp.searchPages[0] = model.SearchResult{Items: test.RandomItems(3), Total: model.TotalUnknown}
	mp.searchPages[1] = model.SearchResult{Total: model.TotalUnknown}
	s := newTestSurface(t, mp, surface.WithPageSize(3))
	ctx := context.Background()

	// Unknown total with a full page: assume more.
	state, err := s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.Equal(t, model.TotalUnknown, state.Total)
	require.True(t, state.HasMore)

	// An empty page ends pagination.
	state, err = s.NextSearchPage(ctx)
	require.NoError(t, err)
	require.False(t, state.HasMore)
	require.Len(t, state.Results, 3)
}

func TestSearchPageDirect(t *testing.T) {
	mp := newMockProvider()
	mp.searchPages[2] = model.SearchResult{Items: test.RandomItems(4), Total: 100}
	s := newTestSurface(t, mp)
	ctx := context.Background()

	res, state, err := s.SearchPage(ctx, "palm", model.Filters{}, 2, 4)
	require.NoError(t, err)
	require.Equal(t, tcache.Miss, state)
	require.Len(t, res.Items, 4)
	require.Equal(t, 100, res.Total)

	// Second read is a cache hit, no second upstream call.
	res, state, err = s.SearchPage(ctx, "palm", model.Filters{}, 2, 4)
	require.NoError(t, err)
	require.Equal(t, tcache.Hit, state)
	require.Len(t, res.Items, 4)
	require.Equal(t, 1, searchCalls(mp))
	require.Equal(t, 1, s.SearchCacheLen())
}
