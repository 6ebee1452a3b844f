package surface

import (
	"context"
	"fmt"

	"github.com/tessera-archive/go-tessera/archive/model"
	"github.com/tessera-archive/go-tessera/tcache"
)

// SearchState is the rendering layer's view of search mode. Results are
// append-only across pagination within one query and fully replaced when
// the query or filters change. Total is model.TotalUnknown when no reliable
// count exists; callers must render that as "no count", not zero.
type SearchState struct {
	Results []model.Item
	Total   int
	Loading bool
	Page    int
	HasMore bool
	Err     error
}

// Search returns a snapshot of the current search state.
func (s *Surface) Search() SearchState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.search
}

// NextSearchPage fetches the next page of results for the current query and
// filter set and appends it to the search state. Page results are cached in
// the search namespace, independent of the tile namespace. Upstream failure
// leaves existing results intact and records the error in the state; it is
// never returned. The error return is only for context cancellation.
func (s *Surface) NextSearchPage(ctx context.Context) (SearchState, error) {
	s.mutex.Lock()
	if s.search.Loading {
		state := s.search
		s.mutex.Unlock()
		return state, nil
	}
	s.search.Loading = true
	query, filters, page := s.query, s.filters, s.search.Page
	s.mutex.Unlock()

	key := s.searchKey(query, filters, page)

	ent, state := s.searches.Get(key)
	switch state {
	case tcache.Hit:
	case tcache.Stale:
		s.coord.Request(key, s.searchFetch(key, query, filters, page))
	default:
		h := s.coord.Request(key, s.searchFetch(key, query, filters, page))
		if err := h.Wait(ctx); err != nil && ctx.Err() != nil {
			s.mutex.Lock()
			s.search.Loading = false
			state := s.search
			s.mutex.Unlock()
			return state, ctx.Err()
		}
		ent, _ = s.searches.Get(key)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.search.Loading = false

	// The query or filters may have changed while the fetch ran; the result
	// belongs to the old context and must not leak into the new state.
	if s.query != query || s.filters.Fingerprint() != filters.Fingerprint() {
		return s.search, nil
	}

	if ent.Err != nil {
		s.search.Err = ent.Err
		s.search.HasMore = false
		return s.search, nil
	}

	res := ent.Payload
	s.search.Err = nil
	s.search.Results = append(s.search.Results, res.Items...)
	s.search.Total = res.Total
	s.search.Page = page + 1

	if res.Total >= 0 {
		s.search.HasMore = len(s.search.Results) < res.Total
	} else {
		// Unknown total: assume more while pages keep producing items.
		s.search.HasMore = len(res.Items) > 0
	}
	return s.search, nil
}

// SearchPage fetches one page of results directly, bypassing pagination
// state. Used by the HTTP facade, where the caller owns pagination.
func (s *Surface) SearchPage(ctx context.Context, query string, filters model.Filters, page, pageSize int) (model.SearchResult, tcache.State, error) {
	key := fmt.Sprintf("search:q=%s:f=%s:p=%d:n=%d", query, filters.Fingerprint(), page, pageSize)

	ent, state := s.searches.Get(key)
	switch state {
	case tcache.Hit:
		return ent.Payload, state, nil
	case tcache.Stale:
		s.coord.Request(key, s.searchPageFetch(key, query, filters, page, pageSize))
		return ent.Payload, state, nil
	}

	h := s.coord.Request(key, s.searchPageFetch(key, query, filters, page, pageSize))
	if err := h.Wait(ctx); err != nil && ctx.Err() != nil {
		return model.SearchResult{}, tcache.Miss, ctx.Err()
	}
	ent, _ = s.searches.Get(key)
	if ent.Err != nil {
		return model.SearchResult{Total: model.TotalUnknown}, tcache.Miss, nil
	}
	return ent.Payload, tcache.Miss, nil
}

// SearchCacheLen reports the number of search cache entries.
func (s *Surface) SearchCacheLen() int {
	return s.searches.Len()
}

func (s *Surface) searchKey(query string, filters model.Filters, page int) string {
	return fmt.Sprintf("search:q=%s:f=%s:p=%d:n=%d", query, filters.Fingerprint(), page, s.pageSize)
}

func (s *Surface) searchFetch(key, query string, filters model.Filters, page int) func(ctx context.Context) error {
	return s.searchPageFetch(key, query, filters, page, s.pageSize)
}

func (s *Surface) searchPageFetch(key, query string, filters model.Filters, page, pageSize int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		res, err := s.provider.Search(ctx, query, filters, page, pageSize)
		if err != nil {
			log.Errorw("Cannot fetch search page", "err", err, "query", query, "page", page)
			s.searches.SetError(key, err)
			return err
		}
		s.searches.Set(key, *res)
		return nil
	}
}
