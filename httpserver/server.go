// Package httpserver exposes the archive surface over idempotent HTTP GETs:
// a tile endpoint, a search endpoint, and an item detail endpoint. Responses
// carry an X-Cache header communicating the internal HIT/STALE/MISS state so
// the freshness policy is observable from outside.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strconv"

	logging "github.com/ipfs/go-log/v2"

	"github.com/hashicorp/go-multierror"

	"github.com/tessera-archive/go-tessera/apierror"
	"github.com/tessera-archive/go-tessera/archive/client"
	"github.com/tessera-archive/go-tessera/archive/model"
	"github.com/tessera-archive/go-tessera/surface"
	"github.com/tessera-archive/go-tessera/tcache"
)

var log = logging.Logger("httpserver")

const (
	tilesPath  = "/tiles"
	searchPath = "/search"
	itemsPath  = "/items/"

	defaultSearchPageSize = 40
	maxPageSize           = 200
)

// Server serves the tile and search API for one Surface.
type Server struct {
	surf     *surface.Surface
	provider client.Provider
	mux      *http.ServeMux
	closer   io.Closer
	addr     net.Addr

	// ownedSurface is set when the Server constructed its own Surface and
	// is responsible for closing it.
	ownedSurface *surface.Surface
}

var _ http.Handler = (*Server)(nil)

// New creates a Server for an existing Surface and provider. It listens on
// address unless WithServer(false) is given, in which case serving requests
// through ServeHTTP is the caller's responsibility.
func New(address string, surf *surface.Surface, provider client.Provider, options ...Option) (*Server, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	s := &Server{
		surf:     surf,
		provider: provider,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc(tilesPath, s.handleTile)
	s.mux.HandleFunc(searchPath, s.handleSearch)
	s.mux.HandleFunc(itemsPath, s.handleItemDetail)

	if opts.startServer {
		l, err := net.Listen("tcp", address)
		if err != nil {
			return nil, err
		}
		s.closer = l
		s.addr = l.Addr()

		server := &http.Server{
			Handler: s,
			Addr:    l.Addr().String(),
		}
		go server.Serve(l)
	}

	return s, nil
}

// NewFromConfig wires the full stack from environment config: provider
// client, surface, server. The returned Server owns the Surface; Close
// shuts both down.
func NewFromConfig(cfg Config) (*Server, error) {
	provider, err := client.New(cfg.UpstreamURL, client.WithRateLimit(cfg.UpstreamRPS, cfg.Concurrency))
	if err != nil {
		return nil, fmt.Errorf("provider client: %w", err)
	}

	surf, err := surface.New(provider,
		surface.WithConcurrency(cfg.Concurrency),
		surface.WithTileCacheOptions(
			tcache.WithFreshTTL(cfg.FreshTTL),
			tcache.WithStaleTTL(cfg.StaleTTL),
		),
		surface.WithSearchCacheOptions(
			tcache.WithFreshTTL(cfg.FreshTTL),
			tcache.WithStaleTTL(cfg.StaleTTL),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("surface: %w", err)
	}

	s, err := New(cfg.ListenAddr, surf, provider)
	if err != nil {
		surf.Close()
		return nil, err
	}
	s.ownedSurface = surf
	return s, nil
}

// Addr returns the listen address, or nil when not serving.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close stops the listener and, when the Server owns its Surface, closes
// that too. Errors from the individual closes are aggregated.
func (s *Server) Close() error {
	var errs error
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if s.ownedSurface != nil {
		if err := s.ownedSurface.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apierror.New(errors.New("method not allowed"), http.StatusMethodNotAllowed))
		return
	}
	s.mux.ServeHTTP(w, r)
}

type tileResponse struct {
	TileX int                `json:"tileX"`
	TileY int                `json:"tileY"`
	Items []model.CanvasItem `json:"items"`
}

// handleTile serves one tile's placed items. The query and filter params
// become the surface's current context, mirroring the single-session design
// where search text and filters are global state.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	tileX, err := strconv.Atoi(q.Get("x"))
	if err != nil {
		writeError(w, apierror.New(errors.New("invalid tile x"), http.StatusBadRequest))
		return
	}
	tileY, err := strconv.Atoi(q.Get("y"))
	if err != nil {
		writeError(w, apierror.New(errors.New("invalid tile y"), http.StatusBadRequest))
		return
	}
	filters, err := parseFilters(q.Get("filters"))
	if err != nil {
		writeError(w, apierror.New(err, http.StatusBadRequest))
		return
	}

	s.surf.SetQuery(q.Get("q"))
	s.surf.SetFilters(filters)

	items, state, err := s.surf.GetTile(r.Context(), tileX, tileY)
	if err != nil {
		writeError(w, apierror.New(err, http.StatusServiceUnavailable))
		return
	}
	if items == nil {
		items = []model.CanvasItem{}
	}

	writeCacheState(w, state)
	writeJSON(w, tileResponse{TileX: tileX, TileY: tileY, Items: items})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters, err := parseFilters(q.Get("filters"))
	if err != nil {
		writeError(w, apierror.New(err, http.StatusBadRequest))
		return
	}
	page, err := parseIntDefault(q.Get("page"), 0)
	if err != nil || page < 0 {
		writeError(w, apierror.New(errors.New("invalid page"), http.StatusBadRequest))
		return
	}
	pageSize, err := parseIntDefault(q.Get("pageSize"), defaultSearchPageSize)
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		writeError(w, apierror.New(errors.New("invalid page size"), http.StatusBadRequest))
		return
	}

	result, state, err := s.surf.SearchPage(r.Context(), q.Get("q"), filters, page, pageSize)
	if err != nil {
		writeError(w, apierror.New(err, http.StatusServiceUnavailable))
		return
	}
	if result.Items == nil {
		result.Items = []model.Item{}
	}

	writeCacheState(w, state)
	writeJSON(w, result)
}

func (s *Server) handleItemDetail(w http.ResponseWriter, r *http.Request) {
	id := path.Base(r.URL.Path)
	if id == "" || id == "items" {
		writeError(w, apierror.New(errors.New("missing item id"), http.StatusBadRequest))
		return
	}

	detail, err := s.provider.ItemDetail(r.Context(), id)
	if err != nil {
		status := apierror.StatusOf(err)
		if status == 0 {
			status = http.StatusBadGateway
		}
		writeError(w, apierror.New(err, status))
		return
	}
	writeJSON(w, detail)
}

// parseFilters decodes the JSON-encoded filter object query parameter. An
// empty parameter means no constraint.
func parseFilters(raw string) (model.Filters, error) {
	var f model.Filters
	if raw == "" {
		return f, nil
	}
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return f, fmt.Errorf("invalid filters: %w", err)
	}
	return f, nil
}

func parseIntDefault(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeCacheState(w http.ResponseWriter, state tcache.State) {
	w.Header().Set("X-Cache", state.String())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorw("Cannot encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err *apierror.Error) {
	status := err.Status()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(apierror.EncodeError(err))
}
