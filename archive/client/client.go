package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/time/rate"

	"github.com/tessera-archive/go-tessera/apierror"
	"github.com/tessera-archive/go-tessera/archive/model"
)

var log = logging.Logger("archive/client")

const (
	searchPath = "search"
	itemsPath  = "items"

	// tileFetchSlack over-fetches per tile so that dropping items without a
	// thumbnail still usually fills the tile.
	tileFetchSlack = 2
)

// Client is an HTTP client for the upstream archive API.
type Client struct {
	c         *http.Client
	searchURL *url.URL
	itemsURL  *url.URL
	limiter   *rate.Limiter
}

// Client must implement Provider.
var _ Provider = (*Client)(nil)

// New creates an archive provider client for the given upstream base URL.
func New(baseURL string, options ...Option) (*Client, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url must have http or https scheme: %s", baseURL)
	}
	u.Path = ""

	return &Client{
		c:         opts.httpClient,
		searchURL: u.JoinPath(searchPath),
		itemsURL:  u.JoinPath(itemsPath),
		limiter:   opts.limiter,
	}, nil
}

// Search returns one page of results. Filters are applied client-side over
// the upstream page; when they are active the returned Total is scaled from
// the upstream total by the observed match ratio on this page. That estimate
// is best-effort and bias-prone on small or skewed samples, so when the
// sample offers no signal the explicit model.TotalUnknown sentinel is
// returned instead of a guess.
func (c *Client) Search(ctx context.Context, query string, filters model.Filters, page, pageSize int) (*model.SearchResult, error) {
	raw, err := c.searchUpstream(ctx, query, page, pageSize)
	if err != nil {
		return nil, err
	}

	if filters.IsZero() {
		return raw, nil
	}

	matched := make([]model.Item, 0, len(raw.Items))
	for _, it := range raw.Items {
		if filters.Match(it) {
			matched = append(matched, it)
		}
	}

	total := model.TotalUnknown
	switch {
	case len(raw.Items) == 0:
		total = 0
	case len(matched) == 0 || raw.Total < 0:
		// No signal to scale from.
	default:
		total = raw.Total * len(matched) / len(raw.Items)
	}

	return &model.SearchResult{
		Items:  matched,
		Total:  total,
		Facets: raw.Facets,
	}, nil
}

// FetchTile returns deduplicated, thumbnail-bearing items for one tile. The
// upstream page is derived from the tile coordinate and session seed.
// Malformed items and items without a thumbnail are dropped here, before
// placement; that is a filtering decision, not an error.
func (c *Client) FetchTile(ctx context.Context, req TileRequest) ([]model.Item, error) {
	if req.Limit < 1 {
		return nil, nil
	}

	raw, err := c.searchUpstream(ctx, req.Query, req.UpstreamPage(), req.Limit*tileFetchSlack)
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, req.Limit)
	seen := make(map[string]struct{}, req.Limit)
	for _, it := range raw.Items {
		if it.ID == "" || !it.HasThumbnail() {
			continue
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		if !req.Filters.Match(it) {
			continue
		}
		seen[it.ID] = struct{}{}
		items = append(items, it)
		if len(items) == req.Limit {
			break
		}
	}
	return items, nil
}

// ItemDetail returns the full record for one item. A missing item yields an
// apierror with status 404.
func (c *Client) ItemDetail(ctx context.Context, id string) (*model.ItemDetail, error) {
	u := c.itemsURL.JoinPath(url.PathEscape(id))

	var detail model.ItemDetail
	if err := c.getJSON(ctx, u, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) searchUpstream(ctx context.Context, query string, page, pageSize int) (*model.SearchResult, error) {
	u := *c.searchURL
	q := u.Query()
	if query != "" {
		q.Set("q", query)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	var result model.SearchResult
	if err := c.getJSON(ctx, &u, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, u *url.URL, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Add("Accept", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		log.Debugw("Upstream request failed", "url", u.String(), "status", resp.StatusCode)
		return apierror.FromResponse(resp.StatusCode, body)
	}

	return json.Unmarshal(body, out)
}
