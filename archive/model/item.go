// Package model defines the data types exchanged between the archive
// provider, the caching core, and the surface: archive items, their placed
// on-canvas form, search results, and filter sets with canonical
// fingerprinting for cache keys.
package model

import (
	"github.com/tessera-archive/go-tessera/geometry"
)

// TotalUnknown is the sentinel result count reported when the upstream
// cannot reliably count filtered results. Callers must treat it as "do not
// display a count", never as zero results.
const TotalUnknown = -1

// Item is one digitized artefact as returned by the content provider. The
// core treats it as an opaque payload except for ID, used for cache identity,
// and ThumbnailURL, whose absence makes the item un-renderable.
type Item struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Year         int      `json:"year,omitempty"`
	Language     string   `json:"language,omitempty"`
	Type         string   `json:"type,omitempty"`
	Collection   string   `json:"collection,omitempty"`
	Authors      []string `json:"authors,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	SourceURL    string   `json:"sourceUrl"`
}

// HasThumbnail reports whether the item can be rendered as a card.
func (it Item) HasThumbnail() bool {
	return it.ThumbnailURL != ""
}

// ItemDetail is the full record for a single item, used by detail drawers
// and viewers outside the caching core.
type ItemDetail struct {
	Item
	Description string   `json:"description,omitempty"`
	Subjects    []string `json:"subjects,omitempty"`
	PageCount   int      `json:"pageCount,omitempty"`
	IIIFManiURL string   `json:"iiifManifestUrl,omitempty"`
}

// CanvasItem is an Item with its world-space placement. For a fixed
// (TileX, TileY, index-within-tile) the placement fields are bit-for-bit
// reproducible across fetches.
type CanvasItem struct {
	Item
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	TileX    int     `json:"tileX"`
	TileY    int     `json:"tileY"`
}

// Bounds returns the item's world-space bounding box for culling.
func (ci CanvasItem) Bounds() geometry.Rect {
	return geometry.Rect{X: ci.X, Y: ci.Y, Width: ci.Width, Height: ci.Height}
}

// SearchResult is one page of search results from the provider. Total may be
// TotalUnknown when filters are applied client-side over an upstream that
// cannot natively filter.
type SearchResult struct {
	Items  []Item                    `json:"items"`
	Total  int                       `json:"total"`
	Facets map[string]map[string]int `json:"facets,omitempty"`
}
