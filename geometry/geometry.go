// Package geometry provides the pure viewport math for the archive surface:
// mapping a camera offset and viewport size to the set of visible tile
// coordinates, ordering tiles by distance from the viewport center, and
// culling placed items against the visible area.
//
// All functions are pure arithmetic with no I/O and no state. Malformed
// input (NaN camera, non-positive viewport) yields "nothing visible" rather
// than an error.
package geometry

import (
	"math"
	"sort"
)

// Card and tile layout constants. A tile is a fixed grid of cards; its pixel
// size is derived from the card size, the gap between cards, and the grid
// arity. These are compile-time constants, not per-tile state.
const (
	CardWidth  = 160
	CardHeight = 200
	CardGap    = 40

	TileColumns = 3
	TileRows    = 3

	TileWidth    = TileColumns * (CardWidth + CardGap)
	TileHeight   = TileRows * (CardHeight + CardGap)
	ItemsPerTile = TileColumns * TileRows

	// DefaultCullMargin is the extra screen-space border, in pixels, kept
	// around the viewport when culling so cards do not pop in at the edges.
	DefaultCullMargin = 200
)

// Camera is the offset of the world plane relative to the viewport origin.
// Panning moves the camera; there is no zoom dimension.
type Camera struct {
	X float64
	Y float64
}

// Viewport is the visible screen area in pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// TileCoord identifies one fixed-size cell of the infinite plane.
type TileCoord struct {
	X int
	Y int
}

// Origin returns the world-space position of the tile's top-left corner.
func (t TileCoord) Origin() (x, y float64) {
	return float64(t.X) * TileWidth, float64(t.Y) * TileHeight
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && r.X+r.Width > o.X &&
		r.Y < o.Y+o.Height && r.Y+r.Height > o.Y
}

// Bounded is anything with a world-space bounding box.
type Bounded interface {
	Bounds() Rect
}

// VisibleTiles returns the tile coordinates covering the world-space region
// [-cam, -cam+viewport], padded by one tile on every side so that fast
// panning does not reveal unloaded tiles at the edges. The result is in
// row-major order; use SortByCenterDistance for load prioritization.
func VisibleTiles(cam Camera, vp Viewport) []TileCoord {
	if !validView(cam, vp) {
		return nil
	}

	minX := int(math.Floor(-cam.X/TileWidth)) - 1
	maxX := int(math.Floor((-cam.X+vp.Width)/TileWidth)) + 1
	minY := int(math.Floor(-cam.Y/TileHeight)) - 1
	maxY := int(math.Floor((-cam.Y+vp.Height)/TileHeight)) + 1

	tiles := make([]TileCoord, 0, (maxX-minX+1)*(maxY-minY+1))
	for ty := minY; ty <= maxY; ty++ {
		for tx := minX; tx <= maxX; tx++ {
			tiles = append(tiles, TileCoord{X: tx, Y: ty})
		}
	}
	return tiles
}

// SortByCenterDistance orders tiles in place by Manhattan distance from the
// tile containing the viewport center, nearest first. The order is a
// scheduling hint for center-first loading, not a correctness requirement.
func SortByCenterDistance(tiles []TileCoord, cam Camera, vp Viewport) {
	if !validView(cam, vp) {
		return
	}
	cx := int(math.Floor((-cam.X + vp.Width/2) / TileWidth))
	cy := int(math.Floor((-cam.Y + vp.Height/2) / TileHeight))

	sort.SliceStable(tiles, func(i, j int) bool {
		return manhattan(tiles[i], cx, cy) < manhattan(tiles[j], cx, cy)
	})
}

func manhattan(t TileCoord, cx, cy int) int {
	dx := t.X - cx
	if dx < 0 {
		dx = -dx
	}
	dy := t.Y - cy
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Cull filters items to those whose screen-space bounding box intersects the
// viewport expanded by margin on every side. It runs on every camera delta
// during momentum scrolling, so it makes a single allocation for the result.
func Cull[T Bounded](items []T, cam Camera, vp Viewport, margin float64) []T {
	if !validView(cam, vp) {
		return nil
	}
	view := Rect{
		X:      -margin,
		Y:      -margin,
		Width:  vp.Width + 2*margin,
		Height: vp.Height + 2*margin,
	}
	visible := make([]T, 0, len(items))
	for _, it := range items {
		b := it.Bounds()
		b.X += cam.X
		b.Y += cam.Y
		if view.Intersects(b) {
			visible = append(visible, it)
		}
	}
	return visible
}

func validView(cam Camera, vp Viewport) bool {
	if math.IsNaN(cam.X) || math.IsNaN(cam.Y) {
		return false
	}
	return vp.Width > 0 && vp.Height > 0
}
