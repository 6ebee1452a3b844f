// Package placement computes stable world-space positions for archive items
// within tiles. Placement is a pure function of (tileX, tileY, index) and
// fixed layout constants, so re-fetching a tile reproduces the exact same
// layout, and cached item lists can be reused across renders without being
// re-placed.
package placement

import (
	"github.com/tessera-archive/go-tessera/geometry"
)

// MaxRotationDeg bounds the scatter rotation applied to each card.
const MaxRotationDeg = 3.0

// Large odd multipliers for the rotation hash. Chosen to avoid short-period
// collisions across adjacent tiles.
const (
	rotMulX = 2654435761
	rotMulY = 1597334677
)

// Placement is a computed card position on the world plane.
type Placement struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
}

// Place returns the world-space placement for the item at the given ordinal
// position within a tile. Same inputs always produce the same output; there
// is no wall-clock or external randomness involved. Grid cells within a tile
// never overlap.
func Place(tileX, tileY, index int) Placement {
	col := index % geometry.TileColumns
	row := index / geometry.TileColumns

	ox, oy := geometry.TileCoord{X: tileX, Y: tileY}.Origin()

	return Placement{
		X:        ox + float64(col)*(geometry.CardWidth+geometry.CardGap) + geometry.CardGap/2,
		Y:        oy + float64(row)*(geometry.CardHeight+geometry.CardGap) + geometry.CardGap/2,
		Width:    geometry.CardWidth,
		Height:   geometry.CardHeight,
		Rotation: rotation(tileX, tileY, index),
	}
}

// PlaceDense returns the placement for the item at ordinal position index in
// a single sequential grid of the given column count, anchored at the world
// origin. This is the repack mode used when active filters reduce item
// density so far that the sparse tile grid would show mostly empty tiles.
func PlaceDense(index, columns int) Placement {
	if columns < 1 {
		columns = geometry.TileColumns
	}
	col := index % columns
	row := index / columns

	return Placement{
		X:        float64(col)*(geometry.CardWidth+geometry.CardGap) + geometry.CardGap/2,
		Y:        float64(row)*(geometry.CardHeight+geometry.CardGap) + geometry.CardGap/2,
		Width:    geometry.CardWidth,
		Height:   geometry.CardHeight,
		Rotation: rotation(0, 0, index),
	}
}

// rotation derives a small stable rotation in [-MaxRotationDeg,
// +MaxRotationDeg] from the tile coordinate and ordinal index.
func rotation(tileX, tileY, index int) float64 {
	h := uint64(int64(tileX)*rotMulX + int64(tileY)*rotMulY + int64(index))
	// Finalizer from splitmix64 to decorrelate adjacent inputs.
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33

	u := float64(h>>11) / float64(uint64(1)<<53)
	return (u*2 - 1) * MaxRotationDeg
}
