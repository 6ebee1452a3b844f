package placement_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tessera-archive/go-tessera/geometry"
	"github.com/tessera-archive/go-tessera/placement"
)

func TestPlaceIdempotent(t *testing.T) {
	for tx := -3; tx <= 3; tx++ {
		for ty := -3; ty <= 3; ty++ {
			for i := 0; i < geometry.ItemsPerTile; i++ {
				first := placement.Place(tx, ty, i)
				second := placement.Place(tx, ty, i)
				require.Equal(t, first, second, "tile (%d,%d) index %d", tx, ty, i)
			}
		}
	}
}

func TestPlaceNoIntraTileOverlap(t *testing.T) {
	rects := make([]geometry.Rect, geometry.ItemsPerTile)
	for i := range rects {
		p := placement.Place(1, -2, i)
		rects[i] = geometry.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
	}
	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			require.False(t, rects[i].Intersects(rects[j]), "items %d and %d overlap", i, j)
		}
	}
}

func TestPlaceWithinTileBounds(t *testing.T) {
	ox, oy := geometry.TileCoord{X: 4, Y: 7}.Origin()
	for i := 0; i < geometry.ItemsPerTile; i++ {
		p := placement.Place(4, 7, i)
		require.GreaterOrEqual(t, p.X, ox)
		require.GreaterOrEqual(t, p.Y, oy)
		require.LessOrEqual(t, p.X+p.Width, ox+geometry.TileWidth)
		require.LessOrEqual(t, p.Y+p.Height, oy+geometry.TileHeight)
	}
}

func TestRotationBounded(t *testing.T) {
	for tx := -10; tx <= 10; tx++ {
		for i := 0; i < geometry.ItemsPerTile; i++ {
			p := placement.Place(tx, -tx, i)
			require.LessOrEqual(t, math.Abs(p.Rotation), placement.MaxRotationDeg)
		}
	}
}

func TestRotationVariesAcrossAdjacentTiles(t *testing.T) {
	// Adjacent tiles must not repeat the same rotation pattern, or the
	// surface shows visually identical blocks side by side.
	var a, b [geometry.ItemsPerTile]float64
	for i := 0; i < geometry.ItemsPerTile; i++ {
		a[i] = placement.Place(0, 0, i).Rotation
		b[i] = placement.Place(1, 0, i).Rotation
	}
	require.NotEqual(t, a, b)
}

func TestPlaceDense(t *testing.T) {
	const columns = 4
	first := placement.PlaceDense(0, columns)
	require.Equal(t, float64(geometry.CardGap)/2, first.X)
	require.Equal(t, float64(geometry.CardGap)/2, first.Y)

	// Row wraps after the configured column count.
	wrapped := placement.PlaceDense(columns, columns)
	require.Equal(t, first.X, wrapped.X)
	require.Greater(t, wrapped.Y, first.Y)

	// Dense layout never overlaps either.
	rects := make([]geometry.Rect, 12)
	for i := range rects {
		p := placement.PlaceDense(i, columns)
		rects[i] = geometry.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
	}
	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			require.False(t, rects[i].Intersects(rects[j]))
		}
	}

	// A non-positive column count falls back to the tile arity.
	require.Equal(t, placement.PlaceDense(1, geometry.TileColumns), placement.PlaceDense(1, 0))
}
