package erosion

import (
	"fmt"

	"github.com/ob6160/TerrainErosion/utils"
)

// HeightGrid is a square, row-major elevation buffer. It wraps the caller's
// slice and mutates it in place.
type HeightGrid struct {
	size    int
	heights []float32
}

func NewHeightGrid(size int, heights []float32) (*HeightGrid, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w: size %d", ErrGridTooSmall, size)
	}
	if len(heights) != size*size {
		return nil, fmt.Errorf("%w: got %d values for a %dx%d grid", ErrSizeMismatch, len(heights), size, size)
	}
	return &HeightGrid{size: size, heights: heights}, nil
}

// Size is the side length in vertices.
func (g *HeightGrid) Size() int { return g.size }

// Heights exposes the backing slice.
func (g *HeightGrid) Heights() []float32 { return g.heights }

func (g *HeightGrid) Index(x, y int) int { return utils.ToIndex(x, y, g.size) }

func (g *HeightGrid) Coord(index int) (int, int) {
	p := utils.FromIndex(index, g.size)
	return p.X, p.Y
}

func (g *HeightGrid) At(x, y int) float32 { return g.heights[g.Index(x, y)] }

func (g *HeightGrid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.size && y < g.size
}

// InBand reports whether the vertex lies inside the border band of the
// given width.
func (g *HeightGrid) InBand(x, y, band int) bool {
	return utils.InBand(x, y, g.size, band)
}

// Snapshot returns a frozen copy of the heights.
func (g *HeightGrid) Snapshot() []float32 {
	out := make([]float32, len(g.heights))
	copy(out, g.heights)
	return out
}
