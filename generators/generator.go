package generators

import (
	"errors"
	"fmt"

	"github.com/ob6160/TerrainErosion/utils"
)

// ErrOutOfBounds is returned by Get for points outside the heightmap.
var ErrOutOfBounds = errors.New("point out of bounds")

// TerrainGenerator produces the square heightmap the eroder consumes.
type TerrainGenerator interface {
	Generate()
	Heightmap() []float32
	Get(point utils.Point) (float32, error)
	Dimensions() (int, int)
}

// heightmap is the square buffer shared by every generator.
type heightmap struct {
	size    int
	heights []float32
}

func newHeightmap(size int) heightmap {
	return heightmap{size: size, heights: make([]float32, size*size)}
}

func (h *heightmap) Heightmap() []float32 {
	return h.heights
}

func (h *heightmap) Dimensions() (int, int) {
	return h.size, h.size
}

func (h *heightmap) Get(p utils.Point) (float32, error) {
	if p.X < 0 || p.Y < 0 || p.X >= h.size || p.Y >= h.size {
		return 0, fmt.Errorf("%w: %v in %dx%d", ErrOutOfBounds, p, h.size, h.size)
	}
	return h.heights[p.ToIndex(h.size)], nil
}

func (h *heightmap) set(p utils.Point, value float32) {
	h.heights[p.ToIndex(h.size)] = value
}

// SetHeightmap replaces the buffer, e.g. with one loaded from disk.
func (h *heightmap) SetHeightmap(heights []float32) error {
	if len(heights) != h.size*h.size {
		return fmt.Errorf("heightmap has %d values, want %d", len(heights), h.size*h.size)
	}
	h.heights = heights
	return nil
}

// normalize rescales the heights into [0, 1]. A constant map becomes all zero.
func (h *heightmap) normalize() {
	if len(h.heights) == 0 {
		return
	}
	minValue, maxValue := h.heights[0], h.heights[0]
	for _, v := range h.heights {
		if v > maxValue {
			maxValue = v
		}
		if v < minValue {
			minValue = v
		}
	}
	diff := maxValue - minValue
	for i := range h.heights {
		if diff == 0 {
			h.heights[i] = 0
			continue
		}
		h.heights[i] = (h.heights[i] - minValue) / diff
	}
}
