package erosion

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridOf(t *testing.T, size int, f func(x, y int) float32) *HeightGrid {
	t.Helper()
	heights := make([]float32, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			heights[x+y*size] = f(x, y)
		}
	}
	g, err := NewHeightGrid(size, heights)
	require.NoError(t, err)
	return g
}

func TestSamplePlane(t *testing.T) {
	g := gridOf(t, 6, func(x, y int) float32 { return 2*float32(x) + 3*float32(y) })

	for _, pos := range []mgl32.Vec2{{0, 0}, {1.25, 3.5}, {4.9, 4.9}, {2.5, 0.1}} {
		s := Sample(g, pos)
		assert.InDelta(t, 2, s.Gradient.X(), 1e-5, "gradX at %v", pos)
		assert.InDelta(t, 3, s.Gradient.Y(), 1e-5, "gradY at %v", pos)
		assert.InDelta(t, 2*pos.X()+3*pos.Y(), s.Height, 1e-4, "height at %v", pos)
	}
}

func TestSampleAtVertex(t *testing.T) {
	g := gridOf(t, 4, func(x, y int) float32 { return float32(x*x + y) })

	s := Sample(g, mgl32.Vec2{2, 1})
	assert.Equal(t, g.At(2, 1), s.Height)
	// Gradient at a vertex is the forward difference along each axis.
	assert.Equal(t, g.At(3, 1)-g.At(2, 1), s.Gradient.X())
	assert.Equal(t, g.At(2, 2)-g.At(2, 1), s.Gradient.Y())
}

func TestSampleCellCorners(t *testing.T) {
	// NW=1 NE=2 SW=3 SE=5
	g, err := NewHeightGrid(2, []float32{1, 2, 3, 5})
	require.NoError(t, err)

	s := Sample(g, mgl32.Vec2{0.5, 0.5})
	assert.InDelta(t, 2.75, s.Height, 1e-6)
	assert.InDelta(t, 1.5, s.Gradient.X(), 1e-6)
	assert.InDelta(t, 2.5, s.Gradient.Y(), 1e-6)
}
