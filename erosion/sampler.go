package erosion

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// GradientAndHeight is the bilinear sample of the heightfield at a
// continuous position.
type GradientAndHeight struct {
	Gradient mgl32.Vec2
	Height   float32
}

// cell splits a continuous position into the integer cell and the offset
// inside it.
func cell(pos mgl32.Vec2) (ix, iy int, fx, fy float32) {
	x, y := math32.Floor(pos.X()), math32.Floor(pos.Y())
	return int(x), int(y), pos.X() - x, pos.Y() - y
}

// Sample interpolates the gradient and height at pos from the four corners
// of its cell. The caller guarantees floor(pos)+1 < size on both axes.
func Sample(g *HeightGrid, pos mgl32.Vec2) GradientAndHeight {
	ix, iy, fx, fy := cell(pos)

	nw := g.Index(ix, iy)
	heightNW := g.heights[nw]
	heightNE := g.heights[nw+1]
	heightSW := g.heights[nw+g.size]
	heightSE := g.heights[nw+g.size+1]

	return GradientAndHeight{
		Gradient: mgl32.Vec2{
			(heightNE-heightNW)*(1-fy) + (heightSE-heightSW)*fy,
			(heightSW-heightNW)*(1-fx) + (heightSE-heightNE)*fx,
		},
		Height: heightNW*(1-fx)*(1-fy) +
			heightNE*fx*(1-fy) +
			heightSW*(1-fx)*fy +
			heightSE*fx*fy,
	}
}
