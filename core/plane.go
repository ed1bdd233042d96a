package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ob6160/TerrainErosion/utils"
)

// Plane is a size×size grid of vertices, centred on the origin in XZ, whose
// Y coordinates follow a heightmap.
type Plane struct {
	size int
	m    Mesh
}

func (p *Plane) M() *Mesh {
	return &p.m
}

func NewPlane(size int) *Plane {
	var newPlane = Plane{size: size, m: Mesh{
		Vertices: make([]mgl32.Vec3, size*size),
		Normals:  make([]mgl32.Vec3, size*size),
		Indices:  make([]uint32, (size-1)*(size-1)*3*2),
	}}

	var indices = newPlane.m.Indices
	var i = 0
	for y := 0; y < size-1; y++ {
		for x := 0; x < size-1; x++ {
			index := utils.ToIndex(x, y, size)
			// Both triangles wind counter-clockwise seen from +Y.
			indices[i] = uint32(index)
			indices[i+1] = uint32(index + size)
			indices[i+2] = uint32(index + 1)

			indices[i+3] = uint32(index + 1)
			indices[i+4] = uint32(index + size)
			indices[i+5] = uint32(index + size + 1)
			i += 6
		}
	}
	return &newPlane
}

// Construct lifts the plane onto heights, scaled by heightScale.
func (p *Plane) Construct(heights []float32, heightScale float32) error {
	if len(heights) != p.size*p.size {
		return fmt.Errorf("plane is %dx%d, heightmap has %d values", p.size, p.size, len(heights))
	}
	half := float32(p.size-1) / 2
	for i, h := range heights {
		pt := utils.FromIndex(i, p.size)
		p.m.Vertices[i] = mgl32.Vec3{float32(pt.X) - half, h * heightScale, float32(pt.Y) - half}
	}
	p.m.computeNormals()
	return nil
}
