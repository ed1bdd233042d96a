package generators

// Ramp is a planar heightmap: base + slopeX*x + slopeY*y.
type Ramp struct {
	heightmap
	base, slopeX, slopeY float32
}

func NewRamp(size int, base, slopeX, slopeY float32) *Ramp {
	return &Ramp{heightmap: newHeightmap(size), base: base, slopeX: slopeX, slopeY: slopeY}
}

func (r *Ramp) Generate() {
	for y := 0; y < r.size; y++ {
		for x := 0; x < r.size; x++ {
			r.heights[x+y*r.size] = r.base + r.slopeX*float32(x) + r.slopeY*float32(y)
		}
	}
}

// NewFlat is a ramp with no slope.
func NewFlat(size int, height float32) *Ramp {
	return NewRamp(size, height, 0, 0)
}
