package generators

import (
	"github.com/ojrac/opensimplex-go"
)

// SimplexOptions shapes the fractal noise summed by Simplex.
type SimplexOptions struct {
	// Frequency of the first octave, in cycles per vertex.
	Frequency   float64
	Octaves     int
	Persistence float64
	Lacunarity  float64
	Amplitude   float32
}

func DefaultSimplexOptions() SimplexOptions {
	return SimplexOptions{
		Frequency:   1.0 / 64,
		Octaves:     5,
		Persistence: 0.5,
		Lacunarity:  2,
		Amplitude:   64,
	}
}

// Simplex samples octaves of opensimplex noise at world coordinates. Two
// generators with the same seed whose offsets differ by size-1 along an axis
// produce identical values on their shared edge, so chunks tile.
type Simplex struct {
	heightmap
	noise            opensimplex.Noise
	offsetX, offsetY int
	opts             SimplexOptions
}

func NewSimplex(size int, seed int64, offsetX, offsetY int, opts SimplexOptions) *Simplex {
	if opts.Octaves < 1 {
		opts.Octaves = 1
	}
	return &Simplex{
		heightmap: newHeightmap(size),
		noise:     opensimplex.New(seed),
		offsetX:   offsetX,
		offsetY:   offsetY,
		opts:      opts,
	}
}

// Generate fills the heightmap. Values are not normalised per map, since
// that would break the seams between chunks.
func (s *Simplex) Generate() {
	for y := 0; y < s.size; y++ {
		for x := 0; x < s.size; x++ {
			wx := float64(s.offsetX + x)
			wy := float64(s.offsetY + y)
			s.heights[x+y*s.size] = s.opts.Amplitude * float32(s.sample(wx, wy))
		}
	}
}

func (s *Simplex) sample(wx, wy float64) float64 {
	var value, total float64
	amplitude, frequency := 1.0, s.opts.Frequency
	for o := 0; o < s.opts.Octaves; o++ {
		value += amplitude * s.noise.Eval2(wx*frequency, wy*frequency)
		total += amplitude
		amplitude *= s.opts.Persistence
		frequency *= s.opts.Lacunarity
	}
	if total == 0 {
		return 0
	}
	return value / total
}
