package generators

import (
	"fmt"
	"math/rand"

	"github.com/ob6160/TerrainErosion/utils"
)

// MidpointDisplacement builds fractal terrain by recursively subdividing
// squares and jittering each new midpoint. The side length must be 2^n+1.
type MidpointDisplacement struct {
	heightmap
	spread, reduce float32
	seed           int64
	rng            *rand.Rand
}

func NewMidPointDisplacement(size int, spread, reduce float32, seed int64) (*MidpointDisplacement, error) {
	if size < 3 || (size-1)&(size-2) != 0 {
		return nil, fmt.Errorf("midpoint displacement needs a 2^n+1 size, got %d", size)
	}
	return &MidpointDisplacement{
		heightmap: newHeightmap(size),
		spread:    spread,
		reduce:    reduce,
		seed:      seed,
	}, nil
}

// Generate rebuilds the heightmap from the seed. The result is normalised to [0, 1].
func (m *MidpointDisplacement) Generate() {
	m.rng = rand.New(rand.NewSource(m.seed))
	for i := range m.heights {
		m.heights[i] = 0
	}
	last := m.size - 1
	// Set all four corners to random values
	m.set(utils.Point{X: 0, Y: 0}, m.rng.Float32())
	m.set(utils.Point{X: last, Y: 0}, m.rng.Float32())
	m.set(utils.Point{X: 0, Y: last}, m.rng.Float32())
	m.set(utils.Point{X: last, Y: last}, m.rng.Float32())

	visited := make([]bool, len(m.heights))
	m.displace(0, 0, last, m.spread, visited)
	m.normalize()
}

// displace fills the midpoints of the square with top-left corner (x, y) and
// the given side, then recurses into its four quadrants.
func (m *MidpointDisplacement) displace(x, y, side int, spread float32, visited []bool) {
	if side < 2 {
		return
	}
	half := side / 2
	tl := utils.Point{X: x, Y: y}
	tr := tl.Add(utils.Point{X: side})
	bl := tl.Add(utils.Point{Y: side})
	br := tl.Add(utils.Point{X: side, Y: side})

	mx, my := utils.Midpoint(x, x+side), utils.Midpoint(y, y+side)
	top := utils.Point{X: mx, Y: y}
	left := utils.Point{X: x, Y: my}
	right := utils.Point{X: x + side, Y: my}
	bottom := utils.Point{X: mx, Y: y + side}
	centre := utils.Point{X: mx, Y: my}

	// Edge midpoints are shared with the neighbouring square; the first
	// visit wins so both squares agree.
	m.fill(top, spread, visited, tl, tr)
	m.fill(left, spread, visited, tl, bl)
	m.fill(right, spread, visited, tr, br)
	m.fill(bottom, spread, visited, bl, br)
	m.fill(centre, spread, visited, top, left, right, bottom)

	next := spread * m.reduce
	m.displace(x, y, half, next, visited)
	m.displace(x+half, y, half, next, visited)
	m.displace(x, y+half, half, next, visited)
	m.displace(x+half, y+half, half, next, visited)
}

func (m *MidpointDisplacement) fill(p utils.Point, spread float32, visited []bool, from ...utils.Point) {
	i := p.ToIndex(m.size)
	if visited[i] {
		return
	}
	visited[i] = true
	values := make([]float32, len(from))
	for j, f := range from {
		values[j] = m.heights[f.ToIndex(m.size)]
	}
	m.heights[i] = utils.Jitter(m.rng, utils.Average(values...), spread)
}
