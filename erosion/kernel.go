package erosion

import (
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/ob6160/TerrainErosion/utils"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Falloff selects the distance weighting used when building erosion kernels.
// Weights are always normalised per vertex afterwards.
type Falloff int

const (
	// FalloffLinear weighs a neighbour by max(0, 1 - distance/radius).
	FalloffLinear Falloff = iota
	// FalloffRadial weighs a neighbour by max(0, radius - distance).
	FalloffRadial
)

var falloffNames = map[Falloff]string{
	FalloffLinear: "linear",
	FalloffRadial: "radial",
}

func (f Falloff) String() string {
	if name, ok := falloffNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Falloff(%d)", int(f))
}

func (f Falloff) MarshalText() ([]byte, error) {
	name, ok := falloffNames[f]
	if !ok {
		return nil, fmt.Errorf("%w: unknown falloff %d", ErrInvalidParam, int(f))
	}
	return []byte(name), nil
}

func (f *Falloff) UnmarshalText(text []byte) error {
	for k, name := range falloffNames {
		if strings.EqualFold(name, string(text)) {
			*f = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown falloff %q", ErrInvalidParam, text)
}

func (f Falloff) weight(distance float64, radius int) float64 {
	r := float64(radius)
	switch f {
	case FalloffRadial:
		return math.Max(0, r-distance)
	default:
		return math.Max(0, 1-distance/r)
	}
}

// KernelEntry is one neighbour that receives a share of the erosion applied
// at a vertex.
type KernelEntry struct {
	Index  int
	Weight float32
}

// KernelTable holds, for every vertex of a grid, the neighbours erosion is
// spread over and their normalised weights. It is immutable once built.
type KernelTable struct {
	size, radius, border int
	block                bool
	falloff              Falloff
	entries              [][]KernelEntry
}

// NewKernelTable precomputes the erosion kernel of every vertex. When block
// is set, vertices within border of an edge get no kernel and are never
// included in another vertex's kernel.
func NewKernelTable(size, radius, border int, block bool, falloff Falloff) (*KernelTable, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRadius, radius)
	}
	if size < 2 {
		return nil, fmt.Errorf("%w: size %d", ErrGridTooSmall, size)
	}
	if border < 0 {
		return nil, fmt.Errorf("%w: border size %d is negative", ErrInvalidParam, border)
	}
	if _, ok := falloffNames[falloff]; !ok {
		return nil, fmt.Errorf("%w: unknown falloff %d", ErrInvalidParam, int(falloff))
	}

	t := &KernelTable{
		size:    size,
		radius:  radius,
		border:  border,
		block:   block,
		falloff: falloff,
		entries: make([][]KernelEntry, size*size),
	}

	// Rows are independent, so they are built in parallel.
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < size; y++ {
		cy := y
		g.Go(func() error {
			span := 2*radius + 1
			indices := make([]int, 0, span*span)
			weights := make([]float64, 0, span*span)
			for cx := 0; cx < size; cx++ {
				indices, weights = t.build(cx, cy, indices[:0], weights[:0])
				if len(indices) == 0 {
					continue
				}
				entry := make([]KernelEntry, len(indices))
				for j := range indices {
					entry[j] = KernelEntry{Index: indices[j], Weight: float32(weights[j])}
				}
				t.entries[utils.ToIndex(cx, cy, size)] = entry
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *KernelTable) suppressed(x, y int) bool {
	return t.block && utils.InBand(x, y, t.size, t.border)
}

func (t *KernelTable) build(cx, cy int, indices []int, weights []float64) ([]int, []float64) {
	if t.suppressed(cx, cy) {
		return indices, weights
	}
	for y := cy - t.radius; y <= cy+t.radius; y++ {
		for x := cx - t.radius; x <= cx+t.radius; x++ {
			if x < 0 || y < 0 || x >= t.size || y >= t.size || t.suppressed(x, y) {
				continue
			}
			dx, dy := float64(cx-x), float64(cy-y)
			w := t.falloff.weight(math.Sqrt(dx*dx+dy*dy), t.radius)
			if w <= 0 {
				continue
			}
			indices = append(indices, utils.ToIndex(x, y, t.size))
			weights = append(weights, w)
		}
	}
	sum := floats.Sum(weights)
	if sum <= 0 {
		return indices[:0], weights[:0]
	}
	floats.Scale(1/sum, weights)
	return indices, weights
}

// Entry returns the kernel of the vertex at index. Suppressed vertices have
// an empty kernel.
func (t *KernelTable) Entry(index int) []KernelEntry {
	return t.entries[index]
}

func (t *KernelTable) Size() int { return t.size }

func (t *KernelTable) Radius() int { return t.radius }

type kernelKey struct {
	size, radius, border int
	block                bool
	falloff              Falloff
}

// KernelCache shares kernel tables between simulators configured with the
// same grid size, radius and border policy. It is safe for concurrent use.
type KernelCache struct {
	mu     sync.Mutex
	tables map[kernelKey]*KernelTable
}

func NewKernelCache() *KernelCache {
	return &KernelCache{tables: make(map[kernelKey]*KernelTable)}
}

// Get returns the cached table for the configuration, building it on first
// use.
func (c *KernelCache) Get(size, radius, border int, block bool, falloff Falloff) (*KernelTable, error) {
	if !block {
		border = 0
	}
	key := kernelKey{size, radius, border, block, falloff}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[key]; ok {
		return t, nil
	}
	t, err := NewKernelTable(size, radius, border, block, falloff)
	if err != nil {
		return nil, err
	}
	c.tables[key] = t
	return t, nil
}

// Len reports how many tables are cached.
func (c *KernelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables)
}
