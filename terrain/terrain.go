package terrain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ob6160/TerrainErosion/erosion"
	"github.com/ob6160/TerrainErosion/generators"
)

// ctxCheckInterval is how many droplets run between context checks.
const ctxCheckInterval = 1024

// Coord addresses a chunk in the chunk lattice.
type Coord struct {
	X, Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// Chunk is one eroded square of terrain. Neighbouring chunks overlap by one
// vertex along their shared edge.
type Chunk struct {
	Coord   Coord
	Size    int
	Heights []float32
	Stats   erosion.Stats
}

// GeneratorFactory returns the heightfield source for a chunk. Sources for
// neighbouring chunks must agree on shared edge vertices.
type GeneratorFactory func(c Coord) (generators.TerrainGenerator, error)

// SimplexFactory places simplex noise so that chunk c starts at world vertex
// c*(size-1).
func SimplexFactory(size int, seed int64, opts generators.SimplexOptions) GeneratorFactory {
	return func(c Coord) (generators.TerrainGenerator, error) {
		return generators.NewSimplex(size, seed, c.X*(size-1), c.Y*(size-1), opts), nil
	}
}

// Terrain generates and erodes chunks. All chunks share one kernel cache.
type Terrain struct {
	size         int
	params       erosion.Params
	newGenerator GeneratorFactory
	cache        *erosion.KernelCache
	log          *slog.Logger
	workers      int
}

func NewTerrain(size int, params erosion.Params, factory GeneratorFactory, log *slog.Logger) (*Terrain, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("terrain: nil generator factory")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !params.BlockBoundaryErosion || params.BorderSize < 1 {
		log.Warn("chunk edges are erodible, seams between chunks will not match",
			"block_boundary_erosion", params.BlockBoundaryErosion,
			"border_size", params.BorderSize)
	}
	return &Terrain{
		size:         size,
		params:       params,
		newGenerator: factory,
		cache:        erosion.NewKernelCache(),
		log:          log,
		workers:      runtime.GOMAXPROCS(0),
	}, nil
}

// SetWorkers bounds how many chunks are eroded at once.
func (t *Terrain) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	t.workers = n
}

// Generate builds and erodes every chunk in coords. Chunks are returned in
// the order of coords. The first error cancels the remaining chunks.
func (t *Terrain) Generate(ctx context.Context, coords []Coord) ([]*Chunk, error) {
	chunks := make([]*Chunk, len(coords))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, c := range coords {
		i, c := i, c
		g.Go(func() error {
			chunk, err := t.chunk(ctx, c)
			if err != nil {
				return fmt.Errorf("chunk %v: %w", c, err)
			}
			chunks[i] = chunk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (t *Terrain) chunk(ctx context.Context, c Coord) (*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gen, err := t.newGenerator(c)
	if err != nil {
		return nil, err
	}
	if w, h := gen.Dimensions(); w != t.size || h != t.size {
		return nil, fmt.Errorf("%w: generator is %dx%d, want %d", erosion.ErrSizeMismatch, w, h, t.size)
	}
	gen.Generate()
	heights := gen.Heightmap()

	params := t.params
	params.Seed = chunkSeed(t.params.Seed, c)
	eroder, err := erosion.NewEroder(t.size, params,
		erosion.WithKernelCache(t.cache),
		erosion.WithLogger(t.log.With("chunk", c.String())))
	if err != nil {
		return nil, err
	}
	if err := eroder.Reset(heights); err != nil {
		return nil, err
	}
	for !eroder.Done() {
		if eroder.Iteration()%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := eroder.SimulationStep(); err != nil {
			return nil, err
		}
	}
	stats := eroder.Finish()
	t.log.Debug("chunk eroded", "chunk", c.String(), "droplets", stats.Droplets, "eroded", stats.Eroded)
	return &Chunk{Coord: c, Size: t.size, Heights: heights, Stats: stats}, nil
}

// chunkSeed gives each chunk its own droplet sequence.
func chunkSeed(seed int64, c Coord) int64 {
	return seed ^ int64(c.X)*73856093 ^ int64(c.Y)*19349663
}

// SharedEdge returns the vertices a and b have in common when b is the right
// or lower neighbour of a. ok is false for chunks that are not adjacent.
func SharedEdge(a, b *Chunk) (edgeA, edgeB []float32, ok bool) {
	if a.Size != b.Size {
		return nil, nil, false
	}
	size := a.Size
	switch {
	case b.Coord.X == a.Coord.X+1 && b.Coord.Y == a.Coord.Y:
		for y := 0; y < size; y++ {
			edgeA = append(edgeA, a.Heights[size-1+y*size])
			edgeB = append(edgeB, b.Heights[y*size])
		}
	case b.Coord.X == a.Coord.X && b.Coord.Y == a.Coord.Y+1:
		edgeA = append(edgeA, a.Heights[(size-1)*size:]...)
		edgeB = append(edgeB, b.Heights[:size]...)
	default:
		return nil, nil, false
	}
	return edgeA, edgeB, true
}

// Grid returns the w×h lattice of coords starting at the origin, row by row.
func Grid(w, h int) []Coord {
	coords := make([]Coord, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			coords = append(coords, Coord{X: x, Y: y})
		}
	}
	return coords
}
