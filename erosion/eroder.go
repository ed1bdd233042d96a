package erosion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// directionEpsilon floors the length used to normalise a droplet's direction.
	directionEpsilon = 0.01
	// stuckEpsilon is the direction length below which a droplet is stuck.
	stuckEpsilon = 1e-6
)

// ErrNoHeightmap is returned by SimulationStep before Reset has attached a grid.
var ErrNoHeightmap = errors.New("no heightmap attached")

// Option configures an Eroder.
type Option func(*Eroder)

// WithLogger routes the eroder's logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(e *Eroder) {
		if l != nil {
			e.log = l
		}
	}
}

// WithKernelCache takes the kernel table from c instead of building a
// private one.
func WithKernelCache(c *KernelCache) Option {
	return func(e *Eroder) { e.cache = c }
}

// WithSource replaces the generator seeded from Params.Seed. The source is
// not reseeded by Reset.
func WithSource(src Source) Option {
	return func(e *Eroder) { e.source = src }
}

// Eroder runs droplet erosion against one heightmap at a time. It is not
// safe for concurrent use; run one Eroder per grid.
type Eroder struct {
	params Params
	size   int
	kernel *KernelTable
	cache  *KernelCache
	source Source
	log    *slog.Logger

	rng       Source
	grid      *HeightGrid
	iteration int
	finished  bool
	stats     Stats
}

// NewEroder validates params and prepares the kernel table for a size×size
// grid.
func NewEroder(size int, params Params, opts ...Option) (*Eroder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if size < 2 {
		return nil, fmt.Errorf("%w: size %d", ErrGridTooSmall, size)
	}
	if inset := params.spawnInset(); size-1-2*inset <= 0 {
		return nil, fmt.Errorf("%w: size %d leaves no spawn range with inset %d", ErrGridTooSmall, size, inset)
	}

	e := &Eroder{
		params: params,
		size:   size,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.cache != nil {
		e.kernel, err = e.cache.Get(size, params.ErosionRadius, params.BorderSize, params.BlockBoundaryErosion, params.Falloff)
	} else {
		e.kernel, err = NewKernelTable(size, params.ErosionRadius, params.BorderSize, params.BlockBoundaryErosion, params.Falloff)
	}
	if err != nil {
		return nil, fmt.Errorf("build erosion kernel: %w", err)
	}
	return e, nil
}

func (e *Eroder) Params() Params { return e.params }

func (e *Eroder) Kernel() *KernelTable { return e.kernel }

// Grid is the heightmap attached by the last Reset, or nil.
func (e *Eroder) Grid() *HeightGrid { return e.grid }

// Iteration is the number of droplets simulated since Reset.
func (e *Eroder) Iteration() int { return e.iteration }

// Done reports whether Params.Iterations droplets have run.
func (e *Eroder) Done() bool { return e.iteration >= e.params.Iterations }

// Stats returns the counters accumulated since Reset.
func (e *Eroder) Stats() Stats { return e.stats }

// Reset attaches heights, which must hold exactly size*size values, and
// reseeds the generator.
func (e *Eroder) Reset(heights []float32) error {
	grid, err := NewHeightGrid(e.size, heights)
	if err != nil {
		return err
	}
	e.grid = grid
	e.iteration = 0
	e.finished = false
	e.stats = Stats{}
	if e.source != nil {
		e.rng = e.source
	} else {
		e.rng = rand.New(rand.NewSource(e.params.Seed))
	}
	return nil
}

// Erode runs the full simulation on heights in place: every droplet in
// order, then the optional blur.
func (e *Eroder) Erode(heights []float32) (Stats, error) {
	if err := e.Reset(heights); err != nil {
		return Stats{}, err
	}
	e.log.Info("erosion started",
		"size", e.size,
		"iterations", e.params.Iterations,
		"seed", e.params.Seed,
		"radius", e.params.ErosionRadius,
		"speed_model", e.params.SpeedModel,
		"deposit_mode", e.params.DepositMode)

	for !e.Done() {
		if _, err := e.SimulationStep(); err != nil {
			return e.stats, err
		}
	}
	stats := e.Finish()
	e.log.Info("erosion finished",
		"droplets", stats.Droplets,
		"stuck", stats.Stuck,
		"out_of_bounds", stats.OutOfBounds,
		"expired", stats.Expired,
		"eroded", stats.Eroded,
		"deposited", stats.Deposited,
		"discarded", stats.Discarded)
	return stats, nil
}

// Finish applies the blur pass if enabled. Calling it again before the next
// Reset does nothing.
func (e *Eroder) Finish() Stats {
	if e.grid != nil && !e.finished && e.params.ApplyBlur {
		band := 0
		if e.params.BlockBoundaryErosion {
			band = e.params.BorderSize
		}
		BoxBlur(e.grid, band)
	}
	e.finished = true
	return e.stats
}

// SimulationStep spawns one droplet and runs it until it terminates.
func (e *Eroder) SimulationStep() (Termination, error) {
	if e.grid == nil {
		return Stuck, ErrNoHeightmap
	}
	e.iteration++
	return e.runDroplet(), nil
}

func (e *Eroder) spawn() Droplet {
	inset := float32(e.params.spawnInset())
	span := float32(e.size-1) - 2*inset
	x := inset + e.rng.Float32()*span
	y := inset + e.rng.Float32()*span
	return Droplet{
		Pos:   mgl32.Vec2{x, y},
		Speed: e.params.BaseSpeed,
		Water: 1,
	}
}

func (e *Eroder) runDroplet() Termination {
	p := &e.params
	d := e.spawn()

	for life := 0; life < p.DropletLifetime; life++ {
		ix, iy, fx, fy := cell(d.Pos)
		current := Sample(e.grid, d.Pos)

		dir := d.Dir.Mul(p.Inertia).Sub(current.Gradient.Mul(1 - p.Inertia))
		dir = dir.Mul(1 / math32.Max(directionEpsilon, dir.Len()))
		if math32.IsNaN(dir.X()) || math32.IsNaN(dir.Y()) || dir.Len() < stuckEpsilon {
			return e.terminate(&d, d.Pos, Stuck)
		}
		d.Dir = dir

		last := d.Pos
		d.Pos = d.Pos.Add(d.Dir)
		if e.outOfBounds(d.Pos) {
			return e.terminate(&d, last, OutOfBounds)
		}

		next := Sample(e.grid, d.Pos)
		heightDelta := next.Height - current.Height

		capacity := math32.Max(math32.Abs(heightDelta), p.MinSedimentCapacity) * d.Speed * d.Water * p.SedimentCapacityFactor

		if d.Sediment > capacity || heightDelta > 0 {
			var amount float32
			if heightDelta > 0 {
				amount = math32.Min(heightDelta, d.Sediment)
			} else {
				amount = (d.Sediment - capacity) * p.DepositionSpeed
			}
			d.Sediment = math32.Max(0, d.Sediment-e.deposit(ix, iy, fx, fy, amount))
		} else {
			amount := mgl32.Clamp((capacity-d.Sediment)*p.ErosionSpeed, 0, math32.Abs(heightDelta))
			d.Sediment += e.erode(e.grid.Index(ix, iy), amount)
		}

		d.Speed = e.nextSpeed(d.Speed, heightDelta)
		if math32.IsNaN(d.Speed) {
			return e.terminate(&d, d.Pos, Stuck)
		}
		d.Water *= 1 - p.EvaporationSpeed
	}
	return e.terminate(&d, d.Pos, MaxLifetimeReached)
}

// outOfBounds reports whether pos has left the region where bilinear
// sampling is valid, or has entered the border band when it is blocked.
func (e *Eroder) outOfBounds(pos mgl32.Vec2) bool {
	x, y := pos.X(), pos.Y()
	if math32.IsNaN(x) || math32.IsNaN(y) {
		return true
	}
	limit := float32(e.size - 1)
	if x < 0 || y < 0 || x >= limit || y >= limit {
		return true
	}
	if e.params.BlockBoundaryErosion {
		lo := float32(e.params.BorderSize)
		hi := float32(e.size - e.params.BorderSize - 1)
		return x < lo || y < lo || x > hi || y > hi
	}
	return false
}

func (e *Eroder) nextSpeed(speed, heightDelta float32) float32 {
	switch e.params.SpeedModel {
	case SpeedEnergy:
		return math32.Sqrt(math32.Max(0, speed*speed+2*e.params.Gravity*(-heightDelta)))
	default:
		return math32.Max(-heightDelta*e.params.BaseSpeed, 0)
	}
}

// terminate settles the droplet's remaining sediment at the last valid
// position at and records the outcome.
func (e *Eroder) terminate(d *Droplet, at mgl32.Vec2, reason Termination) Termination {
	if d.Sediment > 0 && e.params.DepositOnTermination {
		ix, iy, fx, fy := cell(at)
		d.Sediment = math32.Max(0, d.Sediment-e.deposit(ix, iy, fx, fy, d.Sediment))
	}
	if d.Sediment > 0 {
		e.stats.Discarded += float64(d.Sediment)
	}
	e.stats.record(reason)

	if e.log.Enabled(context.Background(), slog.LevelDebug) {
		e.log.Debug("droplet terminated",
			"iteration", e.iteration,
			"reason", reason,
			"x", at.X(),
			"y", at.Y(),
			"sediment", d.Sediment)
	}
	return reason
}
