package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/xlab/closer"
	"go.uber.org/multierr"
	billy "gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/ob6160/TerrainErosion/config"
	"github.com/ob6160/TerrainErosion/core"
	"github.com/ob6160/TerrainErosion/erosion"
	"github.com/ob6160/TerrainErosion/generators"
	"github.com/ob6160/TerrainErosion/heightio"
	"github.com/ob6160/TerrainErosion/terrain"
)

var errInterrupted = errors.New("interrupted")

func main() {
	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "JSON config file; explicit flags override its values")
	verbose := flag.Bool("v", false, "log every droplet termination")

	flag.IntVar(&cfg.Size, "size", cfg.Size, "heightmap side length in vertices (2^n+1 for midpoint)")
	flag.StringVar(&cfg.Generator, "generator", cfg.Generator, "terrain source: midpoint, simplex or file")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "terrain seed")
	flag.Float64Var(&cfg.Frequency, "frequency", cfg.Frequency, "simplex base frequency")
	flag.IntVar(&cfg.Octaves, "octaves", cfg.Octaves, "simplex octaves")
	flag.IntVar(&cfg.ChunksX, "chunks-x", cfg.ChunksX, "chunks along x")
	flag.IntVar(&cfg.ChunksY, "chunks-y", cfg.ChunksY, "chunks along y")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "chunks eroded at once (0 = GOMAXPROCS)")
	flag.StringVar(&cfg.Input, "input", cfg.Input, "heightmap to erode when -generator=file")
	flag.StringVar(&cfg.Output, "output", cfg.Output, "output heightmap path")
	flag.StringVar(&cfg.OBJ, "obj", cfg.OBJ, "also write a Wavefront OBJ mesh to this path")
	flag.StringVar(&cfg.Preset, "preset", cfg.Preset, "erosion preset: "+strings.Join(erosion.PresetNames(), ", "))
	flag.IntVar(&cfg.ProgressEvery, "progress", cfg.ProgressEvery, "log progress every n droplets (0 = never)")

	flag.Int64Var(&cfg.Erosion.Seed, "erosion-seed", cfg.Erosion.Seed, "droplet spawn seed")
	flag.IntVar(&cfg.Erosion.Iterations, "iterations", cfg.Erosion.Iterations, "number of droplets")
	flag.IntVar(&cfg.Erosion.ErosionRadius, "radius", cfg.Erosion.ErosionRadius, "erosion brush radius")
	flag.IntVar(&cfg.Erosion.DropletLifetime, "lifetime", cfg.Erosion.DropletLifetime, "maximum steps per droplet")
	flag.IntVar(&cfg.Erosion.BorderSize, "border", cfg.Erosion.BorderSize, "protected border width")
	flag.BoolVar(&cfg.Erosion.BlockBoundaryErosion, "block-border", cfg.Erosion.BlockBoundaryErosion, "never modify the border band")
	flag.BoolVar(&cfg.Erosion.ApplyBlur, "blur", cfg.Erosion.ApplyBlur, "box blur the result")
	flag.BoolVar(&cfg.Erosion.DepositOnTermination, "deposit-end", cfg.Erosion.DepositOnTermination, "deposit leftover sediment where droplets die")
	flag.TextVar(&cfg.Erosion.SpeedModel, "speed-model", cfg.Erosion.SpeedModel, "droplet speed model: proportional or energy")
	flag.TextVar(&cfg.Erosion.DepositMode, "deposit-mode", cfg.Erosion.DepositMode, "deposit weighting: bilinear or quarter")
	flag.TextVar(&cfg.Erosion.Falloff, "falloff", cfg.Erosion.Falloff, "brush falloff: linear or radial")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	fs := osfs.New(".")
	if *configPath != "" {
		fromFile, err := config.Load(fs, *configPath)
		if err != nil {
			log.Error("load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		config.Merge(cfg, fromFile, explicit)
	}
	if err := config.ApplyPreset(cfg, explicit); err != nil {
		log.Error("apply preset", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	exitC := make(chan struct{}, 1)
	doneC := make(chan struct{}, 1)
	closer.Bind(func() {
		close(exitC)
		<-doneC
	})

	err := run(cfg, fs, log, exitC)
	close(doneC)
	if err != nil && !errors.Is(err, errInterrupted) {
		log.Error("erosion failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, fs billy.Filesystem, log *slog.Logger, exitC <-chan struct{}) error {
	if cfg.Chunked() {
		return runChunks(cfg, fs, log, exitC)
	}
	return runSingle(cfg, fs, log, exitC)
}

func simplexOptions(cfg *config.Config) generators.SimplexOptions {
	opts := generators.DefaultSimplexOptions()
	opts.Frequency = cfg.Frequency
	opts.Octaves = cfg.Octaves
	opts.Amplitude = cfg.Amplitude
	return opts
}

func source(cfg *config.Config, fs billy.Filesystem) (int, []float32, error) {
	switch cfg.Generator {
	case config.GeneratorFile:
		return heightio.Read(fs, cfg.Input)
	case config.GeneratorSimplex:
		gen := generators.NewSimplex(cfg.Size, cfg.Seed, 0, 0, simplexOptions(cfg))
		gen.Generate()
		return cfg.Size, gen.Heightmap(), nil
	default:
		gen, err := generators.NewMidPointDisplacement(cfg.Size, cfg.Spread, cfg.Reduce, cfg.Seed)
		if err != nil {
			return 0, nil, err
		}
		gen.Generate()
		// Midpoint output is normalised; scale it into a range droplets can carve.
		heights := gen.Heightmap()
		for i := range heights {
			heights[i] *= cfg.Amplitude
		}
		return cfg.Size, heights, nil
	}
}

// runSingle erodes one heightmap droplet by droplet so that an interrupt
// still writes the partial result.
func runSingle(cfg *config.Config, fs billy.Filesystem, log *slog.Logger, exitC <-chan struct{}) error {
	size, heights, err := source(cfg, fs)
	if err != nil {
		return err
	}
	eroder, err := erosion.NewEroder(size, cfg.Erosion, erosion.WithLogger(log))
	if err != nil {
		return err
	}
	if err := eroder.Reset(heights); err != nil {
		return err
	}

	log.Info("erosion started", "size", size, "generator", cfg.Generator, "iterations", cfg.Erosion.Iterations)
	start := time.Now()
	interrupted := false
	for !eroder.Done() && !interrupted {
		select {
		case <-exitC:
			interrupted = true
			continue
		default:
		}
		if _, err := eroder.SimulationStep(); err != nil {
			return err
		}
		if n := eroder.Iteration(); cfg.ProgressEvery > 0 && n%cfg.ProgressEvery == 0 {
			log.Info("progress", "droplets", n, "of", cfg.Erosion.Iterations, "elapsed", time.Since(start).Round(time.Millisecond))
		}
	}
	stats := eroder.Finish()
	log.Info("erosion finished",
		"droplets", stats.Droplets,
		"stuck", stats.Stuck,
		"out_of_bounds", stats.OutOfBounds,
		"expired", stats.Expired,
		"eroded", stats.Eroded,
		"deposited", stats.Deposited,
		"discarded", stats.Discarded,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if err := heightio.Write(fs, cfg.Output, size, heights); err != nil {
		return fmt.Errorf("write %s: %w", cfg.Output, err)
	}
	log.Info("heightmap written", "path", cfg.Output, "partial", interrupted)
	if cfg.OBJ != "" {
		if err := writeOBJ(fs, cfg.OBJ, size, heights); err != nil {
			return err
		}
		log.Info("mesh written", "path", cfg.OBJ)
	}
	if interrupted {
		return errInterrupted
	}
	return nil
}

func runChunks(cfg *config.Config, fs billy.Filesystem, log *slog.Logger, exitC <-chan struct{}) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-exitC:
			cancel()
		case <-ctx.Done():
		}
	}()

	t, err := terrain.NewTerrain(cfg.Size, cfg.Erosion, terrain.SimplexFactory(cfg.Size, cfg.Seed, simplexOptions(cfg)), log)
	if err != nil {
		return err
	}
	if cfg.Workers > 0 {
		t.SetWorkers(cfg.Workers)
	}

	start := time.Now()
	chunks, err := t.Generate(ctx, terrain.Grid(cfg.ChunksX, cfg.ChunksY))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("chunk generation interrupted, nothing written")
			return errInterrupted
		}
		return err
	}
	for _, c := range chunks {
		name := chunkPath(cfg.Output, c.Coord)
		if err := heightio.Write(fs, name, c.Size, c.Heights); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		log.Info("chunk written", "chunk", c.Coord.String(), "path", name, "eroded", c.Stats.Eroded)
		if cfg.OBJ != "" {
			if err := writeOBJ(fs, chunkPath(cfg.OBJ, c.Coord), c.Size, c.Heights); err != nil {
				return err
			}
		}
	}
	log.Info("chunks finished", "count", len(chunks), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func writeOBJ(fs billy.Filesystem, name string, size int, heights []float32) (err error) {
	plane := core.NewPlane(size)
	if err := plane.Construct(heights, 1); err != nil {
		return err
	}
	if err := fs.MkdirAll(path.Dir(name), 0755); err != nil {
		return err
	}
	file, err := fs.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()
	if err := plane.M().WriteOBJ(file); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// chunkPath turns out/terrain.hgt into out/terrain.1_2.hgt for chunk (1,2).
func chunkPath(output string, c terrain.Coord) string {
	ext := path.Ext(output)
	return fmt.Sprintf("%s.%d_%d%s", strings.TrimSuffix(output, ext), c.X, c.Y, ext)
}
