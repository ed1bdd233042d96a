package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	billy "gopkg.in/src-d/go-billy.v4"

	"github.com/ob6160/TerrainErosion/erosion"
)

const (
	GeneratorMidpoint = "midpoint"
	GeneratorSimplex  = "simplex"
	GeneratorFile     = "file"
)

var ErrInvalid = errors.New("invalid config")

// Config holds everything the command line tool needs for one run.
type Config struct {
	Size      int     `json:"size"`
	Generator string  `json:"generator"` // "midpoint", "simplex" or "file"
	Seed      int64   `json:"seed"`      // terrain seed, the droplet seed lives in Erosion
	Spread    float32 `json:"spread"`
	Reduce    float32 `json:"reduce"`
	Octaves   int     `json:"octaves"`
	Frequency float64 `json:"frequency"`
	Amplitude float32 `json:"amplitude"`

	ChunksX int `json:"chunks_x"`
	ChunksY int `json:"chunks_y"`
	Workers int `json:"workers"` // 0 = GOMAXPROCS

	Input  string `json:"input"`
	Output string `json:"output"`
	// OBJ, if set, also exports a triangle mesh of the result.
	OBJ string `json:"obj"`

	Preset        string         `json:"preset"`
	ProgressEvery int            `json:"progress_every"`
	Erosion       erosion.Params `json:"erosion"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Size:          257,
		Generator:     GeneratorMidpoint,
		Seed:          1,
		Spread:        0.5,
		Reduce:        0.5,
		Octaves:       5,
		Frequency:     1.0 / 64,
		Amplitude:     64,
		ChunksX:       1,
		ChunksY:       1,
		Output:        "terrain.hgt",
		ProgressEvery: 10000,
		Erosion:       erosion.DefaultParams(),
	}
}

// Load reads a JSON config from fs. Fields missing from the file keep their
// defaults.
func Load(fs billy.Filesystem, name string) (cfg *Config, err error) {
	file, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()

	cfg = DefaultConfig()
	dec := json.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return cfg, nil
}

// Validate checks the run settings and the erosion parameters.
func (c *Config) Validate() error {
	var err error
	if c.Size < 3 {
		err = multierr.Append(err, fmt.Errorf("%w: size %d", ErrInvalid, c.Size))
	}
	switch c.Generator {
	case GeneratorMidpoint, GeneratorSimplex:
	case GeneratorFile:
		if c.Input == "" {
			err = multierr.Append(err, fmt.Errorf("%w: generator %q needs an input file", ErrInvalid, c.Generator))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("%w: unknown generator %q", ErrInvalid, c.Generator))
	}
	if c.ChunksX < 1 || c.ChunksY < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: chunk grid %dx%d", ErrInvalid, c.ChunksX, c.ChunksY))
	}
	if c.Chunked() && c.Generator != GeneratorSimplex {
		err = multierr.Append(err, fmt.Errorf("%w: chunked runs need the %q generator", ErrInvalid, GeneratorSimplex))
	}
	if c.Output == "" {
		err = multierr.Append(err, fmt.Errorf("%w: no output path", ErrInvalid))
	}
	return multierr.Append(err, c.Erosion.Validate())
}

// Chunked reports whether more than one chunk is requested.
func (c *Config) Chunked() bool {
	return c.ChunksX*c.ChunksY > 1
}

// erosionFlags maps command line flag names to the erosion field they set.
var erosionFlags = map[string]func(dst, src *erosion.Params){
	"erosion-seed": func(d, s *erosion.Params) { d.Seed = s.Seed },
	"iterations":   func(d, s *erosion.Params) { d.Iterations = s.Iterations },
	"radius":       func(d, s *erosion.Params) { d.ErosionRadius = s.ErosionRadius },
	"inertia":      func(d, s *erosion.Params) { d.Inertia = s.Inertia },
	"lifetime":     func(d, s *erosion.Params) { d.DropletLifetime = s.DropletLifetime },
	"border":       func(d, s *erosion.Params) { d.BorderSize = s.BorderSize },
	"block-border": func(d, s *erosion.Params) { d.BlockBoundaryErosion = s.BlockBoundaryErosion },
	"blur":         func(d, s *erosion.Params) { d.ApplyBlur = s.ApplyBlur },
	"deposit-end":  func(d, s *erosion.Params) { d.DepositOnTermination = s.DepositOnTermination },
	"speed-model":  func(d, s *erosion.Params) { d.SpeedModel = s.SpeedModel },
	"deposit-mode": func(d, s *erosion.Params) { d.DepositMode = s.DepositMode },
	"falloff":      func(d, s *erosion.Params) { d.Falloff = s.Falloff },
}

// replaceErosion swaps in params but keeps the fields set by explicit flags.
func replaceErosion(cfg *Config, params erosion.Params, explicitFlags map[string]bool) {
	flagged := cfg.Erosion
	cfg.Erosion = params
	for name, apply := range erosionFlags {
		if explicitFlags[name] {
			apply(&cfg.Erosion, &flagged)
		}
	}
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["size"] {
		cfg.Size = fromFile.Size
	}
	if !explicitFlags["generator"] {
		cfg.Generator = fromFile.Generator
	}
	if !explicitFlags["seed"] {
		cfg.Seed = fromFile.Seed
	}
	if !explicitFlags["spread"] {
		cfg.Spread = fromFile.Spread
	}
	if !explicitFlags["reduce"] {
		cfg.Reduce = fromFile.Reduce
	}
	if !explicitFlags["octaves"] {
		cfg.Octaves = fromFile.Octaves
	}
	if !explicitFlags["frequency"] {
		cfg.Frequency = fromFile.Frequency
	}
	if !explicitFlags["amplitude"] {
		cfg.Amplitude = fromFile.Amplitude
	}
	if !explicitFlags["chunks-x"] {
		cfg.ChunksX = fromFile.ChunksX
	}
	if !explicitFlags["chunks-y"] {
		cfg.ChunksY = fromFile.ChunksY
	}
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["input"] {
		cfg.Input = fromFile.Input
	}
	if !explicitFlags["output"] {
		cfg.Output = fromFile.Output
	}
	if !explicitFlags["obj"] {
		cfg.OBJ = fromFile.OBJ
	}
	if !explicitFlags["preset"] {
		cfg.Preset = fromFile.Preset
	}
	if !explicitFlags["progress"] {
		cfg.ProgressEvery = fromFile.ProgressEvery
	}
	replaceErosion(cfg, fromFile.Erosion, explicitFlags)
}

// ApplyPreset replaces the erosion parameters with the named preset. Erosion
// fields set by explicit flags are kept.
func ApplyPreset(cfg *Config, explicitFlags map[string]bool) error {
	if cfg.Preset == "" {
		return nil
	}
	params, err := erosion.Preset(cfg.Preset)
	if err != nil {
		return err
	}
	replaceErosion(cfg, params, explicitFlags)
	return nil
}
