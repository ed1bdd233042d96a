package erosion

import (
	"fmt"
	"sort"
	"strings"
)

// SpeedModel selects how droplet speed is updated after each step.
type SpeedModel int

const (
	// SpeedProportional sets speed to max(-heightDelta*BaseSpeed, 0).
	SpeedProportional SpeedModel = iota
	// SpeedEnergy sets speed to sqrt(max(0, speed^2 + 2*Gravity*(-heightDelta))).
	SpeedEnergy
)

var speedModelNames = map[SpeedModel]string{
	SpeedProportional: "proportional",
	SpeedEnergy:       "energy",
}

func (m SpeedModel) String() string {
	if name, ok := speedModelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("SpeedModel(%d)", int(m))
}

func (m SpeedModel) MarshalText() ([]byte, error) {
	name, ok := speedModelNames[m]
	if !ok {
		return nil, fmt.Errorf("%w: unknown speed model %d", ErrInvalidParam, int(m))
	}
	return []byte(name), nil
}

func (m *SpeedModel) UnmarshalText(text []byte) error {
	for k, name := range speedModelNames {
		if strings.EqualFold(name, string(text)) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown speed model %q", ErrInvalidParam, text)
}

// DepositMode selects how deposited sediment is spread over the four corners
// of the droplet's cell.
type DepositMode int

const (
	// DepositBilinear weights each corner by its bilinear fraction.
	DepositBilinear DepositMode = iota
	// DepositQuarter gives each corner an equal share.
	DepositQuarter
)

var depositModeNames = map[DepositMode]string{
	DepositBilinear: "bilinear",
	DepositQuarter:  "quarter",
}

func (m DepositMode) String() string {
	if name, ok := depositModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("DepositMode(%d)", int(m))
}

func (m DepositMode) MarshalText() ([]byte, error) {
	name, ok := depositModeNames[m]
	if !ok {
		return nil, fmt.Errorf("%w: unknown deposit mode %d", ErrInvalidParam, int(m))
	}
	return []byte(name), nil
}

func (m *DepositMode) UnmarshalText(text []byte) error {
	for k, name := range depositModeNames {
		if strings.EqualFold(name, string(text)) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown deposit mode %q", ErrInvalidParam, text)
}

// Params holds every tunable of the droplet simulation.
type Params struct {
	Seed int64 `json:"seed"`

	Inertia   float32 `json:"inertia"`
	Gravity   float32 `json:"gravity"`
	BaseSpeed float32 `json:"base_speed"`

	SedimentCapacityFactor float32 `json:"sediment_capacity_factor"`
	MinSedimentCapacity    float32 `json:"min_sediment_capacity"`

	ErosionRadius    int     `json:"erosion_radius"`
	ErosionSpeed     float32 `json:"erosion_speed"`
	DepositionSpeed  float32 `json:"deposition_speed"`
	EvaporationSpeed float32 `json:"evaporation_speed"`

	DropletLifetime int `json:"droplet_lifetime"`
	Iterations      int `json:"iterations"`

	// BorderSize is the width of the band along every edge that is never
	// written when BlockBoundaryErosion is set.
	BorderSize           int  `json:"border_size"`
	BlockBoundaryErosion bool `json:"block_boundary_erosion"`
	ApplyBlur            bool `json:"apply_blur"`

	// DepositOnTermination drops any sediment still carried by a droplet
	// when it dies. When false the sediment is discarded.
	DepositOnTermination bool `json:"deposit_on_termination"`

	SpeedModel  SpeedModel  `json:"speed_model"`
	DepositMode DepositMode `json:"deposit_mode"`
	Falloff     Falloff     `json:"falloff"`
}

// DefaultParams mirrors the settings the simulator has historically shipped
// with.
func DefaultParams() Params {
	return Params{
		Seed:                   1337,
		Inertia:                0.4,
		Gravity:                4,
		BaseSpeed:              1,
		SedimentCapacityFactor: 4,
		MinSedimentCapacity:    0.01,
		ErosionRadius:          6,
		ErosionSpeed:           0.9,
		DepositionSpeed:        0.1,
		EvaporationSpeed:       0.1,
		DropletLifetime:        30,
		Iterations:             70000,
		BorderSize:             2,
		BlockBoundaryErosion:   false,
		ApplyBlur:              false,
		SpeedModel:             SpeedProportional,
		DepositMode:            DepositBilinear,
		Falloff:                FalloffLinear,
	}
}

// SubtleErosion weathers terrain gently: short-lived droplets, slow rates.
func SubtleErosion() Params {
	p := DefaultParams()
	p.Inertia = 0.05
	p.ErosionSpeed = 0.3
	p.DepositionSpeed = 0.05
	p.EvaporationSpeed = 0.2
	p.ErosionRadius = 3
	p.DropletLifetime = 20
	p.Iterations = 20000
	return p
}

// HeavyErosion carves deep channels with long-lived, energetic droplets.
func HeavyErosion() Params {
	p := DefaultParams()
	p.Inertia = 0.3
	p.Gravity = 10
	p.SedimentCapacityFactor = 8
	p.ErosionSpeed = 0.9
	p.DepositionSpeed = 0.2
	p.EvaporationSpeed = 0.02
	p.DropletLifetime = 80
	p.Iterations = 150000
	p.SpeedModel = SpeedEnergy
	return p
}

var presets = map[string]func() Params{
	"default": DefaultParams,
	"subtle":  SubtleErosion,
	"heavy":   HeavyErosion,
}

// Preset looks up a named parameter set.
func Preset(name string) (Params, error) {
	f, ok := presets[strings.ToLower(name)]
	if !ok {
		return Params{}, fmt.Errorf("%w: unknown preset %q (have %s)", ErrInvalidParam, name, strings.Join(PresetNames(), ", "))
	}
	return f(), nil
}

// PresetNames lists the registered presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects parameter sets the simulator cannot run with.
func (p Params) Validate() error {
	if p.ErosionRadius <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRadius, p.ErosionRadius)
	}
	if p.BorderSize < 0 {
		return fmt.Errorf("%w: border size %d is negative", ErrInvalidParam, p.BorderSize)
	}
	if p.DropletLifetime < 1 {
		return fmt.Errorf("%w: droplet lifetime %d must be at least 1", ErrInvalidParam, p.DropletLifetime)
	}
	if p.Iterations < 0 {
		return fmt.Errorf("%w: iterations %d is negative", ErrInvalidParam, p.Iterations)
	}
	unit := []struct {
		name  string
		value float32
	}{
		{"inertia", p.Inertia},
		{"erosion speed", p.ErosionSpeed},
		{"deposition speed", p.DepositionSpeed},
		{"evaporation speed", p.EvaporationSpeed},
	}
	for _, u := range unit {
		if !(u.value >= 0 && u.value <= 1) {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidParam, u.name, u.value)
		}
	}
	nonNegative := []struct {
		name  string
		value float32
	}{
		{"gravity", p.Gravity},
		{"base speed", p.BaseSpeed},
		{"sediment capacity factor", p.SedimentCapacityFactor},
		{"min sediment capacity", p.MinSedimentCapacity},
	}
	for _, n := range nonNegative {
		if !(n.value >= 0) {
			return fmt.Errorf("%w: %s %v is negative", ErrInvalidParam, n.name, n.value)
		}
	}
	if _, ok := speedModelNames[p.SpeedModel]; !ok {
		return fmt.Errorf("%w: unknown speed model %d", ErrInvalidParam, int(p.SpeedModel))
	}
	if _, ok := depositModeNames[p.DepositMode]; !ok {
		return fmt.Errorf("%w: unknown deposit mode %d", ErrInvalidParam, int(p.DepositMode))
	}
	if _, ok := falloffNames[p.Falloff]; !ok {
		return fmt.Errorf("%w: unknown falloff %d", ErrInvalidParam, int(p.Falloff))
	}
	return nil
}

// spawnInset is the distance from every edge that spawn positions keep.
func (p Params) spawnInset() int {
	inset := p.ErosionRadius
	if p.BlockBoundaryErosion && p.BorderSize > inset {
		inset = p.BorderSize
	}
	return inset
}
