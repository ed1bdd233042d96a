package erosion

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Droplet is the state of one simulated water particle. It lives for a
// single SimulationStep and is never shared.
type Droplet struct {
	Pos, Dir mgl32.Vec2
	Speed    float32
	Water    float32
	Sediment float32
}

// Termination is the reason a droplet stopped.
type Termination int

const (
	// Stuck means the droplet lost all direction, or its state went NaN.
	Stuck Termination = iota
	// OutOfBounds means the droplet left the interior or entered the border band.
	OutOfBounds
	// MaxLifetimeReached means the droplet used up its step budget.
	MaxLifetimeReached
)

func (t Termination) String() string {
	switch t {
	case Stuck:
		return "stuck"
	case OutOfBounds:
		return "out-of-bounds"
	case MaxLifetimeReached:
		return "max-lifetime"
	}
	return fmt.Sprintf("Termination(%d)", int(t))
}

// Stats summarises a run. Material amounts are in height units.
type Stats struct {
	Droplets    int
	Stuck       int
	OutOfBounds int
	Expired     int

	Eroded    float64
	Deposited float64
	// Discarded is sediment lost with terminating droplets.
	Discarded float64
}

func (s *Stats) record(t Termination) {
	s.Droplets++
	switch t {
	case Stuck:
		s.Stuck++
	case OutOfBounds:
		s.OutOfBounds++
	case MaxLifetimeReached:
		s.Expired++
	}
}

// Source is a seeded uniform generator returning values in [0, 1).
// *rand.Rand satisfies it.
type Source interface {
	Float32() float32
}
