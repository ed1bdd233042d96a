package utils

import (
	"math/rand"
)

// Point is an integer vertex coordinate on a square grid.
type Point struct {
	X, Y int
}

// ToIndex flattens the point into a row-major index for a grid of the given width.
func (p Point) ToIndex(width int) int {
	return ToIndex(p.X, p.Y, width)
}

// Add offsets the point.
func (p Point) Add(o Point) Point {
	return Point{p.X + o.X, p.Y + o.Y}
}

// ToIndex flattens (x, y) into a row-major index.
func ToIndex(x, y, width int) int {
	return x + y*width
}

// FromIndex is the inverse of ToIndex.
func FromIndex(index, width int) Point {
	return Point{X: index % width, Y: index / width}
}

// InBand reports whether (x, y) lies within band vertices of any edge of a
// size×size grid.
func InBand(x, y, size, band int) bool {
	return x < band || y < band || x >= size-band || y >= size-band
}

func Midpoint(p1, p2 int) int {
	return (p2 + p1) / 2
}

func Average(nums ...float32) float32 {
	var total float32 = 0.0
	var count float32 = 0.0
	for _, num := range nums {
		total += num
		count++
	}
	if count == 0 {
		return 0
	}
	return total / count
}

// Jitter shifts value by a uniform amount in [-scale, scale).
func Jitter(rng *rand.Rand, value, scale float32) float32 {
	random := rng.Float32() * scale * 2
	shift := scale - random
	return shift + value
}
