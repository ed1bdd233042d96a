package erosion

import "errors"

var (
	// ErrInvalidRadius is returned when the erosion radius is not positive.
	ErrInvalidRadius = errors.New("erosion radius must be positive")
	// ErrGridTooSmall is returned when the grid cannot hold a droplet's
	// spawn range or a kernel centre.
	ErrGridTooSmall = errors.New("grid too small")
	// ErrSizeMismatch is returned when a height slice does not hold exactly
	// size*size values.
	ErrSizeMismatch = errors.New("heightmap size mismatch")
	// ErrInvalidParam is returned for any other rejected parameter.
	ErrInvalidParam = errors.New("invalid erosion parameter")
)
