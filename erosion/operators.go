package erosion

type corner struct {
	x, y   int
	weight float32
}

// writable reports whether the vertex may be changed under the border policy.
func (e *Eroder) writable(x, y int) bool {
	return !e.params.BlockBoundaryErosion || !e.grid.InBand(x, y, e.params.BorderSize)
}

// deposit spreads amount over the corners of cell (ix, iy) and returns how
// much was actually written. Corners in a blocked border band are skipped
// and the rest share their portion.
func (e *Eroder) deposit(ix, iy int, fx, fy, amount float32) float32 {
	if amount <= 0 {
		return 0
	}
	corners := [4]corner{
		{ix, iy, (1 - fx) * (1 - fy)},
		{ix + 1, iy, fx * (1 - fy)},
		{ix, iy + 1, (1 - fx) * fy},
		{ix + 1, iy + 1, fx * fy},
	}
	if e.params.DepositMode == DepositQuarter {
		for i := range corners {
			corners[i].weight = 0.25
		}
	}

	var total float32
	for i, c := range corners {
		if !e.writable(c.x, c.y) {
			corners[i].weight = 0
			continue
		}
		total += c.weight
	}
	if total <= 0 {
		return 0
	}

	for _, c := range corners {
		if c.weight <= 0 {
			continue
		}
		e.grid.heights[e.grid.Index(c.x, c.y)] += amount * c.weight / total
	}
	e.stats.Deposited += float64(amount)
	return amount
}

// erode removes amount from the terrain around the vertex at index using its
// precomputed kernel and returns what was picked up.
func (e *Eroder) erode(index int, amount float32) float32 {
	if amount <= 0 {
		return 0
	}
	var taken float32
	for _, k := range e.kernel.Entry(index) {
		delta := amount * k.Weight
		e.grid.heights[k.Index] -= delta
		taken += delta
	}
	e.stats.Eroded += float64(taken)
	return taken
}
