package erosion

// BoxBlur runs a single 3×3 mean filter over the grid. It reads from a frozen
// copy, so no vertex sees an already smoothed neighbour. Samples that fall
// off the grid take the centre vertex's value. Vertices within band of an
// edge are left untouched; pass 0 to blur everything.
func BoxBlur(g *HeightGrid, band int) {
	frozen := g.Snapshot()
	for i, centre := range frozen {
		x, y := g.Coord(i)
		if band > 0 && g.InBand(x, y, band) {
			continue
		}
		var sum float32
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if !g.InBounds(nx, ny) {
					sum += centre
					continue
				}
				sum += frozen[g.Index(nx, ny)]
			}
		}
		g.heights[i] = sum / 9
	}
}
