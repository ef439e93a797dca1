// Package grid turns a flat embedding vector into a square grid and normalizes it
// for display.
package grid

import (
	"errors"
	"math"
)

// DefaultEpsilon keeps the normalization denominator away from zero.
const DefaultEpsilon = 1e-8

// ErrEmptyVector is returned when reshaping a vector with no elements.
var ErrEmptyVector = errors.New("embedding vector is empty")

// Grid is a square, row-major arrangement of values.
type Grid [][]float64

// SideFor returns the smallest side length whose square holds n values.
func SideFor(n int) int {
	if n <= 0 {
		return 0
	}
	side := int(math.Ceil(math.Sqrt(float64(n))))
	// guard against sqrt rounding on large perfect squares
	for side*side < n {
		side++
	}
	for side > 1 && (side-1)*(side-1) >= n {
		side--
	}
	return side
}

// Reshape lays vec out row by row in a side×side grid, padding the tail with zeros.
func Reshape(vec []float64) (Grid, error) {
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	side := SideFor(len(vec))
	g := make(Grid, side)
	for i := range g {
		row := make([]float64, side)
		start := i * side
		if start < len(vec) {
			copy(row, vec[start:min(start+side, len(vec))])
		}
		g[i] = row
	}
	return g, nil
}

// Side returns the number of rows.
func (g Grid) Side() int {
	return len(g)
}

// At returns the cell at row, col.
func (g Grid) At(row, col int) (float64, bool) {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return 0, false
	}
	return g[row][col], true
}

// Range returns the minimum and maximum over every cell, padding included.
func (g Grid) Range() (lo, hi float64) {
	first := true
	for _, row := range g {
		for _, v := range row {
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Normalized is a grid mapped onto [0,1] using one global min/max.
type Normalized struct {
	Cells   Grid
	Min     float64
	Max     float64
	Epsilon float64
}

// Normalize maps every cell to (v-min)/(max-min+eps). eps <= 0 selects DefaultEpsilon.
func Normalize(g Grid, eps float64) Normalized {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	lo, hi := g.Range()
	// halved so that hi-lo cannot overflow for extreme finite values
	den := hi/2 - lo/2 + eps/2
	cells := make(Grid, len(g))
	for i, row := range g {
		out := make([]float64, len(row))
		for j, v := range row {
			out[j] = (v/2 - lo/2) / den
		}
		cells[i] = out
	}
	return Normalized{Cells: cells, Min: lo, Max: hi, Epsilon: eps}
}

// Side returns the number of rows.
func (n Normalized) Side() int {
	return n.Cells.Side()
}

// At returns the normalized cell at row, col.
func (n Normalized) At(row, col int) (float64, bool) {
	return n.Cells.At(row, col)
}
