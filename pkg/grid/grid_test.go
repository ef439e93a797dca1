package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReshapeSides(t *testing.T) {
	for n := 1; n <= 200; n++ {
		vec := make([]float64, n)
		for i := range vec {
			vec[i] = float64(i + 1)
		}
		g, err := Reshape(vec)
		require.NoError(t, err)

		side := g.Side()
		require.Equal(t, int(math.Ceil(math.Sqrt(float64(n)))), side, "n=%d", n)
		require.GreaterOrEqual(t, side*side, n)
		if n > 1 {
			require.Less(t, (side-1)*(side-1), n)
		}

		zeros := 0
		for i, row := range g {
			require.Len(t, row, side)
			for j, v := range row {
				idx := i*side + j
				if idx < n {
					require.Equal(t, vec[idx], v)
				} else {
					require.Equal(t, 0.0, v)
					zeros++
				}
			}
		}
		require.Equal(t, side*side-n, zeros, "n=%d", n)
	}
}

func TestReshapePerfectSquare(t *testing.T) {
	g, err := Reshape([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, Grid{{1, 2}, {3, 4}}, g)
}

func TestReshapeEmpty(t *testing.T) {
	_, err := Reshape(nil)
	require.ErrorIs(t, err, ErrEmptyVector)
}

func TestReshapeScenario(t *testing.T) {
	g, err := Reshape([]float64{0.1, 0.9, 0.4, 0.2, 0.8})
	require.NoError(t, err)
	require.Equal(t, Grid{{0.1, 0.9, 0.4}, {0.2, 0.8, 0}, {0, 0, 0}}, g)

	n := Normalize(g, 0)
	require.Equal(t, 0.0, n.Min)
	require.Equal(t, 0.9, n.Max)
	require.InDelta(t, 0.111, n.Cells[0][0], 0.001)
}

func TestNormalizeBounds(t *testing.T) {
	g := Grid{{-3, 7.5}, {0.25, -1e6}}
	n := Normalize(g, DefaultEpsilon)
	for _, row := range n.Cells {
		for _, v := range row {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
	}
	require.Equal(t, 0.0, n.Cells[1][1])
	require.InDelta(t, 1.0, n.Cells[0][1], 1e-9)
}

func TestNormalizeConstant(t *testing.T) {
	g := Grid{{4.2, 4.2}, {4.2, 4.2}}
	n := Normalize(g, DefaultEpsilon)
	for _, row := range n.Cells {
		for _, v := range row {
			require.False(t, math.IsNaN(v))
			require.False(t, math.IsInf(v, 0))
			require.InDelta(t, 0.0, v, 1e-6)
		}
	}
}

func TestNormalizeExtremeRange(t *testing.T) {
	g, err := Reshape([]float64{-1e308, 1e308, 0, 5})
	require.NoError(t, err)
	n := Normalize(g, DefaultEpsilon)
	for r, row := range n.Cells {
		for c, v := range row {
			require.False(t, math.IsNaN(v), "cell (%d,%d) is NaN", r, c)
			require.GreaterOrEqual(t, v, 0.0, "cell (%d,%d)", r, c)
			require.LessOrEqual(t, v, 1.0, "cell (%d,%d)", r, c)
		}
	}
	require.Equal(t, 0.0, n.Cells[0][0])
	require.InDelta(t, 1.0, n.Cells[0][1], 1e-9)
	require.InDelta(t, 0.5, n.Cells[1][0], 1e-9)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	g := Grid{{1, 2}, {3, 4}}
	orig := g.Clone()
	Normalize(g, 0)
	require.Equal(t, orig, g)
}

func TestAt(t *testing.T) {
	g := Grid{{1, 2}, {3, 4}}
	v, ok := g.At(1, 0)
	require.True(t, ok)
	require.Equal(t, 3.0, v)

	_, ok = g.At(2, 0)
	require.False(t, ok)
	_, ok = g.At(0, -1)
	require.False(t, ok)
}

func TestSideFor(t *testing.T) {
	require.Equal(t, 0, SideFor(0))
	require.Equal(t, 1, SideFor(1))
	require.Equal(t, 2, SideFor(2))
	require.Equal(t, 2, SideFor(4))
	require.Equal(t, 3, SideFor(5))
	require.Equal(t, 46, SideFor(2048))
	require.Equal(t, 32, SideFor(1024))
}
