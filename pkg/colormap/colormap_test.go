package colormap

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoolWarmEndpoints(t *testing.T) {
	require.Equal(t, color.NRGBA{0, 0, 255, 255}, CoolWarm.Map(0))
	require.Equal(t, color.NRGBA{255, 255, 255, 255}, CoolWarm.Map(0.5))
	require.Equal(t, color.NRGBA{255, 0, 0, 255}, CoolWarm.Map(1))
}

func TestCoolWarmMatchesFormula(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		v := float64(i) / 1000
		c := CoolWarm.Map(v)
		if v < 0.5 {
			want := uint8(math.Floor(2 * v * 255))
			require.Equal(t, want, c.R, "t=%v", v)
			require.Equal(t, want, c.G, "t=%v", v)
			require.Equal(t, uint8(255), c.B, "t=%v", v)
		} else {
			want := uint8(math.Floor((1 - 2*(v-0.5)) * 255))
			require.Equal(t, uint8(255), c.R, "t=%v", v)
			require.Equal(t, want, c.G, "t=%v", v)
			require.Equal(t, want, c.B, "t=%v", v)
		}
		require.Equal(t, uint8(255), c.A)
	}
}

func TestContinuousAtMidpoint(t *testing.T) {
	below := CoolWarm.Map(0.5 - 1e-9)
	at := CoolWarm.Map(0.5)
	require.InDelta(t, float64(at.R), float64(below.R), 1)
	require.InDelta(t, float64(at.G), float64(below.G), 1)
	require.InDelta(t, float64(at.B), float64(below.B), 1)
}

func TestMapClampsOutOfRange(t *testing.T) {
	require.Equal(t, CoolWarm.Map(0), CoolWarm.Map(-3))
	require.Equal(t, CoolWarm.Map(1), CoolWarm.Map(42))
	require.Equal(t, CoolWarm.Map(0), CoolWarm.Map(math.NaN()))
}

func TestMapSigned(t *testing.T) {
	require.Equal(t, color.NRGBA{0, 0, 255, 255}, Spectral.MapSigned(-1))
	require.Equal(t, color.NRGBA{127, 255, 127, 255}, Spectral.MapSigned(0))
	require.Equal(t, color.NRGBA{255, 0, 0, 255}, Spectral.MapSigned(1))
}

func TestByName(t *testing.T) {
	g, err := ByName(" CoolWarm ")
	require.NoError(t, err)
	require.Equal(t, CoolWarm, g)

	_, err = ByName("viridis")
	require.Error(t, err)
	require.Equal(t, []string{"coolwarm", "spectral"}, Names())
}
