// Package colormap maps normalized scalars to colors with a diverging gradient.
package colormap

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"
)

// Gradient is a two-segment piecewise-linear color scale: Low at t=0, Mid at t=0.5
// and High at t=1.
type Gradient struct {
	Low  color.NRGBA
	Mid  color.NRGBA
	High color.NRGBA
}

var (
	// CoolWarm runs blue → white → red.
	CoolWarm = Gradient{
		Low:  color.NRGBA{R: 0, G: 0, B: 255, A: 255},
		Mid:  color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		High: color.NRGBA{R: 255, G: 0, B: 0, A: 255},
	}

	// Spectral runs blue → green → red, the per-cell palette used for signed values.
	Spectral = Gradient{
		Low:  color.NRGBA{R: 0, G: 0, B: 255, A: 255},
		Mid:  color.NRGBA{R: 127, G: 255, B: 127, A: 255},
		High: color.NRGBA{R: 255, G: 0, B: 0, A: 255},
	}
)

var presets = map[string]Gradient{
	"coolwarm": CoolWarm,
	"spectral": Spectral,
}

// ByName returns a preset gradient.
func ByName(name string) (Gradient, error) {
	g, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Gradient{}, fmt.Errorf("unknown palette %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return g, nil
}

// Names lists the preset gradient names in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Map returns the color for t. Values outside [0,1] are clamped.
func (g Gradient) Map(t float64) color.NRGBA {
	if math.IsNaN(t) {
		t = 0
	}
	t = clamp(t, 0, 1)

	from, to := g.Low, g.Mid
	s := 2 * t
	if t >= 0.5 {
		from, to = g.Mid, g.High
		s = 2 * (t - 0.5)
	}
	return color.NRGBA{
		R: lerp(from.R, to.R, s),
		G: lerp(from.G, to.G, s),
		B: lerp(from.B, to.B, s),
		A: 255,
	}
}

// MapSigned maps v in [-1,1] onto the gradient, with 0 at the midpoint.
func (g Gradient) MapSigned(v float64) color.NRGBA {
	return g.Map((v + 1) / 2)
}

// lerp computes floor(a(1-s) + b*s), clamped to a channel value.
func lerp(a, b uint8, s float64) uint8 {
	v := math.Floor(float64(a)*(1-s) + float64(b)*s)
	return uint8(clamp(v, 0, 255))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
