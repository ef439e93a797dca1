package raster

import (
	"bytes"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/embedviz/pkg/colormap"
	"github.com/menta2k/embedviz/pkg/grid"
)

func scenario(t *testing.T) grid.Normalized {
	g, err := grid.Reshape([]float64{0.1, 0.9, 0.4, 0.2, 0.8})
	require.NoError(t, err)
	return grid.Normalize(g, grid.DefaultEpsilon)
}

func TestRasterizeOnePixelPerCell(t *testing.T) {
	n := scenario(t)
	img := Rasterize(n, colormap.CoolWarm)

	require.Equal(t, 3, img.Bounds().Dx())
	require.Equal(t, 3, img.Bounds().Dy())
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			want := colormap.CoolWarm.Map(n.Cells[y][x])
			require.Equal(t, want, img.NRGBAAt(x, y), "pixel %d,%d", x, y)
			require.Equal(t, uint8(255), img.NRGBAAt(x, y).A)
		}
	}
	// padding cells normalize to 0, the cool end
	require.Equal(t, color.NRGBA{0, 0, 255, 255}, img.NRGBAAt(2, 2))
}

func TestPresentNearestKeepsBlocks(t *testing.T) {
	img := Rasterize(scenario(t), colormap.CoolWarm)
	big := Present(img, 4, false)
	require.Equal(t, 12, big.Bounds().Dx())
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			require.Equal(t, img.NRGBAAt(0, 0), big.NRGBAAt(x, y))
		}
	}

	same := Present(img, 1, false)
	require.Equal(t, img.Pix, same.Pix)
}

func TestEncodePNG(t *testing.T) {
	img := Rasterize(scenario(t), colormap.CoolWarm)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, DefaultOptions()))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestEncodeWebP(t *testing.T) {
	img := Rasterize(scenario(t), colormap.CoolWarm)
	opts := Options{Format: "webp", Quality: 90, Lossless: true}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, opts))
	require.Equal(t, "image/webp", opts.ContentType())

	decoded, err := webp.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 3, decoded.Bounds().Dx())
}

func TestEncodeUnknownFormat(t *testing.T) {
	img := Rasterize(scenario(t), colormap.CoolWarm)
	err := Encode(&bytes.Buffer{}, img, Options{Format: "bmp"})
	require.Error(t, err)
}

func TestSave(t *testing.T) {
	img := Rasterize(scenario(t), colormap.CoolWarm)
	path := filepath.Join(t.TempDir(), "m.png")
	require.NoError(t, Save(img, path, DefaultOptions()))
}
