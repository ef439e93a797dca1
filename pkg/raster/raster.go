// Package raster renders a normalized grid into pixels and encodes the result.
package raster

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/menta2k/embedviz/pkg/colormap"
	"github.com/menta2k/embedviz/pkg/grid"
)

// Rasterize writes one opaque pixel per grid cell, row-major.
func Rasterize(n grid.Normalized, g colormap.Gradient) *image.NRGBA {
	side := n.Side()
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for y, row := range n.Cells {
		i := y * img.Stride
		for x := 0; x < side; x++ {
			var v float64
			if x < len(row) {
				v = row[x]
			}
			c := g.Map(v)
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = 255
			i += 4
		}
	}
	return img
}

// Present scales a raster up by an integer factor for display. Without smoothing each
// cell becomes a solid block; with smoothing the blocks are blended linearly.
func Present(img image.Image, scale int, smooth bool) *image.NRGBA {
	if scale <= 1 {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	filter := imaging.NearestNeighbor
	if smooth {
		filter = imaging.Linear
	}
	return imaging.Resize(img, b.Dx()*scale, b.Dy()*scale, filter)
}

// Options controls raster encoding
type Options struct {
	Format   string // png or webp
	Quality  int
	Lossless bool
}

// DefaultOptions encodes lossless PNG.
func DefaultOptions() Options {
	return Options{Format: "png", Quality: 90, Lossless: true}
}

// ContentType returns the MIME type for the encoded format.
func (o Options) ContentType() string {
	if strings.EqualFold(o.Format, "webp") {
		return "image/webp"
	}
	return "image/png"
}

// Ext returns the file extension for the encoded format, without the dot.
func (o Options) Ext() string {
	if strings.EqualFold(o.Format, "webp") {
		return "webp"
	}
	return "png"
}

// Encode writes img in the requested format.
func Encode(w io.Writer, img image.Image, opts Options) error {
	switch strings.ToLower(opts.Format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)})
	case "png", "":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	default:
		return fmt.Errorf("unsupported raster format: %s", opts.Format)
	}
}

// Save writes img to path in the requested format.
func Save(img image.Image, path string, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create raster file: %w", err)
	}
	if err := Encode(f, img, opts); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode raster: %w", err)
	}
	return f.Close()
}
