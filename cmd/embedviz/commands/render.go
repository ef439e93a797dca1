package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/embedviz"
	"github.com/menta2k/embedviz/internal/config"
	"github.com/menta2k/embedviz/internal/utils"
	"github.com/menta2k/embedviz/pkg/export"
	"github.com/menta2k/embedviz/pkg/raster"
	"github.com/menta2k/embedviz/pkg/viz"
)

var (
	renderOut      string
	renderColormap string
	renderScale    int
	renderSmooth   bool
)

// NewRenderCmd creates the render command
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <matrix.json|matrix.yaml>",
		Short: "Render a saved embedding matrix as an image",
		Long: `Render a matrix written by "embed" (or downloaded from the server)
without contacting any backend.

Examples:
  embedviz render out/embedding_matrix.json
  embedviz render m.yaml --colormap spectral --scale 32 -o m.webp`,
		Args: cobra.ExactArgs(1),
		RunE: runRender,
	}

	cmd.Flags().StringVarP(&renderOut, "out", "o", "", "Output image path (defaults next to the matrix file)")
	cmd.Flags().StringVar(&renderColormap, "colormap", "", "Colormap name (overrides config)")
	cmd.Flags().IntVar(&renderScale, "scale", 0, "Pixels per cell (overrides config)")
	cmd.Flags().BoolVar(&renderSmooth, "smooth", false, "Blend cells instead of drawing solid blocks")

	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if renderColormap != "" {
		cfg.Visualization.Colormap = renderColormap
	}
	if renderScale > 0 {
		cfg.Visualization.Scale = renderScale
	}
	if renderSmooth {
		cfg.Visualization.Smooth = true
	}
	opts, err := embedviz.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	g, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}
	var vec []float64
	for _, row := range g {
		vec = append(vec, row...)
	}
	v, err := viz.Build(vec, opts.Viz)
	if err != nil {
		return err
	}

	out := renderOut
	if out == "" {
		base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
		out = base + "." + opts.Raster.Ext()
	} else if ext := utils.GetFileExtension(out); ext == "webp" || ext == "png" {
		opts.Raster.Format = ext
	}
	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		return err
	}
	img := raster.Present(v.Image, opts.Scale, opts.Smooth)
	if err := raster.Save(img, out, opts.Raster); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %dx%d grid to %s\n", v.Grid.Side(), v.Grid.Side(), out)
	return nil
}
