package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/embedviz/internal/utils"
	"github.com/menta2k/embedviz/pkg/processing"
)

var (
	embedCaption   string
	embedOutDir    string
	embedClipboard bool
)

// NewEmbedCmd creates the embed command
func NewEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed <image|url>",
		Short: "Embed an image and render its embedding grid",
		Long: `Upload an image with a caption, fetch its embedding and write the
false-color raster and the matrix file into the output directory.

Examples:
  embedviz embed cat.jpg --caption "a cat on a sofa"
  embedviz embed https://example.com/dog.png --caption dog --clipboard`,
		Args: cobra.ExactArgs(1),
		RunE: runEmbed,
	}

	cmd.Flags().StringVar(&embedCaption, "caption", "", "Caption sent with the image (required)")
	cmd.Flags().StringVarP(&embedOutDir, "out", "o", "", "Output directory (defaults to export.output_dir)")
	cmd.Flags().BoolVar(&embedClipboard, "clipboard", false, "Print the matrix text to stdout instead of writing files")

	return cmd
}

func runEmbed(cmd *cobra.Command, args []string) error {
	insp, cfg, _, err := newInspector()
	if err != nil {
		return err
	}
	name, data, err := processing.NewProcessor().ReadSource(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout())
	defer cancel()
	v, err := insp.Visualize(ctx, name, data, embedCaption)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if embedClipboard {
		text, err := insp.Clipboard()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	dir := embedOutDir
	if dir == "" {
		dir = cfg.Export.OutputDir
	}
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	rasterPath, err := insp.SaveRaster(dir)
	if err != nil {
		return err
	}
	matrixPath, err := insp.SaveMatrix(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d values on a %dx%d grid (min %.4f, max %.4f)\n",
		v.Filename, len(v.Vector), v.Grid.Side(), v.Grid.Side(), v.Normalized.Min, v.Normalized.Max)
	for _, p := range []string{rasterPath, matrixPath} {
		if st, err := os.Stat(p); err == nil {
			fmt.Fprintf(out, "  wrote %s (%s)\n", p, utils.FormatFileSize(st.Size()))
		}
	}
	return nil
}
