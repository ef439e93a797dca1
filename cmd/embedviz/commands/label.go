package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/menta2k/embedviz/internal/utils"
	"github.com/menta2k/embedviz/pkg/annotate"
	"github.com/menta2k/embedviz/pkg/processing"
	"github.com/menta2k/embedviz/pkg/types"
)

var (
	labelClass   string
	labelRects   []string
	labelOverlay string
)

// NewLabelCmd creates the label command
func NewLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label <image|url>",
		Short: "Label rectangles on an image",
		Long: `Upload an image and submit one or more labeled rectangles to the backend.
Rectangles are given in image pixels as x1,y1,x2,y2 and may be given in any
corner order.

Examples:
  embedviz label cat.jpg --class cat --rect 10,10,120,90
  embedviz label pets.png --class dog --rect 0,0,50,50 --rect 60,60,100,120 --overlay pets_labeled.png`,
		Args: cobra.ExactArgs(1),
		RunE: runLabel,
	}

	cmd.Flags().StringVar(&labelClass, "class", "", "Class name for every rectangle (required)")
	cmd.Flags().StringArrayVar(&labelRects, "rect", nil, "Rectangle x1,y1,x2,y2 (repeatable)")
	cmd.Flags().StringVar(&labelOverlay, "overlay", "", "Write the image with the labeled regions drawn on it")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("rect")

	return cmd
}

// parseRect parses "x1,y1,x2,y2"
func parseRect(s string) (types.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.Rect{}, fmt.Errorf("rect %q: expected x1,y1,x2,y2", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.Rect{}, fmt.Errorf("rect %q: %w", s, err)
		}
		v[i] = f
	}
	return types.Rect{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

func runLabel(cmd *cobra.Command, args []string) error {
	rects := make([]types.Rect, 0, len(labelRects))
	for _, s := range labelRects {
		r, err := parseRect(s)
		if err != nil {
			return err
		}
		rects = append(rects, r)
	}

	insp, cfg, _, err := newInspector()
	if err != nil {
		return err
	}
	name, data, err := processing.NewProcessor().ReadSource(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout()*time.Duration(len(rects)+1))
	defer cancel()
	if err := insp.Upload(ctx, name, data); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range rects {
		// the image is addressed directly, so the bounds sit at the origin
		if err := insp.Dispatch(annotate.PointerDown{Pointer: types.Point{X: r.X1, Y: r.Y1}}); err != nil {
			return err
		}
		if err := insp.Dispatch(annotate.PointerUp{Pointer: types.Point{X: r.X2, Y: r.Y2}}); err != nil {
			return err
		}
		region, err := insp.Commit(ctx, labelClass)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "labeled %s as %q at %s\n", name, region.Label, region.Rect.Canonical())
	}

	if labelOverlay != "" {
		img, err := insp.Overlay()
		if err != nil {
			return err
		}
		format := "png"
		if ext := utils.GetFileExtension(labelOverlay); ext != "" {
			format = ext
		}
		if err := processing.NewProcessor().SaveImage(img, labelOverlay, format, cfg.Export.Quality, cfg.Export.Lossless); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", labelOverlay)
	}
	return nil
}
