package annotate

import "github.com/menta2k/embedviz/pkg/types"

// ToImage converts a viewport pointer position to a position relative to the top-left
// corner of the displayed image. Bounds must be read at the time of the event, since
// the element moves on scroll and resize.
func ToImage(p types.Point, b types.Bounds) types.Point {
	return types.Point{X: p.X - b.Left, Y: p.Y - b.Top}
}
