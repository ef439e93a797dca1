package types

import (
	"fmt"
	"image"
	"math"
)

// Point is a position in pixels. Depending on context it is either viewport-relative
// (pointer events) or image-relative (after mapping).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is the viewport-relative bounding box of a displayed image element.
type Bounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Rect is the box between a drawing start point (X1,Y1) and end point (X2,Y2), in
// image-relative pixels. The end point may lie left of or above the start point.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Canonical returns the same box with X1<=X2 and Y1<=Y2.
func (r Rect) Canonical() Rect {
	return Rect{
		X1: math.Min(r.X1, r.X2),
		Y1: math.Min(r.Y1, r.Y2),
		X2: math.Max(r.X1, r.X2),
		Y2: math.Max(r.Y1, r.Y2),
	}
}

// Width returns the signed horizontal extent (negative when dragged leftwards).
func (r Rect) Width() float64 {
	return r.X2 - r.X1
}

// Height returns the signed vertical extent (negative when dragged upwards).
func (r Rect) Height() float64 {
	return r.Y2 - r.Y1
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.Width() == 0 || r.Height() == 0
}

// Rounded returns the coordinates rounded to the nearest integer, in x1,y1,x2,y2 order.
func (r Rect) Rounded() (int, int, int, int) {
	return int(math.Round(r.X1)), int(math.Round(r.Y1)), int(math.Round(r.X2)), int(math.Round(r.Y2))
}

// Image converts the canonical, rounded box to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	x1, y1, x2, y2 := r.Canonical().Rounded()
	return image.Rect(x1, y1, x2, y2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f,%.1f)-(%.1f,%.1f)", r.X1, r.Y1, r.X2, r.Y2)
}

// LabeledRegion is a committed rectangle with its label. Never mutated after commit.
type LabeledRegion struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Rect  Rect   `json:"rect"`
}

// UploadResult is the backend's reply to an upload
type UploadResult struct {
	Status string   `json:"status"`
	Files  []string `json:"files,omitempty"`
}

// OK reports whether the backend accepted the upload.
func (u *UploadResult) OK() bool {
	return u != nil && u.Status == StatusSuccess
}

// StatusSuccess is the status string a backend returns when a call succeeded.
const StatusSuccess = "success"

// EmbedResult carries the embedding matrix returned by the backend.
// Only the first row is used as the embedding vector.
type EmbedResult struct {
	Matrix [][]float64 `json:"matrix"`
}

// Vector returns the first row of the matrix, or nil if there is none.
func (e *EmbedResult) Vector() []float64 {
	if e == nil || len(e.Matrix) == 0 {
		return nil
	}
	return e.Matrix[0]
}

// LabelRequest is what gets forwarded to the backend when an annotation is committed.
type LabelRequest struct {
	Filename  string `json:"filename"`
	UserClass string `json:"user_class"`
	X1        int    `json:"x1"`
	Y1        int    `json:"y1"`
	X2        int    `json:"x2"`
	Y2        int    `json:"y2"`
}

// NewLabelRequest builds a LabelRequest from an image-relative rect.
func NewLabelRequest(filename, class string, r Rect) LabelRequest {
	x1, y1, x2, y2 := r.Rounded()
	return LabelRequest{Filename: filename, UserClass: class, X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Rect returns the request coordinates as a Rect.
func (l LabelRequest) Rect() Rect {
	return Rect{X1: float64(l.X1), Y1: float64(l.Y1), X2: float64(l.X2), Y2: float64(l.Y2)}
}

// LabelAck is the opaque acknowledgement for a label submission.
type LabelAck struct {
	Status string `json:"status"`
	Class  string `json:"class,omitempty"`
}

// Prediction is the predicted class for one uploaded image
type Prediction struct {
	Filename       string `json:"filename"`
	PredictedClass string `json:"predicted_class"`
}

// PredictResult is the backend's reply to a predict call. Status is set when no
// classifier is available yet.
type PredictResult struct {
	Status      string       `json:"status,omitempty"`
	Predictions []Prediction `json:"predictions"`
}

// StatusWaitingForLabels is returned by predict until enough classes were labeled.
const StatusWaitingForLabels = "waiting for labeled examples"
