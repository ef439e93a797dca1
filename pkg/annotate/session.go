// Package annotate implements the rectangle annotation engine: pointer gestures draw
// a rectangle over an image, and a label commits it as a region.
package annotate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/embedviz/pkg/types"
)

var (
	ErrNoImage    = errors.New("no image selected")
	ErrNoRect     = errors.New("no finished rectangle to label")
	ErrEmptyLabel = errors.New("label is empty")
	ErrStale      = errors.New("superseded by a newer label submission")
	ErrNotPending = errors.New("label submission is not pending")
	ErrBusy       = errors.New("this rectangle is already being labeled")
)

// State of the drawing gesture
type State int

const (
	Idle State = iota
	Drawing
	Finalized // rectangle drawn, waiting for a label
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case Finalized:
		return "finalized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Command is one user gesture applied atomically to a Session.
type Command interface {
	apply(s *Session) error
}

// SelectImage makes filename the annotated image and clears all regions.
type SelectImage struct {
	Filename string
}

// PointerDown starts a new rectangle at the pointer.
type PointerDown struct {
	Pointer types.Point
	Bounds  types.Bounds
}

// PointerMove drags the end corner of the rectangle being drawn.
type PointerMove struct {
	Pointer types.Point
	Bounds  types.Bounds
}

// PointerUp finishes the rectangle at the pointer.
type PointerUp struct {
	Pointer types.Point
	Bounds  types.Bounds
}

// Reset drops the rectangle in progress.
type Reset struct{}

// Snapshot is a copy of the session state.
type Snapshot struct {
	ID      string                `json:"id"`
	Image   string                `json:"image"`
	State   string                `json:"state"`
	Current *types.Rect           `json:"current,omitempty"`
	Regions []types.LabeledRegion `json:"regions"`
	Classes []string              `json:"classes"`
	Busy    bool                  `json:"busy"`
}

// PendingLabel is a label submission that has been validated and is waiting for the
// backend to acknowledge it.
type PendingLabel struct {
	Token   uint64
	Request types.LabelRequest
	Region  types.LabeledRegion
	gesture uint64
	image   string
}

// Session holds the annotation state for one image.
type Session struct {
	mu      sync.Mutex
	id      string
	image   string
	state   State
	current types.Rect
	gesture uint64 // increments on every pointer-down
	regions []types.LabeledRegion
	classes []string

	token          uint64 // latest issued label token
	pending        bool
	pendingGesture uint64
}

// NewSession returns an empty session with no image selected.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

// ID identifies the session.
func (s *Session) ID() string {
	return s.id
}

// Dispatch applies cmd. On error the session is unchanged.
func (s *Session) Dispatch(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cmd.apply(s)
}

func (c SelectImage) apply(s *Session) error {
	name := strings.TrimSpace(c.Filename)
	if name == "" {
		return ErrNoImage
	}
	s.image = name
	s.state = Idle
	s.current = types.Rect{}
	s.regions = nil
	// in-flight submissions belong to the previous image
	s.token++
	s.pending = false
	return nil
}

func (c PointerDown) apply(s *Session) error {
	if s.image == "" {
		return ErrNoImage
	}
	p := ToImage(c.Pointer, c.Bounds)
	s.current = types.Rect{X1: p.X, Y1: p.Y, X2: p.X, Y2: p.Y}
	s.state = Drawing
	s.gesture++
	return nil
}

func (c PointerMove) apply(s *Session) error {
	if s.state != Drawing {
		return nil
	}
	p := ToImage(c.Pointer, c.Bounds)
	s.current.X2, s.current.Y2 = p.X, p.Y
	return nil
}

func (c PointerUp) apply(s *Session) error {
	if s.state != Drawing {
		return nil
	}
	p := ToImage(c.Pointer, c.Bounds)
	s.current.X2, s.current.Y2 = p.X, p.Y
	s.state = Finalized
	return nil
}

func (Reset) apply(s *Session) error {
	s.state = Idle
	s.current = types.Rect{}
	return nil
}

// State returns the gesture state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Image returns the selected image name.
func (s *Session) Image() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// Current returns the rectangle being drawn or waiting for a label.
func (s *Session) Current() (types.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.state != Idle
}

// Regions returns the committed regions in commit order.
func (s *Session) Regions() []types.LabeledRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.LabeledRegion(nil), s.regions...)
}

// Busy reports whether a label submission is waiting for the backend.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// AddClass records a class name. Duplicates and blank names are ignored.
func (s *Session) AddClass(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addClass(name)
}

func (s *Session) addClass(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, c := range s.classes {
		if c == name {
			return false
		}
	}
	s.classes = append(s.classes, name)
	return true
}

// Classes returns the known class names in insertion order.
func (s *Session) Classes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.classes...)
}

// Snapshot copies the whole session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:      s.id,
		Image:   s.image,
		State:   s.state.String(),
		Regions: append([]types.LabeledRegion{}, s.regions...),
		Classes: append([]string{}, s.classes...),
		Busy:    s.pending,
	}
	if s.state != Idle {
		r := s.current
		snap.Current = &r
	}
	return snap
}

// BeginCommit validates a label for the finished rectangle and issues a new token.
// The session is not modified apart from the busy flag.
func (s *Session) BeginCommit(label string) (*PendingLabel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label = strings.TrimSpace(label)
	switch {
	case s.image == "":
		return nil, ErrNoImage
	case s.state != Finalized:
		return nil, ErrNoRect
	case label == "":
		return nil, ErrEmptyLabel
	case s.pending && s.pendingGesture == s.gesture:
		return nil, ErrBusy
	}

	s.token++
	s.pending = true
	s.pendingGesture = s.gesture
	return &PendingLabel{
		Token:   s.token,
		Request: types.NewLabelRequest(s.image, label, s.current.Canonical()),
		Region:  types.LabeledRegion{ID: uuid.NewString(), Label: label, Rect: s.current},
		gesture: s.gesture,
		image:   s.image,
	}, nil
}

// CompleteCommit applies the outcome of a label submission. A failed submission leaves
// the regions untouched. A stale one (a newer submission was issued, or the image
// changed) is dropped with ErrStale.
func (s *Session) CompleteCommit(p *PendingLabel, sendErr error) (types.LabeledRegion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p == nil {
		return types.LabeledRegion{}, ErrNotPending
	}
	if p.Token != s.token || p.image != s.image {
		return types.LabeledRegion{}, ErrStale
	}
	s.pending = false
	if sendErr != nil {
		return types.LabeledRegion{}, sendErr
	}

	s.regions = append(s.regions, p.Region)
	s.addClass(p.Region.Label)
	// only clear the rectangle that was submitted, not one drawn since
	if s.gesture == p.gesture && s.state == Finalized {
		s.state = Idle
		s.current = types.Rect{}
	}
	return p.Region, nil
}
