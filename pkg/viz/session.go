// Package viz runs the embedding visualization pipeline: upload, embed, reshape,
// normalize and rasterize, keeping the latest result for display and export.
package viz

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/embedviz/pkg/client"
	"github.com/menta2k/embedviz/pkg/colormap"
	"github.com/menta2k/embedviz/pkg/grid"
	"github.com/menta2k/embedviz/pkg/raster"
)

var (
	ErrMissingFile     = errors.New("no image file selected")
	ErrMissingCaption  = errors.New("caption is required")
	ErrUploadRejected  = errors.New("upload was not successful")
	ErrEmptyEmbedding  = errors.New("backend returned an empty embedding")
	ErrStale           = errors.New("superseded by a newer embed request")
	ErrNoVisualization = errors.New("no embedding has been visualized yet")
)

// Config controls how vectors are turned into pixels
type Config struct {
	Epsilon  float64
	Gradient colormap.Gradient
}

// DefaultConfig uses the cool-warm palette and the default epsilon.
func DefaultConfig() Config {
	return Config{Epsilon: grid.DefaultEpsilon, Gradient: colormap.CoolWarm}
}

// Visualization is the result of one successful embed request.
type Visualization struct {
	Filename   string
	Caption    string
	Vector     []float64
	Grid       grid.Grid
	Normalized grid.Normalized
	Image      *image.NRGBA
}

// Token identifies one embed request.
type Token uint64

// Session holds the current visualization.
type Session struct {
	mu      sync.Mutex
	config  Config
	latest  Token
	busy    bool
	current *Visualization
	onApply func(*Visualization)
	log     logs.Log
}

// NewSession returns an empty session.
func NewSession(config Config, log logs.Log) *Session {
	if config.Epsilon <= 0 {
		config.Epsilon = grid.DefaultEpsilon
	}
	return &Session{config: config, log: log}
}

// Build runs reshape → normalize → rasterize on a vector.
func Build(vec []float64, config Config) (*Visualization, error) {
	g, err := grid.Reshape(vec)
	if err != nil {
		return nil, err
	}
	n := grid.Normalize(g, config.Epsilon)
	return &Visualization{
		Vector:     append([]float64(nil), vec...),
		Grid:       g,
		Normalized: n,
		Image:      raster.Rasterize(n, config.Gradient),
	}, nil
}

// Begin issues a new request token and marks the session busy.
func (s *Session) Begin() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	s.busy = true
	return s.latest
}

// Apply builds and stores a visualization for tok. Responses for anything but the
// latest token are discarded.
func (s *Session) Apply(tok Token, filename, caption string, vec []float64) (*Visualization, error) {
	if len(vec) == 0 {
		s.Fail(tok)
		return nil, ErrEmptyEmbedding
	}
	// pure computation, done outside the lock
	v, err := Build(vec, s.config)
	if err != nil {
		s.Fail(tok)
		return nil, err
	}
	v.Filename, v.Caption = filename, caption

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.latest {
		return nil, ErrStale
	}
	s.busy = false
	s.current = v
	if s.onApply != nil {
		s.onApply(v)
	}
	return v, nil
}

// OnApply registers fn to run whenever a visualization becomes current. It runs
// under the session lock, so a stale response can never trigger it and fn must not
// call back into the session.
func (s *Session) OnApply(fn func(*Visualization)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onApply = fn
}

// Fail clears the busy flag if tok is the latest request. The current visualization
// is left as it was.
func (s *Session) Fail(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok == s.latest {
		s.busy = false
	}
}

// Busy reports whether an embed request is outstanding.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Current returns the latest visualization.
func (s *Session) Current() (*Visualization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoVisualization
	}
	return s.current, nil
}

// Run uploads the image, asks the backend for its embedding and visualizes it.
// Missing inputs are rejected before anything is sent.
func (s *Session) Run(ctx context.Context, backend client.Backend, filename string, r io.Reader, caption string) (*Visualization, error) {
	if strings.TrimSpace(filename) == "" || r == nil {
		return nil, ErrMissingFile
	}
	if strings.TrimSpace(caption) == "" {
		return nil, ErrMissingCaption
	}

	tok := s.Begin()

	up, err := backend.Upload(ctx, filename, r)
	if err != nil {
		s.Fail(tok)
		return nil, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	if !up.OK() {
		s.Fail(tok)
		return nil, ErrUploadRejected
	}
	s.log.Debugf("uploaded %s", filename)

	res, err := backend.Embed(ctx, filename, caption)
	if err != nil {
		s.Fail(tok)
		return nil, fmt.Errorf("failed to embed %s: %w", filename, err)
	}

	v, err := s.Apply(tok, filename, caption, res.Vector())
	if err != nil {
		if errors.Is(err, ErrStale) {
			s.log.Infof("discarding stale embedding for %s", filename)
		}
		return nil, err
	}
	s.log.Infof("visualized %s: %d values on a %dx%d grid (min %.4f, max %.4f)",
		filename, len(v.Vector), v.Grid.Side(), v.Grid.Side(), v.Normalized.Min, v.Normalized.Max)
	return v, nil
}
