// Package embedviz turns image embeddings into false-color rasters and collects
// labeled rectangle annotations for few-shot classification.
//
// An Inspector ties a backend (remote HTTP server or in-process vision models) to
// the visualization pipeline and the annotation engine:
//
//	logger, err := logs.NewLog()
//	if err != nil {
//		log.Fatal(err)
//	}
//	insp, err := embedviz.NewFromConfig(config.Default(), logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Upload, embed and rasterize an image
//	v, err := insp.Visualize(ctx, "cat.jpg", data, "a cat on a sofa")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("%d values on a %dx%d grid\n", len(v.Vector), v.Grid.Side(), v.Grid.Side())
//
//	// Draw a rectangle and label it
//	insp.Dispatch(annotate.PointerDown{Pointer: types.Point{X: 10, Y: 10}})
//	insp.Dispatch(annotate.PointerUp{Pointer: types.Point{X: 60, Y: 60}})
//	region, err := insp.Commit(ctx, "cat")
//
// The package consists of these components:
//
// 1. Grid (pkg/grid): reshape a vector into a square grid and normalize it
// 2. Colormap and Raster (pkg/colormap, pkg/raster): diverging gradient and encoding
// 3. Export (pkg/export): JSON/YAML matrix download and clipboard text
// 4. Annotate (pkg/annotate): pointer-driven rectangle state machine
// 5. Backends (pkg/remote, pkg/local): upload, embed, label and predict
package embedviz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/embedviz/internal/config"
	"github.com/menta2k/embedviz/pkg/annotate"
	"github.com/menta2k/embedviz/pkg/client"
	"github.com/menta2k/embedviz/pkg/colormap"
	"github.com/menta2k/embedviz/pkg/export"
	"github.com/menta2k/embedviz/pkg/llamacpp"
	"github.com/menta2k/embedviz/pkg/local"
	"github.com/menta2k/embedviz/pkg/ollama"
	"github.com/menta2k/embedviz/pkg/openai"
	"github.com/menta2k/embedviz/pkg/processing"
	"github.com/menta2k/embedviz/pkg/raster"
	"github.com/menta2k/embedviz/pkg/remote"
	"github.com/menta2k/embedviz/pkg/types"
	"github.com/menta2k/embedviz/pkg/viz"
)

// Version of the embedviz library
const Version = "1.0.0"

var ErrNoImage = errors.New("no image has been uploaded for annotation")

// Options configures an Inspector
type Options struct {
	Viz      viz.Config
	Scale    int
	Smooth   bool
	Raster   raster.Options
	Exporter *export.Exporter
}

// DefaultOptions renders cool-warm PNGs at 16x and exports JSON
func DefaultOptions() Options {
	return Options{
		Viz:      viz.DefaultConfig(),
		Scale:    16,
		Raster:   raster.DefaultOptions(),
		Exporter: export.New(),
	}
}

// Inspector provides a high-level interface over the visualization and annotation sessions
type Inspector struct {
	backend   client.Backend
	viz       *viz.Session
	annotator *annotate.Annotator
	proc      *processing.Processor
	opts      Options
	log       logs.Log

	mu     sync.Mutex
	images map[string]image.Image // decoded uploads by file name, for overlays
}

// New creates an Inspector on top of backend
func New(backend client.Backend, opts Options, log logs.Log) *Inspector {
	if opts.Exporter == nil {
		opts.Exporter = export.New()
	}
	if opts.Raster.Format == "" {
		opts.Raster = raster.DefaultOptions()
	}
	in := &Inspector{
		backend:   backend,
		viz:       viz.NewSession(opts.Viz, log),
		annotator: annotate.New(backend, log),
		proc:      processing.NewProcessor(),
		opts:      opts,
		log:       log,
		images:    map[string]image.Image{},
	}
	in.viz.OnApply(in.selectVisualized)
	return in
}

// selectVisualized makes the newly visualized image the annotation target
func (in *Inspector) selectVisualized(v *viz.Visualization) {
	if in.annotator.Session().Image() == v.Filename {
		return
	}
	if err := in.annotator.Dispatch(annotate.SelectImage{Filename: v.Filename}); err != nil {
		in.log.Warnf("cannot select %s for annotation: %v", v.Filename, err)
	}
}

// NewFromConfig builds the configured backend and an Inspector around it
func NewFromConfig(cfg *config.Config, log logs.Log) (*Inspector, error) {
	backend, err := NewBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return New(backend, opts, log), nil
}

// OptionsFromConfig maps the visualization and export sections onto Options
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	gradient, err := colormap.ByName(cfg.Visualization.Colormap)
	if err != nil {
		return Options{}, err
	}
	exporter, err := export.NewWithFormat(cfg.Export.MatrixFormat)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Viz:    viz.Config{Epsilon: cfg.Visualization.Epsilon, Gradient: gradient},
		Scale:  cfg.Visualization.Scale,
		Smooth: cfg.Visualization.Smooth,
		Raster: raster.Options{
			Format:   cfg.Export.ImageFormat,
			Quality:  cfg.Export.Quality,
			Lossless: cfg.Export.Lossless,
		},
		Exporter: exporter,
	}, nil
}

// NewBackend creates the remote or local backend selected by cfg
func NewBackend(cfg *config.Config, log logs.Log) (client.Backend, error) {
	b := cfg.Backend
	switch b.Mode {
	case config.ModeRemote:
		c, err := remote.NewClient(b.URL, b.Timeout())
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ModeLocal:
		vision, err := NewVisionClient(cfg)
		if err != nil {
			return nil, err
		}
		lb, err := local.New(vision, local.Config{
			UploadDir:   b.UploadDir,
			VisionModel: b.VisionModel,
			EmbedModel:  b.EmbedModel,
			MaxDim:      b.MaxDim,
			Quality:     cfg.Export.Quality,
			Neighbors:   b.Neighbors,
		}, log)
		if err != nil {
			return nil, err
		}
		return lb, nil
	default:
		return nil, fmt.Errorf("unknown backend mode: %s", b.Mode)
	}
}

// NewVisionClient creates the vision client used by the local backend
func NewVisionClient(cfg *config.Config) (client.VisionClient, error) {
	b := cfg.Backend
	var (
		vc  client.VisionClient
		err error
	)
	switch b.Vision {
	case config.VisionOllama:
		var c *ollama.Client
		c, err = ollama.NewClient(b.VisionURL)
		vc = c
	case config.VisionLlamaCpp:
		var c *llamacpp.Client
		c, err = llamacpp.NewClient(b.VisionURL)
		vc = c
	case config.VisionOpenAI:
		var c *openai.Client
		c, err = openai.NewClient(b.APIKey, b.VisionURL)
		vc = c
	default:
		return nil, fmt.Errorf("unknown vision provider: %s", b.Vision)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", b.Vision, err)
	}
	return vc, nil
}

// Backend returns the backend the inspector talks to
func (in *Inspector) Backend() client.Backend {
	return in.backend
}

// Visualize uploads the image, embeds it with the caption and renders the raster.
// When the result becomes current the image also becomes the annotation target;
// a response superseded by a newer request changes neither.
func (in *Inspector) Visualize(ctx context.Context, filename string, data []byte, caption string) (*viz.Visualization, error) {
	var r io.Reader
	if len(data) > 0 {
		r = bytes.NewReader(data)
	}
	v, err := in.viz.Run(ctx, in.backend, filename, r, caption)
	if err != nil {
		return nil, err
	}
	in.remember(filename, data)
	return v, nil
}

// Upload sends an image to the backend without embedding it and selects it for annotation
func (in *Inspector) Upload(ctx context.Context, filename string, data []byte) error {
	if filename == "" || len(data) == 0 {
		return viz.ErrMissingFile
	}
	res, err := in.backend.Upload(ctx, filename, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	if !res.OK() {
		return viz.ErrUploadRejected
	}
	in.remember(filename, data)
	return in.annotator.Dispatch(annotate.SelectImage{Filename: filename})
}

func (in *Inspector) remember(filename string, data []byte) {
	img, err := in.proc.DecodeImage(data)
	if err != nil {
		in.log.Debugf("not keeping %s for overlays: %v", filename, err)
		return
	}
	in.mu.Lock()
	in.images[filename] = img
	in.mu.Unlock()
}

// Current returns the latest visualization
func (in *Inspector) Current() (*viz.Visualization, error) {
	return in.viz.Current()
}

// Busy reports whether an embed request is in flight
func (in *Inspector) Busy() bool {
	return in.viz.Busy()
}

// Cell returns the raw and normalized value under a grid cell
func (in *Inspector) Cell(row, col int) (raw, normalized float64, err error) {
	v, err := in.viz.Current()
	if err != nil {
		return 0, 0, err
	}
	raw, ok := v.Grid.At(row, col)
	if !ok {
		return 0, 0, fmt.Errorf("cell (%d,%d) outside %dx%d grid", row, col, v.Grid.Side(), v.Grid.Side())
	}
	normalized, _ = v.Normalized.At(row, col)
	return raw, normalized, nil
}

// Present returns the current raster scaled for display
func (in *Inspector) Present() (*image.NRGBA, error) {
	v, err := in.viz.Current()
	if err != nil {
		return nil, err
	}
	return raster.Present(v.Image, in.opts.Scale, in.opts.Smooth), nil
}

// RasterOptions returns the encoding used by WriteRaster and SaveRaster
func (in *Inspector) RasterOptions() raster.Options {
	return in.opts.Raster
}

// WriteRaster encodes the presented raster to w
func (in *Inspector) WriteRaster(w io.Writer) error {
	img, err := in.Present()
	if err != nil {
		return err
	}
	return raster.Encode(w, img, in.opts.Raster)
}

// SaveRaster writes the presented raster into dir and returns its path
func (in *Inspector) SaveRaster(dir string) (string, error) {
	img, err := in.Present()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, export.BaseName+"."+in.opts.Raster.Ext())
	if err := raster.Save(img, path, in.opts.Raster); err != nil {
		return "", err
	}
	return path, nil
}

// Exporter returns the matrix exporter
func (in *Inspector) Exporter() *export.Exporter {
	return in.opts.Exporter
}

// ExportMatrix returns the download payload for the current matrix
func (in *Inspector) ExportMatrix() (export.File, error) {
	v, err := in.viz.Current()
	if err != nil {
		return export.File{}, err
	}
	return in.opts.Exporter.File(v.Grid)
}

// Clipboard returns the text to place on the clipboard for the current matrix
func (in *Inspector) Clipboard() (string, error) {
	v, err := in.viz.Current()
	if err != nil {
		return "", err
	}
	return in.opts.Exporter.ClipboardPayload(v.Grid)
}

// SaveMatrix writes the current matrix into dir and returns its path
func (in *Inspector) SaveMatrix(dir string) (string, error) {
	v, err := in.viz.Current()
	if err != nil {
		return "", err
	}
	return in.opts.Exporter.WriteFile(dir, v.Grid)
}

// Annotator returns the annotation engine
func (in *Inspector) Annotator() *annotate.Annotator {
	return in.annotator
}

// Dispatch forwards a gesture command to the annotation session
func (in *Inspector) Dispatch(cmd annotate.Command) error {
	return in.annotator.Dispatch(cmd)
}

// Commit labels the finished rectangle
func (in *Inspector) Commit(ctx context.Context, label string) (types.LabeledRegion, error) {
	return in.annotator.Commit(ctx, label)
}

// Overlay draws the committed regions and the rectangle in progress onto the
// selected image
func (in *Inspector) Overlay() (*image.NRGBA, error) {
	s := in.annotator.Session()
	name := s.Image()
	in.mu.Lock()
	img, ok := in.images[name]
	in.mu.Unlock()
	if name == "" || !ok {
		return nil, ErrNoImage
	}
	var current *types.Rect
	if r, ok := s.Current(); ok {
		current = &r
	}
	return in.proc.DrawRegions(img, s.Regions(), current), nil
}

// Predict asks the backend to classify every upload
func (in *Inspector) Predict(ctx context.Context) (*types.PredictResult, error) {
	res, err := in.backend.Predict(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}
	return res, nil
}

// Status is a snapshot of both sessions
type Status struct {
	Busy       bool              `json:"busy"`
	HasMatrix  bool              `json:"has_matrix"`
	Filename   string            `json:"filename,omitempty"`
	Side       int               `json:"side,omitempty"`
	Annotation annotate.Snapshot `json:"annotation"`
}

// Status returns a snapshot of the inspector state
func (in *Inspector) Status() Status {
	st := Status{
		Busy:       in.viz.Busy(),
		Annotation: in.annotator.Session().Snapshot(),
	}
	if v, err := in.viz.Current(); err == nil {
		st.HasMatrix = true
		st.Filename = v.Filename
		st.Side = v.Grid.Side()
	}
	return st
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
