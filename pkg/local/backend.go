// Package local is an in-process backend. Uploads are kept in a directory, images
// are described by a vision model and the description is embedded as text.
// Labeled crops train a few-shot classifier that predict runs over every upload.
package local

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/embedviz/internal/utils"
	"github.com/menta2k/embedviz/pkg/client"
	"github.com/menta2k/embedviz/pkg/fewshot"
	"github.com/menta2k/embedviz/pkg/processing"
	"github.com/menta2k/embedviz/pkg/types"
)

const (
	DefaultDescribePrompt = "Describe the main content of this image in one or two plain sentences. Mention objects, colors and setting."
	DefaultCropPrompt     = "Describe the object shown in this image crop in one short sentence."
)

var ErrInvalidName = errors.New("invalid file name")

// Config for the local backend
type Config struct {
	UploadDir      string
	VisionModel    string
	EmbedModel     string
	DescribePrompt string
	CropPrompt     string
	MaxDim         int // longest side sent to the vision model, 0 keeps the original size
	Quality        int
	Neighbors      int
}

// DefaultConfig keeps uploads under ./uploads
func DefaultConfig() Config {
	return Config{
		UploadDir:      "uploads",
		DescribePrompt: DefaultDescribePrompt,
		CropPrompt:     DefaultCropPrompt,
		MaxDim:         1024,
		Quality:        85,
		Neighbors:      fewshot.DefaultNeighbors,
	}
}

// Backend implements client.Backend
type Backend struct {
	vision client.VisionClient
	config Config
	proc   *processing.Processor
	knn    *fewshot.Classifier
	log    logs.Log

	mu       sync.Mutex
	features map[string][]float64 // whole-image features by upload name
}

// New creates the upload directory and returns a ready backend.
func New(vision client.VisionClient, config Config, log logs.Log) (*Backend, error) {
	def := DefaultConfig()
	if config.UploadDir == "" {
		config.UploadDir = def.UploadDir
	}
	if config.DescribePrompt == "" {
		config.DescribePrompt = def.DescribePrompt
	}
	if config.CropPrompt == "" {
		config.CropPrompt = def.CropPrompt
	}
	if config.Quality <= 0 {
		config.Quality = def.Quality
	}
	if err := utils.EnsureDir(config.UploadDir); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Backend{
		vision:   vision,
		config:   config,
		proc:     processing.NewProcessor(),
		knn:      fewshot.New(config.Neighbors),
		log:      log,
		features: map[string][]float64{},
	}, nil
}

func (b *Backend) path(name string) (string, error) {
	clean := utils.SanitizeFilename(name)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(b.config.UploadDir, clean), nil
}

// Upload stores the image under its sanitized name, replacing any earlier file.
func (b *Backend) Upload(ctx context.Context, name string, r io.Reader) (*types.UploadResult, error) {
	path, err := b.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	stored := filepath.Base(path)
	b.mu.Lock()
	delete(b.features, stored)
	b.mu.Unlock()

	b.log.Infof("Stored upload %s (%s)", stored, utils.FormatFileSize(n))
	return &types.UploadResult{Status: types.StatusSuccess, Files: []string{stored}}, nil
}

func (b *Backend) load(filename string) (image.Image, error) {
	path, err := b.path(filename)
	if err != nil {
		return nil, err
	}
	if !utils.FileExists(path) {
		return nil, fmt.Errorf("upload %q not found", filename)
	}
	return b.proc.LoadImage(path)
}

func (b *Backend) describe(ctx context.Context, img image.Image, prompt string) (string, error) {
	imgB64, err := b.proc.PrepareImageForModel(img, "jpg", b.config.MaxDim, b.config.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}
	text, err := b.vision.Describe(ctx, b.config.VisionModel, prompt, imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to describe image: %w", err)
	}
	return text, nil
}

func (b *Backend) embed(ctx context.Context, text string) ([]float64, error) {
	out, err := b.vision.EmbedText(ctx, b.config.EmbedModel, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(out) == 0 || len(out[0]) == 0 {
		return nil, fmt.Errorf("embedding model returned no vector")
	}
	vec := make([]float64, len(out[0]))
	for i, v := range out[0] {
		vec[i] = float64(v)
	}
	return vec, nil
}

// imageFeatures describes and embeds a whole upload, caching by name
func (b *Backend) imageFeatures(ctx context.Context, filename string) ([]float64, error) {
	b.mu.Lock()
	vec, ok := b.features[filename]
	b.mu.Unlock()
	if ok {
		return vec, nil
	}

	img, err := b.load(filename)
	if err != nil {
		return nil, err
	}
	desc, err := b.describe(ctx, img, b.config.DescribePrompt)
	if err != nil {
		return nil, err
	}
	vec, err = b.embed(ctx, desc)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.features[filename] = vec
	b.mu.Unlock()
	return vec, nil
}

// Embed embeds the caption together with the model's description of the image.
func (b *Backend) Embed(ctx context.Context, filename, caption string) (*types.EmbedResult, error) {
	img, err := b.load(filename)
	if err != nil {
		return nil, err
	}
	desc, err := b.describe(ctx, img, b.config.DescribePrompt)
	if err != nil {
		return nil, err
	}
	b.log.Debugf("Description of %s: %s", filename, desc)

	text := strings.TrimSpace(caption)
	if desc != "" {
		text = text + "\n" + desc
	}
	vec, err := b.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return &types.EmbedResult{Matrix: [][]float64{vec}}, nil
}

// Label crops the region, embeds its description and adds it as a training example.
func (b *Backend) Label(ctx context.Context, req types.LabelRequest) (*types.LabelAck, error) {
	if strings.TrimSpace(req.UserClass) == "" {
		return nil, fmt.Errorf("user_class is required")
	}
	img, err := b.load(req.Filename)
	if err != nil {
		return nil, err
	}
	crop, err := b.proc.CropImageToRect(img, req.Rect())
	if err != nil {
		return nil, err
	}
	desc, err := b.describe(ctx, crop, b.config.CropPrompt)
	if err != nil {
		return nil, err
	}
	vec, err := b.embed(ctx, desc)
	if err != nil {
		return nil, err
	}
	if err := b.knn.Add(vec, req.UserClass); err != nil {
		return nil, err
	}
	b.log.Infof("Added example %q from %s %v (%d examples)", req.UserClass, req.Filename, req.Rect(), b.knn.Len())
	return &types.LabelAck{Status: types.StatusSuccess, Class: req.UserClass}, nil
}

// Predict classifies every upload once examples of two classes exist.
func (b *Backend) Predict(ctx context.Context) (*types.PredictResult, error) {
	if !b.knn.Ready() {
		return &types.PredictResult{Status: types.StatusWaitingForLabels}, nil
	}
	files, err := utils.ListImageFiles(b.config.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}

	result := &types.PredictResult{Predictions: []types.Prediction{}}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := b.imageFeatures(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		class, err := b.knn.Predict(vec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		result.Predictions = append(result.Predictions, types.Prediction{Filename: name, PredictedClass: class})
	}
	return result, nil
}
