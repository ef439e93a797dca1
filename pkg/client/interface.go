package client

import (
	"context"
	"io"

	"github.com/menta2k/embedviz/pkg/types"
)

// VisionClient is a remote model that can look at an image and embed text.
type VisionClient interface {
	Describe(ctx context.Context, model, prompt, imgB64 string) (string, error)
	EmbedText(ctx context.Context, model string, input []string) ([][]float32, error)
}

// Labeler receives committed annotations.
type Labeler interface {
	Label(ctx context.Context, req types.LabelRequest) (*types.LabelAck, error)
}

// Backend is the service that stores uploads, produces embeddings and collects labels.
type Backend interface {
	Labeler
	Upload(ctx context.Context, name string, r io.Reader) (*types.UploadResult, error)
	Embed(ctx context.Context, filename, caption string) (*types.EmbedResult, error)
	Predict(ctx context.Context) (*types.PredictResult, error)
}
