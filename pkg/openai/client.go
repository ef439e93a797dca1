// Package openai implements the vision client on top of any OpenAI-compatible API.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is used when no vision model is configured
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is used when no embedding model is configured
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
)

// Client wraps the go-openai client
type Client struct {
	client  *openai.Client
	timeout time.Duration
}

// NewClient creates a client. baseURL may be empty for api.openai.com.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &Client{
		client:  openai.NewClientWithConfig(config),
		timeout: 2 * time.Minute,
	}, nil
}

// Describe sends the image as a data URL and returns the model's answer
func (c *Client) Describe(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if model == "" {
		model = DefaultChatModel
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	if imgB64 != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + imgB64,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

// EmbedText returns one vector per input, in input order
func (c *Client) EmbedText(ctx context.Context, model string, input []string) ([][]float32, error) {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: input,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(input))
	}

	out := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
