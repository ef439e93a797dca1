// Package remote talks to an embedding/labeling server over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/embedviz/pkg/types"
)

// DefaultURL is where the server listens when run locally
const DefaultURL = "http://localhost:8000"

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(serverURL string, timeout time.Duration) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", serverURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Upload posts the image as multipart field "files"
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (*types.UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", name)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var res types.UploadResult
	if err := c.do(ctx, http.MethodPost, "/upload/", mw.FormDataContentType(), &body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Embed posts form fields filename and caption
func (c *Client) Embed(ctx context.Context, filename, caption string) (*types.EmbedResult, error) {
	form := url.Values{}
	form.Set("filename", filename)
	form.Set("caption", caption)

	var res types.EmbedResult
	if err := c.postForm(ctx, "/embed/", form, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Label posts the class and integer box coordinates
func (c *Client) Label(ctx context.Context, req types.LabelRequest) (*types.LabelAck, error) {
	form := url.Values{}
	form.Set("filename", req.Filename)
	form.Set("user_class", req.UserClass)
	form.Set("x1", strconv.Itoa(req.X1))
	form.Set("y1", strconv.Itoa(req.Y1))
	form.Set("x2", strconv.Itoa(req.X2))
	form.Set("y2", strconv.Itoa(req.Y2))

	var res types.LabelAck
	if err := c.postForm(ctx, "/label/", form, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Predict fetches the server's class predictions for all uploads
func (c *Client) Predict(ctx context.Context) (*types.PredictResult, error) {
	var res types.PredictResult
	if err := c.do(ctx, http.MethodGet, "/predict/", "", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
