// Package remoteclip turns satellite chips into feature vectors, either through
// a RemoteCLIP inference service or a local colour-histogram embedder.
package remoteclip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/imaging"
)

// InputSize is the square resolution RemoteCLIP's ViT expects.
const InputSize = 224

// Client implements domain.Embedder by calling a RemoteCLIP inference service.
type Client struct {
	model      string
	labels     []string
	dim        int
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a RemoteCLIP client. Labels are the zero-shot prompts
// scored for every image; dim is the expected embedding length.
func NewClient(baseURL, model string, labels []string, dim int, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		model:      model,
		labels:     labels,
		dim:        dim,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Embed normalises the image to 224×224 and requests its embedding and
// zero-shot label.
func (c *Client) Embed(ctx context.Context, image []byte) (domain.FeatureVector, error) {
	img, _, err := imaging.Decode(image)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("%w: %v", domain.ErrModelInference, err)
	}
	png, err := imaging.EncodePNG(imaging.Resize(img, InputSize))
	if err != nil {
		return domain.FeatureVector{}, err
	}

	payload, err := json.Marshal(embedRequest{
		Image:  base64.StdEncoding.EncodeToString(png),
		Labels: c.labels,
		Model:  c.model,
	})
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		// The model rejected the input itself.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return domain.FeatureVector{}, fmt.Errorf("%w: status %d: %s", domain.ErrModelInference, resp.StatusCode, msg)
		}
		return domain.FeatureVector{}, fmt.Errorf("remoteclip API error: status %d: %s", resp.StatusCode, msg)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.FeatureVector{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding) != c.dim {
		return domain.FeatureVector{}, fmt.Errorf("%w: embedding has %d dimensions, want %d", domain.ErrModelInference, len(out.Embedding), c.dim)
	}

	model := out.Model
	if model == "" {
		model = c.model
	}
	c.logger.Debug("image embedded", "model", model, "label", out.Label, "confidence", out.Scores[out.Label])
	return domain.NewFeatureVector(out.Embedding, model, out.Label, out.Scores[out.Label]), nil
}

// RemoteCLIP service wire types.

type embedRequest struct {
	Image  string   `json:"image"` // base64 PNG
	Labels []string `json:"labels"`
	Model  string   `json:"model"`
}

type embedResponse struct {
	Embedding []float32          `json:"embedding"`
	Label     string             `json:"label"`
	Scores    map[string]float64 `json:"scores"`
	Model     string             `json:"model"`
}
