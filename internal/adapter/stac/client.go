// Package stac searches Earth Search, the STAC API over the AWS Open Data
// Sentinel-2 and Landsat archives.
package stac

import (
	"bytes"
	"context"
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

const maxThumbnailBytes = 32 << 20

type collection struct {
	id       string
	platform string // empty matches every platform in the collection
	buffer   float64
}

var collections = map[domain.Satellite]collection{
	domain.Sentinel2: {id: "sentinel-2-l2a", buffer: 0.05},
	domain.Landsat8:  {id: "landsat-c2-l2", platform: "landsat-8", buffer: 0.1},
	domain.Landsat9:  {id: "landsat-c2-l2", platform: "landsat-9", buffer: 0.1},
}

// Client implements domain.ImageProvider against a STAC API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	size       int
	logger     *slog.Logger
}

// NewClient creates a STAC client rooted at baseURL.
func NewClient(baseURL string, size int, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		size:       size,
		logger:     logger,
	}
}

func (c *Client) Source() domain.DataSource { return domain.SourceAWS }

// Search runs an item search for the satellite's collection.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Scene, error) {
	coll, ok := collections[q.Satellite]
	if !ok {
		return nil, fmt.Errorf("%w: satellite %q not in STAC catalog", domain.ErrInvalidRequest, q.Satellite)
	}

	filter := map[string]map[string]any{
		"eo:cloud_cover": {"lt": q.MaxCloudCover},
	}
	if coll.platform != "" {
		filter["platform"] = map[string]any{"eq": coll.platform}
	}
	body := searchRequest{
		Collections: []string{coll.id},
		BBox:        q.Location.BBox(coll.buffer),
		Datetime:    q.Start.UTC().Format(time.RFC3339) + "/" + q.End.UTC().Format(time.RFC3339),
		Query:       filter,
		Limit:       q.Limit,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("stac search: %w", err)
	}
	defer resp.Body.Close()

	var out featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scenes := make([]domain.Scene, 0, len(out.Features))
	for _, f := range out.Features {
		thumb, ok := f.Assets["thumbnail"]
		if !ok || thumb.Href == "" {
			c.logger.Debug("stac item without thumbnail, skipping", "id", f.ID)
			continue
		}
		scenes = append(scenes, domain.Scene{
			ID:         f.ID,
			AcquiredAt: f.Properties.Datetime,
			CloudCover: f.Properties.CloudCover,
			Platform:   platformName(f.Properties.Platform, q.Satellite),
			Satellite:  q.Satellite,
			Source:     domain.SourceAWS,
			Ref:        thumb.Href,
		})
	}
	return scenes, nil
}

// Download fetches the item thumbnail and re-encodes it as a square PNG.
// Thumbnails cover the whole tile, so loc does not narrow the chip.
func (c *Client) Download(ctx context.Context, scene domain.Scene, _ domain.Location) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scene.Ref, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("download thumbnail: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}

	png, err := imaging.Normalize(data, c.size)
	if err != nil {
		return nil, fmt.Errorf("thumbnail %s: %w", scene.ID, err)
	}
	return png, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("stac API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func platformName(platform string, sat domain.Satellite) string {
	if platform == "" {
		return sat.DisplayName()
	}
	return platform
}

// STAC API types.

type searchRequest struct {
	Collections []string                  `json:"collections"`
	BBox        [4]float64                `json:"bbox"`
	Datetime    string                    `json:"datetime"`
	Query       map[string]map[string]any `json:"query"`
	Limit       int                       `json:"limit,omitempty"`
}

type featureCollection struct {
	Features []item `json:"features"`
}

type item struct {
	ID         string           `json:"id"`
	Properties itemProperties   `json:"properties"`
	Assets     map[string]asset `json:"assets"`
}

type itemProperties struct {
	Datetime   time.Time `json:"datetime"`
	CloudCover float64   `json:"eo:cloud_cover"`
	Platform   string    `json:"platform"`
}

type asset struct {
	Href string `json:"href"`
	Type string `json:"type"`
}
