// Package earthengine fetches scenes from the Google Earth Engine REST API.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	scope = "https://www.googleapis.com/auth/earthengine.readonly"

	// publicProject hosts the Earth Engine public data catalog.
	publicProject = "earthengine-public"
)

// collection describes how a satellite is stored in the Earth Engine catalog.
type collection struct {
	id         string
	cloudProp  string
	bands      []string
	min, max   float64
	buffer     float64 // degrees around the location rendered into a chip
}

var collections = map[domain.Satellite]collection{
	domain.Sentinel2: {
		id: "COPERNICUS/S2_SR_HARMONIZED", cloudProp: "CLOUDY_PIXEL_PERCENTAGE",
		bands: []string{"B4", "B3", "B2"}, min: 0, max: 3000, buffer: 0.05,
	},
	domain.Landsat8: {
		id: "LANDSAT/LC08/C02/T1_L2", cloudProp: "CLOUD_COVER",
		bands: []string{"SR_B4", "SR_B3", "SR_B2"}, min: 7300, max: 18000, buffer: 0.1,
	},
	domain.Landsat9: {
		id: "LANDSAT/LC09/C02/T1_L2", cloudProp: "CLOUD_COVER",
		bands: []string{"SR_B4", "SR_B3", "SR_B2"}, min: 7300, max: 18000, buffer: 0.1,
	},
}

// Client implements domain.ImageProvider against Earth Engine.
type Client struct {
	project    string
	httpClient *http.Client
	baseURL    string
	size       int
	logger     *slog.Logger
}

// NewClient creates an Earth Engine client. A non-empty token is used as a
// static bearer token; otherwise Application Default Credentials are loaded.
func NewClient(ctx context.Context, baseURL, project, token string, size int, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	} else {
		c, err := google.DefaultClient(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("earth engine credentials: %w", err)
		}
		httpClient = c
	}
	httpClient.Timeout = timeout

	return &Client{
		project:    project,
		httpClient: httpClient,
		baseURL:    baseURL,
		size:       size,
		logger:     logger,
	}, nil
}

func (c *Client) Source() domain.DataSource { return domain.SourceEarthEngine }

// Search lists images of the satellite's collection covering the location.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Scene, error) {
	coll, ok := collections[q.Satellite]
	if !ok {
		return nil, fmt.Errorf("%w: satellite %q not in earth engine catalog", domain.ErrInvalidRequest, q.Satellite)
	}

	region, err := json.Marshal(map[string]any{
		"type":        "Point",
		"coordinates": []float64{q.Location.Longitude, q.Location.Latitude},
	})
	if err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}

	params := url.Values{
		"startTime": {q.Start.UTC().Format(time.RFC3339)},
		"endTime":   {q.End.UTC().Format(time.RFC3339)},
		"region":    {string(region)},
		"filter":    {fmt.Sprintf("%s < %g", coll.cloudProp, q.MaxCloudCover)},
	}
	if q.Limit > 0 {
		params.Set("pageSize", fmt.Sprint(q.Limit))
	}
	u := fmt.Sprintf("%s/v1/projects/%s/assets/%s:listImages?%s", c.baseURL, publicProject, coll.id, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var out listImagesResponse
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	scenes := make([]domain.Scene, 0, len(out.Images))
	for _, img := range out.Images {
		cloud, ok := img.Properties[coll.cloudProp].(float64)
		if !ok {
			c.logger.Debug("earth engine image without cloud cover, skipping", "id", img.ID)
			continue
		}
		scenes = append(scenes, domain.Scene{
			ID:         img.ID,
			AcquiredAt: img.StartTime,
			CloudCover: cloud,
			Platform:   q.Satellite.DisplayName(),
			Satellite:  q.Satellite,
			Source:     domain.SourceEarthEngine,
			Ref:        img.Name,
		})
	}
	return scenes, nil
}

// Download renders an RGB PNG chip of the scene around loc.
func (c *Client) Download(ctx context.Context, scene domain.Scene, loc domain.Location) ([]byte, error) {
	coll, ok := collections[scene.Satellite]
	if !ok {
		return nil, fmt.Errorf("%w: satellite %q not in earth engine catalog", domain.ErrInvalidRequest, scene.Satellite)
	}

	bbox := loc.BBox(coll.buffer)
	body := getPixelsRequest{
		FileFormat: "PNG",
		BandIDs:    coll.bands,
		Grid: pixelGrid{
			Dimensions: gridDimensions{Width: c.size, Height: c.size},
			AffineTransform: affineTransform{
				ScaleX:     (bbox[2] - bbox[0]) / float64(c.size),
				TranslateX: bbox[0],
				ScaleY:     -(bbox[3] - bbox[1]) / float64(c.size),
				TranslateY: bbox[3],
			},
			CRSCode: "EPSG:4326",
		},
		VisualizationOptions: visualizationOptions{
			Ranges: []valueRange{{Min: coll.min, Max: coll.max}},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode getPixels request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/%s:getPixels", c.baseURL, scene.Ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("get pixels: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}
	return data, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send executes req and converts non-200 responses into errors.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.project != "" && c.project != publicProject {
		req.Header.Set("X-Goog-User-Project", c.project)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("earth engine API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// Earth Engine REST types.

type listImagesResponse struct {
	Images []eeImage `json:"images"`
}

type eeImage struct {
	Name       string         `json:"name"`
	ID         string         `json:"id"`
	StartTime  time.Time      `json:"startTime"`
	Properties map[string]any `json:"properties"`
}

type getPixelsRequest struct {
	FileFormat           string               `json:"fileFormat"`
	BandIDs              []string             `json:"bandIds"`
	Grid                 pixelGrid            `json:"grid"`
	VisualizationOptions visualizationOptions `json:"visualizationOptions"`
}

type pixelGrid struct {
	Dimensions      gridDimensions  `json:"dimensions"`
	AffineTransform affineTransform `json:"affineTransform"`
	CRSCode         string          `json:"crsCode"`
}

type gridDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type affineTransform struct {
	ScaleX     float64 `json:"scaleX"`
	ShearX     float64 `json:"shearX"`
	TranslateX float64 `json:"translateX"`
	ShearY     float64 `json:"shearY"`
	ScaleY     float64 `json:"scaleY"`
	TranslateY float64 `json:"translateY"`
}

type visualizationOptions struct {
	Ranges []valueRange `json:"ranges"`
}

type valueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}
