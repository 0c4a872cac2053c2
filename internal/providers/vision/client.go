package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketgen/internal/infra"
)

// IsolatedImage is a product cutout with its background removed.
type IsolatedImage struct {
	Data   []byte
	Format string
}

// Isolator extracts the product subject from a generated image.
type Isolator interface {
	Isolate(ctx context.Context, imageData []byte) (*IsolatedImage, error)
}

// Options configures the vision client.
type Options struct {
	// BaseURL points at the isolation service. When empty the client
	// passes images through unchanged.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client implements Isolator over the vision service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a vision client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type isolateResponse struct {
	Image  string `json:"image"`
	Format string `json:"format"`
}

// Isolate sends the image to the isolation endpoint. Pass-through when the
// service is not configured; isolation is an enhancement, not a requirement.
func (c *Client) Isolate(ctx context.Context, imageData []byte) (*IsolatedImage, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("vision: image data is required")
	}
	if c.baseURL == "" {
		return &IsolatedImage{Data: imageData, Format: "image/png"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/isolate", bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("vision: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision: status %d", resp.StatusCode)
	}
	var parsed isolateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("vision: decode response: %w", err)
	}
	// The image field carries the cutout as base64; raw bytes cannot ride in
	// a JSON string.
	data, err := base64.StdEncoding.DecodeString(parsed.Image)
	if err != nil {
		return nil, fmt.Errorf("vision: decode image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("vision: response carried no image")
	}
	format := parsed.Format
	if format == "" {
		format = "image/png"
	}
	return &IsolatedImage{Data: data, Format: format}, nil
}

var _ Isolator = (*Client)(nil)
