package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"marketgen/internal/infra"
)

// Options controls how the generation client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a facade over the Gemini generateContent API. When no API key is
// configured it produces deterministic synthetic output so the worker stays
// fully operational in local and CI environments.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// TextRequest asks for a single text completion. Callers bound the call with
// a context deadline.
type TextRequest struct {
	Prompt    string
	Context   string
	RequestID string
}

// ImageRequest asks for a batch of generated images.
type ImageRequest struct {
	Prompt      string
	Quantity    int
	AspectRatio string
	RequestID   string
}

// VideoRequest asks for a short rendered video.
type VideoRequest struct {
	Prompt          string
	DurationSeconds int
	RequestID       string
}

// ImageAsset is the normalized representation of one generated image.
type ImageAsset struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// VideoAsset is the normalized representation of a generated video.
type VideoAsset struct {
	Data   []byte
	Format string
	Length int
}

// NewClient constructs a generation client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateText produces one completion for the prompt.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if req.Prompt == "" {
		return "", fmt.Errorf("genai: prompt is required")
	}
	if c.apiKey == "" {
		return c.syntheticText(req), nil
	}

	prompt := req.Prompt
	if req.Context != "" {
		prompt = req.Context + "\n\n" + prompt
	}
	resp, err := c.generateContent(ctx, generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", fmt.Errorf("genai: response carried no text")
}

// GenerateImages produces req.Quantity images.
func (c *Client) GenerateImages(ctx context.Context, req ImageRequest) ([]ImageAsset, error) {
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	if c.apiKey == "" {
		return c.syntheticImages(req)
	}

	resp, err := c.generateContent(ctx, generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	})
	if err != nil {
		return nil, err
	}
	var assets []ImageAsset
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				continue
			}
			w, h := dimensionsFor(req.AspectRatio)
			assets = append(assets, ImageAsset{Data: data, Format: p.InlineData.MimeType, Width: w, Height: h})
			if len(assets) == req.Quantity {
				return assets, nil
			}
		}
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("genai: response carried no images")
	}
	return assets, nil
}

// GenerateVideo produces one short video render.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoAsset, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("genai: prompt is required")
	}
	if c.apiKey == "" {
		return c.syntheticVideo(req), nil
	}

	resp, err := c.generateContent(ctx, generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	})
	if err != nil {
		return nil, err
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				continue
			}
			return &VideoAsset{Data: data, Format: p.InlineData.MimeType, Length: req.DurationSeconds}, nil
		}
	}
	return nil, fmt.Errorf("genai: response carried no video")
}

func (c *Client) generateContent(ctx context.Context, payload generateContentRequest) (*generateContentResponse, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("genai: encode request: %w", err)
	}

	var parsed generateContentResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200)))
		}
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("genai: %w", err)
	}
	return &parsed, nil
}

func (c *Client) syntheticText(req TextRequest) string {
	sum := sha256.Sum256([]byte(req.Prompt + "|" + req.Context))
	return fmt.Sprintf(
		"Synthetic analysis %x: positions on quality and price, active on two social channels, strongest appeal to value-driven shoppers.",
		sum[:4])
}

func (c *Client) syntheticImages(req ImageRequest) ([]ImageAsset, error) {
	w, h := dimensionsFor(req.AspectRatio)
	assets := make([]ImageAsset, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		data, err := renderPlaceholder(req.Prompt, i, w, h)
		if err != nil {
			return nil, err
		}
		assets = append(assets, ImageAsset{Data: data, Format: "image/png", Width: w, Height: h})
	}
	return assets, nil
}

func (c *Client) syntheticVideo(req VideoRequest) *VideoAsset {
	sum := sha256.Sum256([]byte(req.Prompt))
	return &VideoAsset{Data: sum[:], Format: "video/mp4", Length: req.DurationSeconds}
}

// renderPlaceholder draws a small solid PNG whose color is derived from the
// prompt, keeping synthetic output deterministic.
func renderPlaceholder(prompt string, index, w, h int) ([]byte, error) {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", prompt, index)))
	img := image.NewRGBA(image.Rect(0, 0, w/8, h/8))
	fill := color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("genai: encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func dimensionsFor(aspect string) (int, int) {
	switch aspect {
	case "16:9":
		return 1280, 720
	case "9:16":
		return 720, 1280
	case "4:3":
		return 1024, 768
	default:
		return 1024, 1024
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
