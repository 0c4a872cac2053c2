package adintel

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketgen/internal/domain"
	"marketgen/internal/infra"
)

// Provider looks up ad-library intelligence for a competitor site.
type Provider interface {
	Lookup(ctx context.Context, site string) (*domain.AdIntelligence, error)
}

// Options configures the ad intelligence client.
type Options struct {
	// BaseURL points at the ad-library gateway. When empty the client
	// returns deterministic synthetic intel.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client implements Provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs an ad intelligence client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
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

// Lookup fetches active-ad counts and creative themes for a site.
func (c *Client) Lookup(ctx context.Context, site string) (*domain.AdIntelligence, error) {
	if site == "" {
		return nil, fmt.Errorf("adintel: site is required")
	}
	if c.baseURL == "" {
		return syntheticIntel(site), nil
	}

	endpoint := fmt.Sprintf("%s/ads?site=%s", c.baseURL, url.QueryEscape(site))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("adintel: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adintel: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("adintel: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adintel: status %d", resp.StatusCode)
	}
	var intel domain.AdIntelligence
	if err := json.Unmarshal(body, &intel); err != nil {
		return nil, fmt.Errorf("adintel: decode response: %w", err)
	}
	return &intel, nil
}

func syntheticIntel(site string) *domain.AdIntelligence {
	sum := sha256.Sum256([]byte(site))
	themes := []string{"discount", "lifestyle", "testimonial", "seasonal"}
	return &domain.AdIntelligence{
		ActiveAds: int(sum[0]) % 20,
		Themes:    themes[:1+int(sum[1])%3],
	}
}

var _ Provider = (*Client)(nil)
