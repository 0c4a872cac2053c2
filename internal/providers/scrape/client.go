package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"marketgen/internal/infra"
)

// PageContent is the normalized output of a scrape.
type PageContent struct {
	URL       string
	Title     string
	Text      string
	FetchedAt time.Time
}

// Scraper fetches page content for a URL.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (*PageContent, error)
}

// Discoverer finds candidate competitor sites for a product/market query.
type Discoverer interface {
	Discover(ctx context.Context, query, market string, limit int) ([]string, error)
}

// Options configures the scraping client.
type Options struct {
	// BaseURL points at the scraping proxy service. When empty the client
	// serves deterministic synthetic content so the worker stays fully
	// operational in local and CI environments.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client implements Scraper and Discoverer against the scraping service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a scraping client.
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

type scrapeResponse struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type discoverResponse struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

// Scrape fetches one page through the scraping service, retrying transient
// failures with exponential backoff. The caller bounds the total time via ctx.
func (c *Client) Scrape(ctx context.Context, pageURL string) (*PageContent, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("scrape: url is required")
	}
	if c.baseURL == "" {
		return c.syntheticPage(pageURL), nil
	}

	endpoint := fmt.Sprintf("%s/scrape?url=%s", c.baseURL, url.QueryEscape(pageURL))
	var parsed scrapeResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", pageURL, err)
	}
	if parsed.Text == "" {
		return nil, fmt.Errorf("scrape %s: empty page content", pageURL)
	}
	return &PageContent{
		URL:       pageURL,
		Title:     parsed.Title,
		Text:      parsed.Text,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Discover searches for competitor candidates.
func (c *Client) Discover(ctx context.Context, query, market string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	if c.baseURL == "" {
		return syntheticCandidates(query, market, limit), nil
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&market=%s&limit=%d",
		c.baseURL, url.QueryEscape(query), url.QueryEscape(market), limit)
	var parsed discoverResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, fmt.Errorf("discover %q: %w", query, err)
	}
	urls := make([]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.Retry(op, policy)
}

func (c *Client) syntheticPage(pageURL string) *PageContent {
	sum := sha256.Sum256([]byte(pageURL))
	seed := hex.EncodeToString(sum[:4])
	host := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &PageContent{
		URL:   pageURL,
		Title: fmt.Sprintf("%s storefront", host),
		Text: fmt.Sprintf(
			"%s sells handcrafted products with seasonal promotions. Catalog ref %s. Free shipping over a threshold, loyalty program, and social campaigns.",
			host, seed),
		FetchedAt: time.Now().UTC(),
	}
}

func syntheticCandidates(query, market string, limit int) []string {
	sum := sha256.Sum256([]byte(query + "|" + market))
	urls := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		urls = append(urls, fmt.Sprintf("https://shop-%s-%d.example.com", hex.EncodeToString(sum[i:i+2]), i+1))
	}
	return urls
}

var (
	_ Scraper    = (*Client)(nil)
	_ Discoverer = (*Client)(nil)
)
