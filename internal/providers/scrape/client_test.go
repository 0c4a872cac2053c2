package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestScrapeParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://rival.example.com" {
			t.Errorf("url param = %q", got)
		}
		_ = json.NewEncoder(w).Encode(scrapeResponse{Title: "Rival Shop", Text: "they sell soap"})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	page, err := c.Scrape(context.Background(), "https://rival.example.com")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if page.Title != "Rival Shop" || page.Text != "they sell soap" {
		t.Fatalf("page = %+v", page)
	}
	if page.FetchedAt.IsZero() {
		t.Error("FetchedAt not stamped")
	}
}

func TestScrapeRejectsEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(scrapeResponse{Title: "Empty"})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if _, err := c.Scrape(context.Background(), "https://rival.example.com"); err == nil {
		t.Fatal("expected error for empty page content")
	}
}

func TestScrapeRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(scrapeResponse{Title: "Back", Text: "recovered"})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	page, err := c.Scrape(context.Background(), "https://rival.example.com")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if page.Text != "recovered" {
		t.Fatalf("page = %+v", page)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want retry after 502", n)
	}
}

func TestScrapeDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if _, err := c.Scrape(context.Background(), "https://rival.example.com"); err == nil {
		t.Fatal("expected error for 404")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want no retry on 404", n)
	}
}

func TestDiscoverParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "handmade soap" {
			t.Errorf("q param = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"url": "https://a.example.com"},
				{"url": ""},
				{"url": "https://b.example.com"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	urls, err := c.Discover(context.Background(), "handmade soap", "id", 5)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://a.example.com" || urls[1] != "https://b.example.com" {
		t.Fatalf("urls = %v", urls)
	}
}

func TestSyntheticModeWithoutBaseURL(t *testing.T) {
	c := NewClient(Options{})
	page, err := c.Scrape(context.Background(), "https://rival.example.com")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if page.Text == "" || page.Title == "" {
		t.Fatalf("synthetic page = %+v", page)
	}

	urls, err := c.Discover(context.Background(), "handmade soap", "id", 3)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("urls = %v", urls)
	}
	again, _ := c.Discover(context.Background(), "handmade soap", "id", 3)
	for i := range urls {
		if urls[i] != again[i] {
			t.Fatal("synthetic candidates must be deterministic")
		}
	}
}
