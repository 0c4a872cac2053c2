package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestGenerateTextSyntheticWithoutAPIKey(t *testing.T) {
	c := NewClient(Options{})
	first, err := c.GenerateText(context.Background(), TextRequest{Prompt: "analyze this shop"})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if first == "" {
		t.Fatal("empty synthetic completion")
	}
	second, err := c.GenerateText(context.Background(), TextRequest{Prompt: "analyze this shop"})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if first != second {
		t.Error("synthetic output must be deterministic for the same prompt")
	}
}

func TestGenerateImagesSynthetic(t *testing.T) {
	c := NewClient(Options{})
	assets, err := c.GenerateImages(context.Background(), ImageRequest{Prompt: "soap ad", Quantity: 3, AspectRatio: "16:9"})
	if err != nil {
		t.Fatalf("GenerateImages: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("len(assets) = %d, want 3", len(assets))
	}
	for _, a := range assets {
		if a.Format != "image/png" {
			t.Errorf("format = %q", a.Format)
		}
		if a.Width != 1280 || a.Height != 720 {
			t.Errorf("dimensions = %dx%d, want 1280x720", a.Width, a.Height)
		}
		if !bytes.HasPrefix(a.Data, []byte("\x89PNG")) {
			t.Error("placeholder is not a PNG")
		}
	}
}

func TestGenerateTextParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 {
			t.Errorf("unexpected request shape: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(generateContentResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{
				{Content: content{Parts: []part{{Text: "a concise summary"}}}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	got, err := c.GenerateText(context.Background(), TextRequest{Prompt: "summarize", Context: "page text"})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "a concise summary" {
		t.Fatalf("text = %q", got)
	}
}

func TestGenerateContentRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(generateContentResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{
				{Content: content{Parts: []part{{Text: "recovered"}}}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	got, err := c.GenerateText(context.Background(), TextRequest{Prompt: "summarize"})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "recovered" {
		t.Fatalf("text = %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want retry after 500", n)
	}
}

func TestGenerateContentDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if _, err := c.GenerateText(context.Background(), TextRequest{Prompt: "summarize"}); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want no retry on 400", n)
	}
}

func TestGenerateImagesDecodesInlineData(t *testing.T) {
	payload := []byte("fake-png-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateContentResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{
				{Content: content{Parts: []part{
					{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(payload)}},
				}}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	assets, err := c.GenerateImages(context.Background(), ImageRequest{Prompt: "soap", Quantity: 1})
	if err != nil {
		t.Fatalf("GenerateImages: %v", err)
	}
	if len(assets) != 1 || !bytes.Equal(assets[0].Data, payload) {
		t.Fatalf("assets = %+v", assets)
	}
}
