package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"marketgen/internal/domain"
	"marketgen/internal/providers/genai"
	"marketgen/internal/providers/vision"
)

// stubImages fails generations whose prompt contains failSubstr.
type stubImages struct {
	failSubstr string
}

func (s stubImages) GenerateImages(ctx context.Context, req genai.ImageRequest) ([]genai.ImageAsset, error) {
	if s.failSubstr != "" && strings.Contains(req.Prompt, s.failSubstr) {
		return nil, fmt.Errorf("render backend unavailable")
	}
	return []genai.ImageAsset{{Data: []byte("img:" + req.Prompt), Format: "image/png", Width: 1024, Height: 1024}}, nil
}

// stubIsolator fails cutouts whose source data contains failSubstr.
type stubIsolator struct {
	failSubstr string
}

func (s stubIsolator) Isolate(ctx context.Context, data []byte) (*vision.IsolatedImage, error) {
	if s.failSubstr != "" && strings.Contains(string(data), s.failSubstr) {
		return nil, fmt.Errorf("isolation service overloaded")
	}
	return &vision.IsolatedImage{Data: append([]byte("cutout:"), data...), Format: "image/png"}, nil
}

// memStore keeps uploads in memory keyed by storage key.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *memStore) URL(key string) string { return "/static/" + key }

func (s *memStore) get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

func audienceImagesJob(t *testing.T, p domain.GenerateAudienceImagesPayload) *domain.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	job := pendingJob("job-img", domain.JobTypeGenerateAudienceImages)
	job.Payload = raw
	return job
}

func TestAudienceImagesPipelineKeepsOriginalWhenIsolationFails(t *testing.T) {
	job := audienceImagesJob(t, domain.GenerateAudienceImagesPayload{
		AudienceName:    "students",
		ProductImageURL: "https://shop.example.com/soap.png",
		Prompt:          "Handmade soap on a wooden table",
		Quantity:        3,
	})
	jobs := newMemJobs(job)
	store := &memStore{}
	c := Collaborators{
		Images:    stubImages{},
		Vision:    stubIsolator{failSubstr: "variation 2"},
		Store:     store,
		Artifacts: &memArtifacts{},
	}

	if err := testExecutor(jobs, c.Build, 0).Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", job.Status, job.Error)
	}

	var result domain.ImageBatchResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Assets) != 3 {
		t.Fatalf("assets = %d, want all 3 variants kept", len(result.Assets))
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Step != "isolate_product" {
		t.Fatalf("warnings = %v, want one isolate_product warning", result.Warnings)
	}

	// Isolated variants carry the cutout; the failed one keeps its original.
	for i, wantCutout := range []bool{true, false, true} {
		data := store.get(fmt.Sprintf("generated/images/%s/image-%02d.png", job.ID, i+1))
		if data == nil {
			t.Fatalf("variant %d never uploaded", i+1)
		}
		if got := strings.HasPrefix(string(data), "cutout:"); got != wantCutout {
			t.Errorf("variant %d isolated = %v, want %v", i+1, got, wantCutout)
		}
	}
}

func TestAudienceImagesPipelineSkipsIsolationWithoutProductImage(t *testing.T) {
	job := audienceImagesJob(t, domain.GenerateAudienceImagesPayload{
		AudienceName: "students",
		Prompt:       "Handmade soap on a wooden table",
		Quantity:     2,
	})
	jobs := newMemJobs(job)
	store := &memStore{}
	c := Collaborators{
		Images:    stubImages{},
		Vision:    stubIsolator{failSubstr: "variation"},
		Store:     store,
		Artifacts: &memArtifacts{},
	}

	if err := testExecutor(jobs, c.Build, 0).Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s (error %q)", job.Status, job.Error)
	}

	var result domain.ImageBatchResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Assets) != 2 || len(result.Warnings) != 0 {
		t.Fatalf("assets = %d warnings = %v, isolation must not run", len(result.Assets), result.Warnings)
	}
}
