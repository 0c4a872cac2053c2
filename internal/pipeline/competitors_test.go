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
	"marketgen/internal/providers/scrape"
)

type stubDiscoverer struct {
	urls []string
	err  error
}

func (d stubDiscoverer) Discover(ctx context.Context, query, market string, limit int) ([]string, error) {
	return d.urls, d.err
}

// stubScraper fails for URLs in the down set.
type stubScraper struct {
	down map[string]bool
}

func (s stubScraper) Scrape(ctx context.Context, pageURL string) (*scrape.PageContent, error) {
	if s.down[pageURL] {
		return nil, fmt.Errorf("fetch %s: status 503", pageURL)
	}
	return &scrape.PageContent{URL: pageURL, Title: pageURL + " shop", Text: "catalog and promotions"}, nil
}

type stubText struct{}

func (stubText) GenerateText(ctx context.Context, req genai.TextRequest) (string, error) {
	return "summary: " + req.Context, nil
}

type stubAdIntel struct{}

func (stubAdIntel) Lookup(ctx context.Context, site string) (*domain.AdIntelligence, error) {
	return &domain.AdIntelligence{ActiveAds: 7, Themes: []string{"discount"}}, nil
}

// memArtifacts records saved artifact batches.
type memArtifacts struct {
	mu    sync.Mutex
	kinds []string
	count int
}

func (a *memArtifacts) SaveArtifacts(ctx context.Context, jobID, projectID, kind string, payloads []json.RawMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kinds = append(a.kinds, kind)
	a.count += len(payloads)
	return nil
}

func competitorJob(t *testing.T, p domain.AnalyzeCompetitorsPayload) *domain.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	job := pendingJob("job-comp", domain.JobTypeAnalyzeCompetitors)
	job.Payload = raw
	return job
}

func TestCompetitorPipelinePartialSuccess(t *testing.T) {
	candidates := []string{
		"https://a.example.com",
		"https://b.example.com",
		"https://c.example.com",
		"https://d.example.com",
		"https://e.example.com",
	}
	job := competitorJob(t, domain.AnalyzeCompetitorsPayload{
		ProductName: "Handmade Soap",
		Candidates:  candidates,
		MaxResults:  5,
	})
	jobs := newMemJobs(job)
	artifacts := &memArtifacts{}
	c := Collaborators{
		Scraper:   stubScraper{down: map[string]bool{candidates[1]: true, candidates[3]: true}},
		Text:      stubText{},
		AdIntel:   stubAdIntel{},
		Artifacts: artifacts,
	}

	if err := testExecutor(jobs, c.Build, 0).Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", job.Status, job.Error)
	}

	var result domain.CompetitorAnalysisResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.AnalyzedCount != 3 {
		t.Errorf("analyzed_count = %d, want 3", result.AnalyzedCount)
	}
	if len(result.Warnings) != 2 {
		t.Errorf("warnings = %v, want one per failed candidate", result.Warnings)
	}
	for _, w := range result.Warnings {
		if w.Step != "scrape_candidates" {
			t.Errorf("warning step = %q", w.Step)
		}
	}
	if artifacts.count != 3 || len(artifacts.kinds) != 1 || artifacts.kinds[0] != "competitor_insight" {
		t.Errorf("artifacts = %d of %v", artifacts.count, artifacts.kinds)
	}
}

func TestCompetitorPipelineAllCandidatesFail(t *testing.T) {
	candidates := []string{"https://a.example.com", "https://b.example.com"}
	job := competitorJob(t, domain.AnalyzeCompetitorsPayload{
		ProductName: "Handmade Soap",
		Candidates:  candidates,
	})
	jobs := newMemJobs(job)
	c := Collaborators{
		Scraper:   stubScraper{down: map[string]bool{candidates[0]: true, candidates[1]: true}},
		Text:      stubText{},
		AdIntel:   stubAdIntel{},
		Artifacts: &memArtifacts{},
	}

	if err := testExecutor(jobs, c.Build, 0).Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "no competitors analyzed") {
		t.Errorf("error = %q", job.Error)
	}
	// Per-candidate failures must survive into the terminal error.
	if !strings.Contains(job.Error, candidates[0]) {
		t.Errorf("error %q missing failed candidate detail", job.Error)
	}
}

func TestCompetitorPipelineNoCandidatesDiscovered(t *testing.T) {
	job := competitorJob(t, domain.AnalyzeCompetitorsPayload{ProductName: "Handmade Soap"})
	jobs := newMemJobs(job)
	c := Collaborators{
		Discoverer: stubDiscoverer{},
		Scraper:    stubScraper{},
		Text:       stubText{},
		AdIntel:    stubAdIntel{},
		Artifacts:  &memArtifacts{},
	}

	if err := testExecutor(jobs, c.Build, 0).Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "discover_candidates") || !strings.Contains(job.Error, "no candidates") {
		t.Errorf("error = %q", job.Error)
	}
}

func TestCompetitorPipelineCapsCandidates(t *testing.T) {
	candidates := make([]string, 8)
	for i := range candidates {
		candidates[i] = fmt.Sprintf("https://shop-%d.example.com", i+1)
	}
	job := competitorJob(t, domain.AnalyzeCompetitorsPayload{
		ProductName: "Handmade Soap",
		Candidates:  candidates,
		MaxResults:  3,
	})
	jobs := newMemJobs(job)
	artifacts := &memArtifacts{}
	c := Collaborators{
		Scraper:   stubScraper{},
		Text:      stubText{},
		AdIntel:   stubAdIntel{},
		Artifacts: artifacts,
	}

	if err := testExecutor(jobs, c.Build, 0).Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var result domain.CompetitorAnalysisResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.AnalyzedCount != 3 {
		t.Errorf("analyzed_count = %d, want cap of 3", result.AnalyzedCount)
	}
}
