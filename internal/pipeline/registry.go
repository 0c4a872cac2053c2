package pipeline

import (
	"context"
	"fmt"
	"time"

	"marketgen/internal/domain"
	"marketgen/internal/providers/adintel"
	"marketgen/internal/providers/genai"
	"marketgen/internal/providers/scrape"
	"marketgen/internal/providers/vision"
)

// TextGenerator produces a completion for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, req genai.TextRequest) (string, error)
}

// ImageGenerator produces a batch of images.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, req genai.ImageRequest) ([]genai.ImageAsset, error)
}

// VideoGenerator produces one rendered video.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req genai.VideoRequest) (*genai.VideoAsset, error)
}

// ObjectStore is the asset upload boundary.
type ObjectStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	URL(key string) string
}

// Collaborators bundles the external boundaries pipeline definitions call.
// Build is the production pipeline.Builder.
type Collaborators struct {
	Discoverer scrape.Discoverer
	Scraper    scrape.Scraper
	Text       TextGenerator
	Images     ImageGenerator
	Video      VideoGenerator
	Vision     vision.Isolator
	AdIntel    adintel.Provider
	Store      ObjectStore
	Artifacts  domain.ArtifactStore

	// FanOutLimit bounds concurrent per-item calls inside a single step so
	// fan-outs do not overwhelm external rate limits.
	FanOutLimit int
	// ItemTimeout bounds each fan-out item; a timed-out item counts as a
	// failed one.
	ItemTimeout time.Duration
}

// Build resolves the pipeline definition for a job, re-validating the
// payload it was created with.
func (c Collaborators) Build(job *domain.Job) (*Pipeline, error) {
	payload, err := domain.ParsePayload(job.Type, job.Payload)
	if err != nil {
		return nil, err
	}
	switch p := payload.(type) {
	case domain.AnalyzeCompetitorsPayload:
		return c.analyzeCompetitors(job, p), nil
	case domain.GeneratePersonasPayload:
		return c.generatePersonas(job, p), nil
	case domain.GenerateAudienceImagesPayload:
		return c.generateAudienceImages(job, p), nil
	case domain.GenerateAdsPayload:
		return c.generateAds(job, p), nil
	case domain.GenerateUGCVideoPayload:
		return c.generateUGCVideo(job, p), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedJobType, job.Type)
	}
}

func (c Collaborators) fanOutLimit() int {
	if c.FanOutLimit <= 0 {
		return 4
	}
	return c.FanOutLimit
}

func (c Collaborators) itemTimeout() time.Duration {
	if c.ItemTimeout <= 0 {
		return 60 * time.Second
	}
	return c.ItemTimeout
}
