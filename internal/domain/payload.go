package domain

import (
	"encoding/json"
	"fmt"
)

// Payloads are tagged variants keyed by JobType. They are validated once at
// creation time; workers can therefore unmarshal without re-checking.

// AnalyzeCompetitorsPayload drives the competitor discovery/analysis
// pipeline. Candidates may seed the discovery step directly; when empty the
// pipeline discovers candidates from the product description.
type AnalyzeCompetitorsPayload struct {
	ProductName string   `json:"product_name"`
	Market      string   `json:"market,omitempty"`
	Candidates  []string `json:"candidates,omitempty"`
	MaxResults  int      `json:"max_results,omitempty"`
}

// GeneratePersonasPayload drives buyer-persona generation.
type GeneratePersonasPayload struct {
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	Count              int    `json:"count,omitempty"`
}

// GenerateAudienceImagesPayload drives audience-targeted image generation.
type GenerateAudienceImagesPayload struct {
	AudienceName    string `json:"audience_name"`
	ProductImageURL string `json:"product_image_url,omitempty"`
	Prompt          string `json:"prompt"`
	Quantity        int    `json:"quantity,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
}

// GenerateAdsPayload drives ad copy/creative generation.
type GenerateAdsPayload struct {
	AudienceName string `json:"audience_name"`
	Persona      string `json:"persona,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Variants     int    `json:"variants,omitempty"`
}

// GenerateUGCVideoPayload drives user-generated-content style video renders.
type GenerateUGCVideoPayload struct {
	ProductName     string `json:"product_name"`
	Script          string `json:"script,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

const (
	DefaultPersonaCount   = 3
	DefaultImageQuantity  = 4
	DefaultAdVariants     = 3
	DefaultVideoSeconds   = 15
	MaxImageQuantity      = 10
	MaxCompetitorResults  = 10
	DefaultCompetitorsCap = 5
)

// ParsePayload decodes and validates a raw payload for the given job type.
// Validation failures wrap ErrValidation so handlers can map them to 400s.
func ParsePayload(typ JobType, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: payload is required", ErrValidation)
	}
	switch typ {
	case JobTypeAnalyzeCompetitors:
		var p AnalyzeCompetitorsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if p.ProductName == "" && len(p.Candidates) == 0 {
			return nil, fmt.Errorf("%w: product_name or candidates required", ErrValidation)
		}
		if p.MaxResults < 0 || p.MaxResults > MaxCompetitorResults {
			return nil, fmt.Errorf("%w: max_results out of range", ErrValidation)
		}
		if p.MaxResults == 0 {
			p.MaxResults = DefaultCompetitorsCap
		}
		return p, nil
	case JobTypeGeneratePersonas:
		var p GeneratePersonasPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if p.ProductName == "" {
			return nil, fmt.Errorf("%w: product_name required", ErrValidation)
		}
		if p.Count < 0 {
			return nil, fmt.Errorf("%w: count must be positive", ErrValidation)
		}
		if p.Count == 0 {
			p.Count = DefaultPersonaCount
		}
		return p, nil
	case JobTypeGenerateAudienceImages:
		var p GenerateAudienceImagesPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if p.Prompt == "" {
			return nil, fmt.Errorf("%w: prompt required", ErrValidation)
		}
		if p.Quantity < 0 || p.Quantity > MaxImageQuantity {
			return nil, fmt.Errorf("%w: quantity out of range", ErrValidation)
		}
		if p.Quantity == 0 {
			p.Quantity = DefaultImageQuantity
		}
		if p.AspectRatio == "" {
			p.AspectRatio = "1:1"
		}
		return p, nil
	case JobTypeGenerateAds:
		var p GenerateAdsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if p.AudienceName == "" {
			return nil, fmt.Errorf("%w: audience_name required", ErrValidation)
		}
		if p.Variants < 0 {
			return nil, fmt.Errorf("%w: variants must be positive", ErrValidation)
		}
		if p.Variants == 0 {
			p.Variants = DefaultAdVariants
		}
		return p, nil
	case JobTypeGenerateUGCVideo:
		var p GenerateUGCVideoPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if p.ProductName == "" {
			return nil, fmt.Errorf("%w: product_name required", ErrValidation)
		}
		if p.DurationSeconds < 0 || p.DurationSeconds > 60 {
			return nil, fmt.Errorf("%w: duration_seconds out of range", ErrValidation)
		}
		if p.DurationSeconds == 0 {
			p.DurationSeconds = DefaultVideoSeconds
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedJobType, typ)
	}
}
