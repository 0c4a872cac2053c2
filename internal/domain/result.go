package domain

// Warning records a tolerated per-step or per-item failure. Warnings ride
// along in the result on success, or are concatenated into the job error
// when a pipeline finishes with nothing usable.
type Warning struct {
	Step    string `json:"step"`
	Item    string `json:"item,omitempty"`
	Message string `json:"message"`
}

// AssetRef points at a generated asset in object storage.
type AssetRef struct {
	StorageKey string `json:"storage_key"`
	URL        string `json:"url,omitempty"`
	Format     string `json:"format,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// CompetitorInsight is one analyzed competitor.
type CompetitorInsight struct {
	URL         string          `json:"url"`
	Name        string          `json:"name,omitempty"`
	Summary     string          `json:"summary"`
	Positioning string          `json:"positioning,omitempty"`
	AdIntel     *AdIntelligence `json:"ad_intel,omitempty"`
}

// AdIntelligence is best-effort enrichment from ad-library lookups.
type AdIntelligence struct {
	ActiveAds int      `json:"active_ads"`
	Themes    []string `json:"themes,omitempty"`
}

// CompetitorAnalysisResult is the terminal output of analyze_competitors.
type CompetitorAnalysisResult struct {
	AnalyzedCount int                 `json:"analyzed_count"`
	Competitors   []CompetitorInsight `json:"competitors"`
	Warnings      []Warning           `json:"warnings,omitempty"`
}

// Persona is one generated buyer persona.
type Persona struct {
	Name         string   `json:"name"`
	AgeRange     string   `json:"age_range,omitempty"`
	Description  string   `json:"description"`
	PainPoints   []string `json:"pain_points,omitempty"`
	Demographics string   `json:"demographics,omitempty"`
}

// PersonaResult is the terminal output of generate_personas.
type PersonaResult struct {
	Personas []Persona `json:"personas"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ImageBatchResult is the terminal output of generate_audience_images.
type ImageBatchResult struct {
	Assets   []AssetRef `json:"assets"`
	Warnings []Warning  `json:"warnings,omitempty"`
}

// AdCreative is one generated ad variant.
type AdCreative struct {
	Headline string    `json:"headline"`
	Body     string    `json:"body"`
	Platform string    `json:"platform,omitempty"`
	Asset    *AssetRef `json:"asset,omitempty"`
}

// AdBatchResult is the terminal output of generate_ads.
type AdBatchResult struct {
	Ads      []AdCreative `json:"ads"`
	Warnings []Warning    `json:"warnings,omitempty"`
}

// UGCVideoResult is the terminal output of generate_ugc_video.
type UGCVideoResult struct {
	Asset           AssetRef  `json:"asset"`
	Script          string    `json:"script,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	Warnings        []Warning `json:"warnings,omitempty"`
}
