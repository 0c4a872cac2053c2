package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"marketgen/internal/domain"
	"marketgen/internal/providers/genai"
)

const keyPersonas = "personas"

func (c Collaborators) generatePersonas(job *domain.Job, p domain.GeneratePersonasPayload) *Pipeline {
	steps := []Step{
		{
			Name:  "draft_personas",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				prompt := fmt.Sprintf(
					"Create %d buyer personas for %q as a JSON array of objects with name, age_range, description and pain_points fields.",
					p.Count, p.ProductName)
				text, err := c.Text.GenerateText(ctx, genai.TextRequest{
					Prompt:    prompt,
					Context:   p.ProductDescription,
					RequestID: job.ID,
				})
				if err != nil {
					return fmt.Errorf("persona draft: %w", err)
				}
				personas := parsePersonas(text, p.Count)
				if len(personas) == 0 {
					return fmt.Errorf("persona draft produced no personas")
				}
				pc.Put(keyPersonas, personas)
				return nil
			},
		},
		{
			Name: "enrich_demographics",
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyPersonas)
				personas, _ := v.([]domain.Persona)
				enriched, failures := ForEach(ctx, personas, c.fanOutLimit(), c.itemTimeout(),
					func(pe domain.Persona) string { return pe.Name },
					func(ctx context.Context, pe domain.Persona) (domain.Persona, error) {
						demo, err := c.Text.GenerateText(ctx, genai.TextRequest{
							Prompt:    fmt.Sprintf("One-line demographic profile for the persona %q.", pe.Name),
							Context:   pe.Description,
							RequestID: job.ID,
						})
						if err != nil {
							return pe, err
						}
						pe.Demographics = strings.TrimSpace(demo)
						return pe, nil
					})
				for _, f := range failures {
					pc.Warn("enrich_demographics", f.Item, f.Err.Error())
				}
				// Keep the un-enriched drafts when enrichment fails wholesale.
				if len(enriched) > 0 {
					merged := make([]domain.Persona, 0, len(personas))
					byName := make(map[string]domain.Persona, len(enriched))
					for _, pe := range enriched {
						byName[pe.Name] = pe
					}
					for _, pe := range personas {
						if e, ok := byName[pe.Name]; ok {
							merged = append(merged, e)
						} else {
							merged = append(merged, pe)
						}
					}
					pc.Put(keyPersonas, merged)
				}
				return nil
			},
		},
		{
			Name:  "persist_personas",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyPersonas)
				personas, _ := v.([]domain.Persona)
				payloads := make([]json.RawMessage, 0, len(personas))
				for _, pe := range personas {
					b, err := json.Marshal(pe)
					if err != nil {
						return fmt.Errorf("encode persona: %w", err)
					}
					payloads = append(payloads, b)
				}
				return c.Artifacts.SaveArtifacts(ctx, job.ID, job.ProjectID, "persona", payloads)
			},
		},
	}

	return &Pipeline{
		Steps: steps,
		Result: func(pc *Context) ([]byte, error) {
			v, _ := pc.Get(keyPersonas)
			personas, _ := v.([]domain.Persona)
			if len(personas) == 0 {
				return nil, fmt.Errorf("%w: no personas generated", domain.ErrNoUsableOutput)
			}
			return json.Marshal(domain.PersonaResult{
				Personas: personas,
				Warnings: pc.Warnings(),
			})
		},
	}
}

// parsePersonas accepts either the requested JSON array or free text. Free
// text becomes a single persona so a sloppy model response still yields
// usable output.
func parsePersonas(text string, want int) []domain.Persona {
	trimmed := strings.TrimSpace(text)
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			var personas []domain.Persona
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &personas); err == nil {
				valid := personas[:0]
				for _, p := range personas {
					if p.Name != "" || p.Description != "" {
						valid = append(valid, p)
					}
				}
				if len(valid) > want && want > 0 {
					valid = valid[:want]
				}
				if len(valid) > 0 {
					return valid
				}
			}
		}
	}
	if trimmed == "" {
		return nil
	}
	return []domain.Persona{{Name: "Primary buyer", Description: trimmed}}
}
