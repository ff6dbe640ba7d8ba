// Package llm holds the model-facing core of the journal: the schema
// contracts each agent expects the model to satisfy, the prompt builders
// that render those contracts into instructions, and the client that
// issues schema-constrained chat-completion requests.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hyperengineering/daybook/internal/types"
)

// Schema pairs a named JSON Schema definition with the decode function
// that validates model output against it. The definition is inlined both
// into the prompt and into the request's response_format, so the model
// sees exactly the shape the decoder will enforce.
type Schema struct {
	Name       string
	Definition map[string]any
}

// JSON returns the schema definition as a compact JSON string for
// inlining into prompts.
func (s Schema) JSON() string {
	data, err := json.Marshal(s.Definition)
	if err != nil {
		// Definitions are static literals; a marshal failure is a bug.
		panic(fmt.Sprintf("marshal schema %s: %v", s.Name, err))
	}
	return string(data)
}

// ValidationError reports model output that parsed as JSON but does not
// satisfy the schema contract. Content failing validation is never
// partially trusted.
type ValidationError struct {
	Schema string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.Schema, e.Reason)
}

func invalid(schema, format string, args ...any) *ValidationError {
	return &ValidationError{Schema: schema, Reason: fmt.Sprintf(format, args...)}
}

// SearchTermsSchema constrains the query planner: 3-7 non-empty keywords.
var SearchTermsSchema = Schema{
	Name: "search_terms",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keywords": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string", "minLength": 1},
				"minItems": 3,
				"maxItems": 7,
			},
		},
		"required":             []string{"keywords"},
		"additionalProperties": false,
	},
}

// RerankSchema constrains the reranker: an ordered, possibly empty list
// of activity ids.
var RerankSchema = Schema{
	Name: "rerank_result",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ranked_ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []string{"ranked_ids"},
		"additionalProperties": false,
	},
}

// ImportSchema constrains extraction+classification output for one day.
var ImportSchema = Schema{
	Name: "extracted_activities",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"activities": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"description": map[string]any{"type": "string", "minLength": 1},
						"duration":    map[string]any{"type": []any{"number", "null"}},
						"notes":       map[string]any{"type": []any{"string", "null"}},
						"tags":        map[string]any{"type": "string"},
						"categoryId":  map[string]any{"type": "string"},
					},
					"required":             []string{"description", "duration", "notes", "tags", "categoryId"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"activities"},
		"additionalProperties": false,
	},
}

// SummarySchema constrains the synthesizer's structured answer.
var SummarySchema = Schema{
	Name: "structured_summary",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mainSummary": map[string]any{"type": "string", "minLength": 1},
			"sections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":   map[string]any{"type": "string"},
						"content": map[string]any{"type": "string"},
					},
					"required":             []string{"title", "content"},
					"additionalProperties": false,
				},
			},
			"timeSpent": map[string]any{
				"type": []any{"object", "null"},
				"properties": map[string]any{
					"totalMinutes": map[string]any{"type": []any{"number", "null"}},
					"breakdown":    map[string]any{"type": []any{"string", "null"}},
				},
				"additionalProperties": false,
			},
		},
		"required":             []string{"mainSummary"},
		"additionalProperties": false,
	},
}

// WeeklyReportSchema constrains generated weekly report content.
var WeeklyReportSchema = Schema{
	Name: "weekly_report",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":   map[string]any{"type": "string", "minLength": 1},
			"summary": map[string]any{"type": "string", "minLength": 1},
			"timeAnalysis": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"totalMinutes":        map[string]any{"type": "number"},
					"professionalMinutes": map[string]any{"type": "number"},
					"projectMinutes":      map[string]any{"type": "number"},
					"lifeMinutes":         map[string]any{"type": "number"},
					"breakdownRatio":      map[string]any{"type": "string"},
				},
				"required":             []string{"totalMinutes", "professionalMinutes", "projectMinutes", "lifeMinutes", "breakdownRatio"},
				"additionalProperties": false,
			},
			"keyActivities": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"categoryName": map[string]any{"type": "string"},
						"description":  map[string]any{"type": "string"},
						"timeSpent":    map[string]any{"type": "string"},
					},
					"required":             []string{"categoryName", "description"},
					"additionalProperties": false,
				},
				"minItems": 3,
				"maxItems": 5,
			},
			"tagAnalysis": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tag":     map[string]any{"type": "string"},
						"minutes": map[string]any{"type": "number"},
						"count":   map[string]any{"type": "number"},
					},
					"required":             []string{"tag", "minutes", "count"},
					"additionalProperties": false,
				},
				"minItems": 3,
				"maxItems": 7,
			},
			"insightsAndTrends": map[string]any{"type": "string", "minLength": 1},
		},
		"required":             []string{"title", "summary", "timeAnalysis", "keyActivities", "tagAnalysis", "insightsAndTrends"},
		"additionalProperties": false,
	},
}

// decodeStrict unmarshals raw into v, rejecting unknown fields.
func decodeStrict(schema, raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalid(schema, "malformed JSON: %v", err)
	}
	return nil
}

// DecodeSearchTerms validates planner output: 3-7 non-empty keywords.
func DecodeSearchTerms(raw string) ([]string, error) {
	var body struct {
		Keywords []string `json:"keywords"`
	}
	if err := decodeStrict(SearchTermsSchema.Name, raw, &body); err != nil {
		return nil, err
	}

	if len(body.Keywords) < 3 || len(body.Keywords) > 7 {
		return nil, invalid(SearchTermsSchema.Name, "expected 3-7 keywords, got %d", len(body.Keywords))
	}
	for i, kw := range body.Keywords {
		if strings.TrimSpace(kw) == "" {
			return nil, invalid(SearchTermsSchema.Name, "keyword %d is blank", i)
		}
	}

	return body.Keywords, nil
}

// DecodeRankedIDs validates reranker output. An empty list is valid: the
// model found nothing relevant in the batch.
func DecodeRankedIDs(raw string) ([]string, error) {
	var body struct {
		RankedIDs []string `json:"ranked_ids"`
	}
	if err := decodeStrict(RerankSchema.Name, raw, &body); err != nil {
		return nil, err
	}
	if body.RankedIDs == nil {
		return nil, invalid(RerankSchema.Name, "ranked_ids is missing")
	}
	return body.RankedIDs, nil
}

// DecodeActivities validates extraction output for one day. Every
// categoryId must be in validCategoryIDs: an id outside that set is a
// classification hallucination and invalidates the whole batch, because
// trusting the rest would silently corrupt the data model.
func DecodeActivities(raw string, validCategoryIDs map[string]struct{}) ([]types.NewActivity, error) {
	var body struct {
		Activities []struct {
			Description string   `json:"description"`
			Duration    *float64 `json:"duration"`
			Notes       *string  `json:"notes"`
			Tags        string   `json:"tags"`
			CategoryID  string   `json:"categoryId"`
		} `json:"activities"`
	}
	if err := decodeStrict(ImportSchema.Name, raw, &body); err != nil {
		return nil, err
	}
	if body.Activities == nil {
		return nil, invalid(ImportSchema.Name, "activities is missing")
	}

	activities := make([]types.NewActivity, 0, len(body.Activities))
	for i, a := range body.Activities {
		if strings.TrimSpace(a.Description) == "" {
			return nil, invalid(ImportSchema.Name, "activity %d has an empty description", i)
		}
		if _, ok := validCategoryIDs[a.CategoryID]; !ok {
			return nil, invalid(ImportSchema.Name, "activity %d classified to unknown category id %q", i, a.CategoryID)
		}

		var duration *int
		if a.Duration != nil {
			minutes := int(math.Round(*a.Duration))
			if minutes < 0 {
				return nil, invalid(ImportSchema.Name, "activity %d has negative duration %v", i, *a.Duration)
			}
			duration = &minutes
		}

		activities = append(activities, types.NewActivity{
			Description:     a.Description,
			DurationMinutes: duration,
			Notes:           a.Notes,
			Tags:            a.Tags,
			CategoryID:      a.CategoryID,
		})
	}

	return activities, nil
}

// DecodeSummary validates synthesizer output.
func DecodeSummary(raw string) (*types.Summary, error) {
	var body struct {
		MainSummary string                 `json:"mainSummary"`
		Sections    []types.SummarySection `json:"sections"`
		TimeSpent   *struct {
			TotalMinutes *float64 `json:"totalMinutes"`
			Breakdown    *string  `json:"breakdown"`
		} `json:"timeSpent"`
	}
	if err := decodeStrict(SummarySchema.Name, raw, &body); err != nil {
		return nil, err
	}

	if strings.TrimSpace(body.MainSummary) == "" {
		return nil, invalid(SummarySchema.Name, "mainSummary is empty")
	}

	summary := &types.Summary{
		MainSummary: body.MainSummary,
		Sections:    body.Sections,
	}
	if body.TimeSpent != nil {
		ts := &types.TimeSpent{}
		if body.TimeSpent.TotalMinutes != nil {
			minutes := int(math.Round(*body.TimeSpent.TotalMinutes))
			ts.TotalMinutes = &minutes
		}
		if body.TimeSpent.Breakdown != nil {
			ts.Breakdown = *body.TimeSpent.Breakdown
		}
		summary.TimeSpent = ts
	}

	return summary, nil
}

// DecodeWeeklyReport validates weekly report output: 3-5 key activities
// and a 3-7 row tag table, with all narrative fields present.
func DecodeWeeklyReport(raw string) (*types.WeeklyReportContent, error) {
	var body types.WeeklyReportContent
	if err := decodeStrict(WeeklyReportSchema.Name, raw, &body); err != nil {
		return nil, err
	}

	if strings.TrimSpace(body.Title) == "" {
		return nil, invalid(WeeklyReportSchema.Name, "title is empty")
	}
	if strings.TrimSpace(body.Summary) == "" {
		return nil, invalid(WeeklyReportSchema.Name, "summary is empty")
	}
	if strings.TrimSpace(body.InsightsAndTrends) == "" {
		return nil, invalid(WeeklyReportSchema.Name, "insightsAndTrends is empty")
	}
	if n := len(body.KeyActivities); n < 3 || n > 5 {
		return nil, invalid(WeeklyReportSchema.Name, "expected 3-5 key activities, got %d", n)
	}
	if n := len(body.TagAnalysis); n < 3 || n > 7 {
		return nil, invalid(WeeklyReportSchema.Name, "expected 3-7 tag rows, got %d", n)
	}

	return &body, nil
}
