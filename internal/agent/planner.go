// Package agent implements the model-driven pipeline stages: query
// planning, candidate reranking, answer synthesis, and journal import.
// Each agent renders a prompt, invokes the model client, validates the
// structured output, and degrades to a documented fallback on failure.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hyperengineering/daybook/internal/llm"
)

// Generator is the slice of llm.Client the agents depend on. Tests
// inject fakes through it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// keywordTimeout bounds keyword generation; queries are user-facing and
// cannot wait on a stuck model.
const keywordTimeout = 30 * time.Second

// Planner turns a free-text question into search keywords.
type Planner struct {
	gen Generator
}

// NewPlanner creates a Planner backed by the given generator.
func NewPlanner(gen Generator) *Planner {
	return &Planner{gen: gen}
}

// Plan returns 3-7 keywords for the query. It never fails: on any model
// or validation error it falls back to a whitespace-token heuristic, so
// the search pipeline always has some keyword set.
func (p *Planner) Plan(ctx context.Context, query string) []string {
	raw, err := p.gen.Generate(ctx, llm.Request{
		Prompt:      llm.PlannerPrompt(query),
		Schema:      nil, // plain json_object mode
		Temperature: 0.0,
		Timeout:     keywordTimeout,
	})
	if err != nil {
		slog.Warn("keyword generation failed, using heuristic fallback", "error", err)
		return fallbackKeywords(query)
	}

	keywords, err := llm.DecodeSearchTerms(raw)
	if err != nil {
		slog.Warn("keyword response rejected, using heuristic fallback", "error", err)
		return fallbackKeywords(query)
	}

	// Belt and braces: drop any blank strings that slipped through.
	result := keywords[:0]
	for _, kw := range keywords {
		if strings.TrimSpace(kw) != "" {
			result = append(result, kw)
		}
	}
	return result
}

// fallbackKeywords splits the raw query on whitespace and keeps tokens
// longer than 2 characters.
func fallbackKeywords(query string) []string {
	var keywords []string
	for _, token := range strings.Fields(query) {
		if len([]rune(token)) > 2 {
			keywords = append(keywords, token)
		}
	}
	return keywords
}
