package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/daybook/internal/llm"
	"github.com/hyperengineering/daybook/internal/types"
)

// synthesisTimeout bounds summary and weekly report generation. Long
// because local models can be slow on long contexts, bounded because the
// caller is an HTTP request.
const synthesisTimeout = 180 * time.Second

// Synthesizer turns a query plus ranked activities into a structured
// summary, and a week of activities into report content.
type Synthesizer struct {
	gen Generator
}

// NewSynthesizer creates a Synthesizer backed by the given generator.
func NewSynthesizer(gen Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// notFoundSummary is returned without a model call when there is nothing
// to summarize.
func notFoundSummary() types.Summary {
	return types.Summary{
		MainSummary: "No matching activities were found in your journal for this question.",
	}
}

// errorSummary is returned when synthesis fails; search must always
// return a renderable result.
func errorSummary() types.Summary {
	return types.Summary{
		MainSummary: "Something went wrong while summarizing the matching activities. Please try again.",
	}
}

// Summarize answers the query from the supplied activities. An empty
// activity list short-circuits to the fixed not-found summary without
// calling the model; any failure yields the fixed error summary instead
// of propagating.
func (s *Synthesizer) Summarize(ctx context.Context, query string, activities []types.Activity) types.Summary {
	if len(activities) == 0 {
		return notFoundSummary()
	}

	raw, err := s.gen.Generate(ctx, llm.Request{
		Prompt:      llm.SummaryPrompt(query, activities),
		Schema:      &llm.SummarySchema,
		Temperature: 0.2,
		Timeout:     synthesisTimeout,
	})
	if err != nil {
		slog.Warn("summary generation failed", "error", err)
		return errorSummary()
	}

	summary, err := llm.DecodeSummary(raw)
	if err != nil {
		slog.Warn("summary response rejected", "error", err)
		return errorSummary()
	}

	return *summary
}

// WeeklyReport generates report content for a week of activities.
// Returns nil on empty input or any failure; the caller marks the
// enclosing report record FAILED rather than showing empty content.
func (s *Synthesizer) WeeklyReport(ctx context.Context, activities []types.Activity) *types.WeeklyReportContent {
	if len(activities) == 0 {
		return nil
	}

	raw, err := s.gen.Generate(ctx, llm.Request{
		Prompt:      llm.WeeklyReportPrompt(activities),
		Schema:      &llm.WeeklyReportSchema,
		Temperature: 0.2,
		Timeout:     synthesisTimeout,
	})
	if err != nil {
		slog.Warn("weekly report generation failed", "error", err)
		return nil
	}

	content, err := llm.DecodeWeeklyReport(raw)
	if err != nil {
		slog.Warn("weekly report response rejected", "error", err)
		return nil
	}

	return content
}
