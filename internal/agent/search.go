package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/daybook/internal/types"
)

// searchCandidateLimit bounds the candidate fetch feeding the reranker.
const searchCandidateLimit = 50

// ErrNothingToReport signals that the requested period has no activities
// to report on. The caller surfaces "not found" instead of producing an
// empty report.
var ErrNothingToReport = errors.New("no activities in the requested period")

// SearchStore is the slice of the persistence layer the search and
// report pipelines need.
type SearchStore interface {
	SearchActivities(ctx context.Context, keywords []string, limit int) ([]types.Activity, error)
	ListActivitiesBetween(ctx context.Context, from, to string) ([]types.Activity, error)
	GetReport(ctx context.Context, reportType, periodStart string) (*types.Report, error)
	CreateReport(ctx context.Context, reportType, periodStart string) (*types.Report, error)
	CompleteReport(ctx context.Context, id string, content *types.WeeklyReportContent) error
	FailReport(ctx context.Context, id string) error
}

// Pipeline composes planner → retrieval → reranker → synthesizer, and
// drives weekly report generation.
type Pipeline struct {
	planner     *Planner
	reranker    *Reranker
	synthesizer *Synthesizer
	store       SearchStore
}

// NewPipeline wires the search pipeline from its stages.
func NewPipeline(planner *Planner, reranker *Reranker, synthesizer *Synthesizer, store SearchStore) *Pipeline {
	return &Pipeline{
		planner:     planner,
		reranker:    reranker,
		synthesizer: synthesizer,
		store:       store,
	}
}

// Search answers a free-text question over the journal. The summary is
// always renderable; only the candidate fetch itself can fail.
func (p *Pipeline) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	keywords := p.planner.Plan(ctx, query)

	candidates, err := p.store.SearchActivities(ctx, keywords, searchCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	ranked := p.reranker.Rerank(ctx, query, candidates)
	summary := p.synthesizer.Summarize(ctx, query, ranked)

	return &types.SearchResponse{
		Summary:    summary,
		Activities: ranked,
		Keywords:   keywords,
	}, nil
}

// WeeklyReport returns the report covering the ISO week of date,
// generating it when no completed one exists. A period without
// activities yields ErrNothingToReport and the pending row is marked
// FAILED rather than left as an empty completed report.
func (p *Pipeline) WeeklyReport(ctx context.Context, date string) (*types.Report, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("parse report date: %w", err)
	}
	monday := weekStart(parsed)
	sunday := monday.AddDate(0, 0, 6)
	periodStart := monday.Format("2006-01-02")

	existing, err := p.store.GetReport(ctx, types.ReportTypeWeekly, periodStart)
	if err == nil && existing.Status == types.ReportCompleted {
		return existing, nil
	}

	activities, err := p.store.ListActivitiesBetween(ctx, periodStart, sunday.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("fetch week activities: %w", err)
	}
	if len(activities) == 0 {
		return nil, ErrNothingToReport
	}

	report := existing
	if report == nil {
		report, err = p.store.CreateReport(ctx, types.ReportTypeWeekly, periodStart)
		if err != nil {
			return nil, fmt.Errorf("create report record: %w", err)
		}
	}

	content := p.synthesizer.WeeklyReport(ctx, activities)
	if content == nil {
		if err := p.store.FailReport(ctx, report.ID); err != nil {
			slog.Error("could not mark report failed", "report_id", report.ID, "error", err)
		}
		return nil, fmt.Errorf("weekly report generation failed for week of %s", periodStart)
	}

	if err := p.store.CompleteReport(ctx, report.ID, content); err != nil {
		return nil, fmt.Errorf("persist report content: %w", err)
	}

	report.Status = types.ReportCompleted
	report.Content = content
	return report, nil
}

// weekStart returns the Monday of t's week.
func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started six days earlier
	}
	return t.AddDate(0, 0, 1-weekday)
}
