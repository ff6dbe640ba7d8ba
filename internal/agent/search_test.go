package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperengineering/daybook/internal/llm"
	"github.com/hyperengineering/daybook/internal/store"
	"github.com/hyperengineering/daybook/internal/types"
)

type fakeSearchStore struct {
	candidates []types.Activity
	searchErr  error

	weekActivities []types.Activity

	existing  *types.Report
	created   *types.Report
	completed map[string]*types.WeeklyReportContent
	failed    []string
}

func (f *fakeSearchStore) SearchActivities(ctx context.Context, keywords []string, limit int) ([]types.Activity, error) {
	return f.candidates, f.searchErr
}

func (f *fakeSearchStore) ListActivitiesBetween(ctx context.Context, from, to string) ([]types.Activity, error) {
	return f.weekActivities, nil
}

func (f *fakeSearchStore) GetReport(ctx context.Context, reportType, periodStart string) (*types.Report, error) {
	if f.existing == nil {
		return nil, store.ErrNotFound
	}
	return f.existing, nil
}

func (f *fakeSearchStore) CreateReport(ctx context.Context, reportType, periodStart string) (*types.Report, error) {
	f.created = &types.Report{
		ID:          "01HQZX3V9K2M4N6P8R1T3W5Y7F",
		Type:        reportType,
		PeriodStart: periodStart,
		Status:      types.ReportPending,
	}
	return f.created, nil
}

func (f *fakeSearchStore) CompleteReport(ctx context.Context, id string, content *types.WeeklyReportContent) error {
	if f.completed == nil {
		f.completed = map[string]*types.WeeklyReportContent{}
	}
	f.completed[id] = content
	return nil
}

func (f *fakeSearchStore) FailReport(ctx context.Context, id string) error {
	f.failed = append(f.failed, id)
	return nil
}

func newTestPipeline(gen Generator, st SearchStore) *Pipeline {
	return NewPipeline(NewPlanner(gen), NewReranker(gen), NewSynthesizer(gen), st)
}

// scriptedReply dispatches on the request's schema so a single generator
// can serve every pipeline stage.
func scriptedReply(planner, rerank, summary string) func(llm.Request) (string, error) {
	return func(req llm.Request) (string, error) {
		switch {
		case req.Schema == nil:
			return planner, nil
		case req.Schema == &llm.RerankSchema:
			return rerank, nil
		case req.Schema == &llm.SummarySchema:
			return summary, nil
		default:
			return "", errors.New("unexpected schema")
		}
	}
}

func TestSearchPipeline(t *testing.T) {
	st := &fakeSearchStore{candidates: makeActivities(3)}
	gen := &fakeGenerator{reply: scriptedReply(
		`{"keywords":["oauth","login","tokens"]}`,
		rankedJSON("act-01", "act-00"),
		`{"mainSummary":"Two auth sessions this week."}`,
	)}

	resp, err := newTestPipeline(gen, st).Search(context.Background(), "auth work?")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(resp.Keywords) != 3 {
		t.Errorf("expected 3 keywords, got %v", resp.Keywords)
	}
	if len(resp.Activities) != 2 || resp.Activities[0].ID != "act-01" {
		t.Errorf("unexpected ranked activities %v", resp.Activities)
	}
	if resp.Summary.MainSummary != "Two auth sessions this week." {
		t.Errorf("unexpected summary %q", resp.Summary.MainSummary)
	}
}

func TestSearchStoreFailure(t *testing.T) {
	st := &fakeSearchStore{searchErr: errors.New("database is locked")}
	gen := &fakeGenerator{reply: scriptedReply(`{"keywords":["a","b","c"]}`, "", "")}

	if _, err := newTestPipeline(gen, st).Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error when candidate fetch fails")
	}
}

func TestSearchDegradesEndToEnd(t *testing.T) {
	// Every model call fails; the pipeline still answers.
	st := &fakeSearchStore{candidates: makeActivities(20)}
	gen := &fakeGenerator{reply: staticReply("", errors.New("model down"))}

	resp, err := newTestPipeline(gen, st).Search(context.Background(), "what happened with oauth?")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Heuristic keywords, original-order fallback, apologetic summary.
	if len(resp.Keywords) == 0 {
		t.Error("expected fallback keywords")
	}
	if len(resp.Activities) != rerankFallbackLimit {
		t.Errorf("expected %d fallback activities, got %d", rerankFallbackLimit, len(resp.Activities))
	}
	if resp.Summary.MainSummary != errorSummary().MainSummary {
		t.Errorf("unexpected summary %q", resp.Summary.MainSummary)
	}
}

func TestSearchNoMatches(t *testing.T) {
	st := &fakeSearchStore{candidates: nil}
	gen := &fakeGenerator{reply: scriptedReply(`{"keywords":["a","b","c"]}`, "", "")}

	resp, err := newTestPipeline(gen, st).Search(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Summary.MainSummary != notFoundSummary().MainSummary {
		t.Errorf("unexpected summary %q", resp.Summary.MainSummary)
	}
	if len(resp.Activities) != 0 {
		t.Errorf("expected no activities, got %d", len(resp.Activities))
	}
}

const validWeeklyReportJSON = `{
	"title":"Week of March 11",
	"summary":"Authentication work dominated.",
	"timeAnalysis":{"totalMinutes":600,"professionalMinutes":400,"projectMinutes":100,"lifeMinutes":100,"breakdownRatio":"67/16/17"},
	"keyActivities":[
		{"categoryName":"Professional","description":"Shipped OAuth refresh"},
		{"categoryName":"Professional","description":"Fixed login bug"},
		{"categoryName":"Life","description":"Long run"}
	],
	"tagAnalysis":[
		{"tag":"auth","minutes":300,"count":3},
		{"tag":"bugfix","minutes":100,"count":1},
		{"tag":"running","minutes":60,"count":1}
	],
	"insightsAndTrends":"Heavy focus on auth."
}`

func TestWeeklyReportGenerates(t *testing.T) {
	st := &fakeSearchStore{weekActivities: makeActivities(4)}
	gen := &fakeGenerator{reply: staticReply(validWeeklyReportJSON, nil)}

	report, err := newTestPipeline(gen, st).WeeklyReport(context.Background(), "2024-03-13")
	if err != nil {
		t.Fatalf("WeeklyReport: %v", err)
	}

	if report.PeriodStart != "2024-03-11" {
		t.Errorf("expected Monday 2024-03-11, got %s", report.PeriodStart)
	}
	if report.Status != types.ReportCompleted {
		t.Errorf("unexpected status %s", report.Status)
	}
	if report.Content == nil || report.Content.Title == "" {
		t.Error("expected report content")
	}
	if st.completed[report.ID] == nil {
		t.Error("content should be persisted via CompleteReport")
	}
}

func TestWeeklyReportReturnsExistingCompleted(t *testing.T) {
	st := &fakeSearchStore{existing: &types.Report{
		ID:          "01HQZX3V9K2M4N6P8R1T3W5Y7G",
		Type:        types.ReportTypeWeekly,
		PeriodStart: "2024-03-11",
		Status:      types.ReportCompleted,
	}}
	gen := &fakeGenerator{reply: staticReply("", errors.New("must not be called"))}

	report, err := newTestPipeline(gen, st).WeeklyReport(context.Background(), "2024-03-13")
	if err != nil {
		t.Fatalf("WeeklyReport: %v", err)
	}
	if report.ID != st.existing.ID {
		t.Errorf("expected the existing report, got %s", report.ID)
	}
	if gen.calls() != 0 {
		t.Errorf("expected no model calls, got %d", gen.calls())
	}
}

func TestWeeklyReportEmptyPeriod(t *testing.T) {
	st := &fakeSearchStore{}
	gen := &fakeGenerator{reply: staticReply("", errors.New("must not be called"))}

	_, err := newTestPipeline(gen, st).WeeklyReport(context.Background(), "2024-03-13")
	if !errors.Is(err, ErrNothingToReport) {
		t.Fatalf("expected ErrNothingToReport, got %v", err)
	}
}

func TestWeeklyReportGenerationFailureMarksFailed(t *testing.T) {
	st := &fakeSearchStore{weekActivities: makeActivities(2)}
	gen := &fakeGenerator{reply: staticReply("", errors.New("model down"))}

	_, err := newTestPipeline(gen, st).WeeklyReport(context.Background(), "2024-03-13")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(st.failed) != 1 {
		t.Errorf("expected one FailReport call, got %v", st.failed)
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-03-11", "2024-03-11"}, // Monday maps to itself
		{"2024-03-13", "2024-03-11"}, // Wednesday
		{"2024-03-17", "2024-03-11"}, // Sunday belongs to the preceding Monday
		{"2024-03-18", "2024-03-18"}, // next Monday starts a new week
	}

	for _, tt := range tests {
		parsed, err := time.Parse("2006-01-02", tt.date)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.date, err)
		}
		if got := weekStart(parsed).Format("2006-01-02"); got != tt.want {
			t.Errorf("weekStart(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}
