package daybook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperengineering/daybook/internal/types"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(types.HealthResponse{Status: "healthy", EntryCount: 7})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if resp.Status != "healthy" || resp.EntryCount != 7 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Query != "oauth work" {
			t.Errorf("unexpected query %q", req.Query)
		}
		json.NewEncoder(w).Encode(types.SearchResponse{
			Summary:  types.Summary{MainSummary: "You spent two days on OAuth."},
			Keywords: []string{"oauth", "tokens", "login"},
		})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Search(context.Background(), "oauth work")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Summary.MainSummary == "" {
		t.Error("expected a summary")
	}
}

func TestSearchProblemResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"title":"Validation Error","status":422,"detail":"Request contains invalid fields"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Search(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("unexpected status %d", apiErr.Status)
	}
	if apiErr.Title != "Validation Error" {
		t.Errorf("unexpected title %s", apiErr.Title)
	}
}

func TestImportStreamsLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.ImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			"import started: 24 bytes of journal text",
			"[2024-03-11] saved 2 activities",
			"import finished: 1 succeeded, 0 failed",
		} {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	var lines []string
	err := New(srv.URL).Import(context.Background(), "2024-03-11 fixed stuff", func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if lines[2] != "import finished: 1 succeeded, 0 failed" {
		t.Errorf("unexpected last line %q", lines[2])
	}
}

func TestImportErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"title":"Validation Error","status":422,"detail":"text is required"}`)
	}))
	defer srv.Close()

	err := New(srv.URL).Import(context.Background(), "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestWeeklyReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.Report{
			ID:          "01HQZX3V9K2M4N6P8R1T3W5Y7A",
			Type:        types.ReportTypeWeekly,
			PeriodStart: "2024-03-11",
			Status:      types.ReportCompleted,
		})
	}))
	defer srv.Close()

	report, err := New(srv.URL).WeeklyReport(context.Background(), "2024-03-13")
	if err != nil {
		t.Fatalf("WeeklyReport: %v", err)
	}
	if report.PeriodStart != "2024-03-11" {
		t.Errorf("unexpected period start %s", report.PeriodStart)
	}
}
