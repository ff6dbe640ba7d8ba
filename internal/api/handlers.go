package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/daybook/internal/store"
	"github.com/hyperengineering/daybook/internal/types"
	"github.com/hyperengineering/daybook/internal/validation"
)

// SearchService runs the query pipeline and report generation.
type SearchService interface {
	Search(ctx context.Context, query string) (*types.SearchResponse, error)
	WeeklyReport(ctx context.Context, date string) (*types.Report, error)
}

// ImportService runs a bulk import and streams progress lines until the
// channel closes.
type ImportService interface {
	Run(ctx context.Context, input string) <-chan string
}

// Handler implements the API handlers
type Handler struct {
	store    store.Store
	search   SearchService
	importer ImportService
	version  string
	model    string
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, search SearchService, importer ImportService, version, model string) *Handler {
	return &Handler{
		store:    s,
		search:   search,
		importer: importer,
		version:  version,
		model:    model,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	entries, activities, err := h.store.Counts(r.Context())
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Model:         h.model,
		EntryCount:    entries,
		ActivityCount: activities,
	})
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// CreateCategory handles POST /api/v1/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req types.CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validateCategoryRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	category, err := h.store.CreateCategory(r.Context(), req)
	if err != nil {
		slog.Error("create category failed", "error", err, "name", req.Name)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

// UpdateCategory handles PUT /api/v1/categories/{id}
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateULID("id", id); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	var req types.CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validateCategoryRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	category, err := h.store.UpdateCategory(r.Context(), id, req)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /api/v1/categories/{id}
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateULID("id", id); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	if err := h.store.DeleteCategory(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEntries handles GET /api/v1/entries
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be an integer between 1 and 365")
			return
		}
		limit = n
	}

	entries, err := h.store.ListEntries(r.Context(), limit)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetEntry handles GET /api/v1/entries/{date}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if err := validation.ValidateDate("date", date); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	entry, activities, err := h.store.GetEntryByDate(r.Context(), date)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.EntryResponse{
		Entry:      *entry,
		Activities: activities,
	})
}

// Import handles POST /api/v1/import. Progress lines stream back as
// plain text, one per line, flushed as the pipeline produces them.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req types.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if err := validation.ValidateRequired("text", req.Text); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for line := range h.importer.Run(r.Context(), req.Text) {
		fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Search handles POST /api/v1/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req types.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("query", req.Query))
	c.Add(validation.ValidateMaxLength("query", req.Query, 1000))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	result, err := h.search.Search(r.Context(), req.Query)
	if err != nil {
		slog.Error("search failed", "error", err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// WeeklyReport handles POST /api/v1/reports/weekly
func (h *Handler) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	var req types.WeeklyReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if err := validation.ValidateDate("date", req.Date); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	report, err := h.search.WeeklyReport(r.Context(), req.Date)
	if err != nil {
		slog.Error("weekly report failed", "error", err, "date", req.Date)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ListReports handles GET /api/v1/reports
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.ListReports(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func validateCategoryRequest(req types.CategoryRequest) []validation.ValidationError {
	var c validation.Collector
	c.Add(validation.ValidateRequired("name", req.Name))
	c.Add(validation.ValidateMaxLength("name", req.Name, 100))
	c.Add(validation.ValidateMaxLength("description", req.Description, 500))
	c.Add(validation.ValidateHexColor("color", req.Color))
	return c.Errors()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
