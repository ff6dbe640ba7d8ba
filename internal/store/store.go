package store

import (
	"context"

	"github.com/hyperengineering/daybook/internal/types"
)

// Store defines the persistence contract for the journal.
type Store interface {
	// Categories
	ListCategories(ctx context.Context) ([]types.Category, error)
	CreateCategory(ctx context.Context, req types.CategoryRequest) (*types.Category, error)
	UpdateCategory(ctx context.Context, id string, req types.CategoryRequest) (*types.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// Entries and activities
	ListEntries(ctx context.Context, limit int) ([]types.Entry, error)
	GetEntryByDate(ctx context.Context, date string) (*types.Entry, []types.Activity, error)
	// ReplaceDay upserts the day entry and replaces that date's activities
	// in a single transaction. Re-importing a date replaces, never
	// accumulates.
	ReplaceDay(ctx context.Context, date, rawText string, activities []types.NewActivity) error
	SearchActivities(ctx context.Context, keywords []string, limit int) ([]types.Activity, error)
	ListActivitiesBetween(ctx context.Context, from, to string) ([]types.Activity, error)

	// Reports
	GetReport(ctx context.Context, reportType, periodStart string) (*types.Report, error)
	CreateReport(ctx context.Context, reportType, periodStart string) (*types.Report, error)
	CompleteReport(ctx context.Context, id string, content *types.WeeklyReportContent) error
	FailReport(ctx context.Context, id string) error
	ListReports(ctx context.Context) ([]types.Report, error)

	// Counts returns entry and activity totals for the health endpoint.
	Counts(ctx context.Context) (entries int64, activities int64, err error)

	Close() error
}
