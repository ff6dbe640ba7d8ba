package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/daybook/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed journal database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, runs
// migrations, and seeds the default category on first run.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.seedDefaultCategory(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed default category: %w", err)
	}

	return s, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// seedDefaultCategory inserts the built-in catch-all category on an empty
// database. Default categories are excluded from AI classification.
func (s *SQLiteStore) seedDefaultCategory() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO categories (id, name, description, color, icon, is_default, created_at, updated_at)
		VALUES (?, 'Uncategorized', '', '#9e9e9e', '', 1, ?, ?)
	`, ulid.Make().String(), now, now)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseTime(value string) time.Time {
	t, _ := time.Parse(time.RFC3339, value)
	return t
}

// --- Categories ---

func scanCategory(scanner interface{ Scan(...any) error }) (*types.Category, error) {
	var c types.Category
	var isDefault int
	var createdAt, updatedAt string

	err := scanner.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Icon, &isDefault, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.IsDefault = isDefault != 0
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]types.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, color, icon, is_default, created_at, updated_at
		FROM categories
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []types.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// CreateCategory stores a new category.
func (s *SQLiteStore) CreateCategory(ctx context.Context, req types.CategoryRequest) (*types.Category, error) {
	now := time.Now().UTC()
	c := types.Category{
		ID:          ulid.Make().String(),
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		IsDefault:   req.IsDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Color == "" {
		c.Color = "#9e9e9e"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, color, icon, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Description, c.Color, c.Icon, boolToInt(c.IsDefault),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}

	return &c, nil
}

// UpdateCategory updates an existing category.
func (s *SQLiteStore) UpdateCategory(ctx context.Context, id string, req types.CategoryRequest) (*types.Category, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, description = ?, color = ?, icon = ?, is_default = ?, updated_at = ?
		WHERE id = ?
	`, req.Name, req.Description, req.Color, req.Icon, boolToInt(req.IsDefault), now, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, color, icon, is_default, created_at, updated_at
		FROM categories WHERE id = ?
	`, id)
	return scanCategory(row)
}

// DeleteCategory removes a category with no activities attached.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, id string) error {
	var inUse int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activities WHERE category_id = ?", id).Scan(&inUse); err != nil {
		return fmt.Errorf("count category activities: %w", err)
	}
	if inUse > 0 {
		return ErrCategoryInUse
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Entries and activities ---

func scanEntry(scanner interface{ Scan(...any) error }) (*types.Entry, error) {
	var e types.Entry
	var createdAt, updatedAt string

	if err := scanner.Scan(&e.ID, &e.Date, &e.RawText, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// ListEntries returns day entries, most recent first.
func (s *SQLiteStore) ListEntries(ctx context.Context, limit int) ([]types.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, raw_text, created_at, updated_at
		FROM entries
		ORDER BY date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []types.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// GetEntryByDate returns the day entry and its activities for a date.
func (s *SQLiteStore) GetEntryByDate(ctx context.Context, date string) (*types.Entry, []types.Activity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, date, raw_text, created_at, updated_at
		FROM entries WHERE date = ?
	`, date)

	entry, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("scan entry: %w", err)
	}

	activities, err := s.queryActivities(ctx, "WHERE a.date = ?", "a.created_at ASC", 0, date)
	if err != nil {
		return nil, nil, err
	}

	return entry, activities, nil
}

// ReplaceDay upserts the day entry keyed by date, deletes that date's
// previously stored activities, and inserts the new ones, all inside one
// transaction. Tag rows are created on demand; an existing name is reused.
func (s *SQLiteStore) ReplaceDay(ctx context.Context, date, rawText string, activities []types.NewActivity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (id, date, raw_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET raw_text = excluded.raw_text, updated_at = excluded.updated_at
	`, ulid.Make().String(), date, rawText, now, now)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}

	// Idempotent replace: activity_tags rows cascade with their activity.
	if _, err := tx.ExecContext(ctx, "DELETE FROM activities WHERE date = ?", date); err != nil {
		return fmt.Errorf("delete previous activities: %w", err)
	}

	for _, a := range activities {
		activityID := ulid.Make().String()

		var duration any
		if a.DurationMinutes != nil {
			duration = *a.DurationMinutes
		}
		var notes any
		if a.Notes != nil {
			notes = *a.Notes
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO activities (id, date, description, duration_minutes, notes, category_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, activityID, date, a.Description, duration, notes, a.CategoryID, now)
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}

		for _, name := range splitTags(a.Tags) {
			tagID, err := upsertTag(ctx, tx, name)
			if err != nil {
				return fmt.Errorf("upsert tag %q: %w", name, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO activity_tags (activity_id, tag_id) VALUES (?, ?)
				ON CONFLICT DO NOTHING
			`, activityID, tagID)
			if err != nil {
				return fmt.Errorf("connect tag %q: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// splitTags splits the comma-joined tag string the model produces,
// trimming whitespace and discarding blanks.
func splitTags(joined string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(joined, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, name)
	}
	return tags
}

// upsertTag creates the tag if missing and returns its id. A concurrent
// insert of the same name is tolerated: the conflict is a no-op and the
// follow-up lookup returns the winner's row.
func upsertTag(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tags (id, name) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, ulid.Make().String(), name)
	if err != nil {
		return "", err
	}

	var id string
	if err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

const activitySelect = `
	SELECT a.id, a.date, a.description, a.duration_minutes, a.notes,
	       a.category_id, c.name,
	       COALESCE((SELECT GROUP_CONCAT(t.name, ',')
	                 FROM activity_tags at
	                 JOIN tags t ON t.id = at.tag_id
	                 WHERE at.activity_id = a.id), ''),
	       a.created_at
	FROM activities a
	JOIN categories c ON c.id = a.category_id
`

func scanActivity(scanner interface{ Scan(...any) error }) (*types.Activity, error) {
	var a types.Activity
	var duration sql.NullInt64
	var notes sql.NullString
	var tags, createdAt string

	err := scanner.Scan(&a.ID, &a.Date, &a.Description, &duration, &notes,
		&a.CategoryID, &a.CategoryName, &tags, &createdAt)
	if err != nil {
		return nil, err
	}

	if duration.Valid {
		d := int(duration.Int64)
		a.DurationMinutes = &d
	}
	if notes.Valid {
		n := notes.String
		a.Notes = &n
	}
	if tags != "" {
		a.Tags = strings.Split(tags, ",")
	} else {
		a.Tags = []string{}
	}
	a.CreatedAt = parseTime(createdAt)

	return &a, nil
}

func (s *SQLiteStore) queryActivities(ctx context.Context, where, orderBy string, limit int, args ...any) ([]types.Activity, error) {
	query := activitySelect + where + " ORDER BY " + orderBy
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	activities := []types.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}

	return activities, nil
}

// SearchActivities returns activities matching any keyword in their
// description, notes, or tag names, most recent first. This is the
// candidate fetch for the rerank stage, so recall beats precision here.
func (s *SQLiteStore) SearchActivities(ctx context.Context, keywords []string, limit int) ([]types.Activity, error) {
	if len(keywords) == 0 {
		return []types.Activity{}, nil
	}

	var conditions []string
	var args []any
	for _, kw := range keywords {
		pattern := "%" + kw + "%"
		conditions = append(conditions, `(a.description LIKE ? OR a.notes LIKE ? OR EXISTS (
			SELECT 1 FROM activity_tags at
			JOIN tags t ON t.id = at.tag_id
			WHERE at.activity_id = a.id AND t.name LIKE ?))`)
		args = append(args, pattern, pattern, pattern)
	}

	where := "WHERE " + strings.Join(conditions, " OR ")
	return s.queryActivities(ctx, where, "a.date DESC, a.created_at DESC", limit, args...)
}

// ListActivitiesBetween returns activities with from <= date <= to in
// chronological order.
func (s *SQLiteStore) ListActivitiesBetween(ctx context.Context, from, to string) ([]types.Activity, error) {
	return s.queryActivities(ctx, "WHERE a.date >= ? AND a.date <= ?", "a.date ASC, a.created_at ASC", 0, from, to)
}

// --- Reports ---

func scanReport(scanner interface{ Scan(...any) error }) (*types.Report, error) {
	var r types.Report
	var content sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&r.ID, &r.Type, &r.PeriodStart, &r.Status, &content, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if content.Valid && content.String != "" {
		var body types.WeeklyReportContent
		if err := json.Unmarshal([]byte(content.String), &body); err != nil {
			return nil, fmt.Errorf("parse report content: %w", err)
		}
		r.Content = &body
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)

	return &r, nil
}

// GetReport returns the report for a type and period start date.
func (s *SQLiteStore) GetReport(ctx context.Context, reportType, periodStart string) (*types.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, period_start, status, content, created_at, updated_at
		FROM reports WHERE type = ? AND period_start = ?
	`, reportType, periodStart)

	report, err := scanReport(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return report, nil
}

// CreateReport inserts a PENDING report row for the period.
func (s *SQLiteStore) CreateReport(ctx context.Context, reportType, periodStart string) (*types.Report, error) {
	now := time.Now().UTC()
	r := types.Report{
		ID:          ulid.Make().String(),
		Type:        reportType,
		PeriodStart: periodStart,
		Status:      types.ReportPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, type, period_start, status, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?)
	`, r.ID, r.Type, r.PeriodStart, r.Status, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReport
		}
		return nil, fmt.Errorf("insert report: %w", err)
	}

	return &r, nil
}

func (s *SQLiteStore) setReportStatus(ctx context.Context, id string, status types.ReportStatus, content any) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE reports SET status = ?, content = ?, updated_at = ? WHERE id = ?
	`, status, content, now, id)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteReport marks the report COMPLETED with its generated content.
func (s *SQLiteStore) CompleteReport(ctx context.Context, id string, content *types.WeeklyReportContent) error {
	body, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal report content: %w", err)
	}
	return s.setReportStatus(ctx, id, types.ReportCompleted, string(body))
}

// FailReport marks the report FAILED, clearing any content.
func (s *SQLiteStore) FailReport(ctx context.Context, id string) error {
	return s.setReportStatus(ctx, id, types.ReportFailed, nil)
}

// ListReports returns all reports, most recent period first.
func (s *SQLiteStore) ListReports(ctx context.Context) ([]types.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, period_start, status, content, created_at, updated_at
		FROM reports
		ORDER BY period_start DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []types.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}

// --- Health and backup ---

// Counts returns entry and activity totals.
func (s *SQLiteStore) Counts(ctx context.Context) (int64, int64, error) {
	var entries, activities int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&entries); err != nil {
		return 0, 0, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities").Scan(&activities); err != nil {
		return 0, 0, err
	}
	return entries, activities, nil
}

// Snapshot writes a consistent copy of the database into dir using
// VACUUM INTO and returns the snapshot path. The target file must not
// already exist; a timestamped name keeps snapshots distinct.
func (s *SQLiteStore) Snapshot(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("daybook-%s.db", time.Now().UTC().Format("20060102-150405")))
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("vacuum into snapshot: %w", err)
	}

	return path, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
