package types

import "time"

// ReportStatus tracks the lifecycle of a generated report.
type ReportStatus string

const (
	ReportPending   ReportStatus = "PENDING"
	ReportCompleted ReportStatus = "COMPLETED"
	ReportFailed    ReportStatus = "FAILED"
)

// ReportTypeWeekly is the only report type currently generated.
const ReportTypeWeekly = "WEEKLY"

// Category classifies activities. Categories with IsDefault=false are
// user-defined; those are the only ones the model may classify into, and
// each must carry a non-empty description before an import run starts.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Entry is one calendar day of raw journal text, keyed by its date.
type Entry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	RawText   string    `json:"raw_text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Activity is a single extracted activity belonging to a day entry.
// DurationMinutes is nil when the journal text gave no duration; the
// pipeline never invents a default.
type Activity struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	Description     string    `json:"description"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	Tags            []string  `json:"tags"`
	CategoryID      string    `json:"category_id"`
	CategoryName    string    `json:"category_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewActivity is the pipeline-internal shape produced by extraction and
// consumed by persistence. Tags is the comma-joined string the model
// returns; the store splits it when connecting tag rows.
type NewActivity struct {
	Description     string
	DurationMinutes *int
	Notes           *string
	Tags            string
	CategoryID      string
}

// Summary is the structured answer the synthesizer produces for a query.
type Summary struct {
	MainSummary string           `json:"mainSummary"`
	Sections    []SummarySection `json:"sections,omitempty"`
	TimeSpent   *TimeSpent       `json:"timeSpent,omitempty"`
}

// SummarySection is one titled block of a structured summary.
type SummarySection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TimeSpent aggregates time information inside a summary.
type TimeSpent struct {
	TotalMinutes *int   `json:"totalMinutes,omitempty"`
	Breakdown    string `json:"breakdown,omitempty"`
}

// WeeklyReportContent is the structured body of a generated weekly report.
type WeeklyReportContent struct {
	Title             string        `json:"title"`
	Summary           string        `json:"summary"`
	TimeAnalysis      TimeAnalysis  `json:"timeAnalysis"`
	KeyActivities     []KeyActivity `json:"keyActivities"`
	TagAnalysis       []TagStat     `json:"tagAnalysis"`
	InsightsAndTrends string        `json:"insightsAndTrends"`
}

// TimeAnalysis breaks a week's time down by category group.
type TimeAnalysis struct {
	TotalMinutes        int    `json:"totalMinutes"`
	ProfessionalMinutes int    `json:"professionalMinutes"`
	ProjectMinutes      int    `json:"projectMinutes"`
	LifeMinutes         int    `json:"lifeMinutes"`
	BreakdownRatio      string `json:"breakdownRatio"`
}

// KeyActivity is one of the 3-5 highlighted activities of a weekly report.
type KeyActivity struct {
	CategoryName string `json:"categoryName"`
	Description  string `json:"description"`
	TimeSpent    string `json:"timeSpent,omitempty"`
}

// TagStat is one row of a weekly report's tag table.
type TagStat struct {
	Tag     string `json:"tag"`
	Minutes int    `json:"minutes"`
	Count   int    `json:"count"`
}

// Report is a persisted report record. Content is nil unless the report
// reached COMPLETED.
type Report struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	PeriodStart string               `json:"period_start"` // Monday of the ISO week, YYYY-MM-DD
	Status      ReportStatus         `json:"status"`
	Content     *WeeklyReportContent `json:"content,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// --- API request/response shapes ---

// SearchRequest carries a free-text question over the journal.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is the full result of the search pipeline.
type SearchResponse struct {
	Summary    Summary    `json:"summary"`
	Activities []Activity `json:"activities"`
	Keywords   []string   `json:"keywords"`
}

// ImportRequest carries a raw multi-day journal blob.
type ImportRequest struct {
	Text string `json:"text"`
}

// WeeklyReportRequest asks for the report covering the week of Date.
type WeeklyReportRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// CategoryRequest creates or updates a category.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	IsDefault   bool   `json:"is_default"`
}

// EntryResponse pairs a day entry with its activities.
type EntryResponse struct {
	Entry      Entry      `json:"entry"`
	Activities []Activity `json:"activities"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Model         string `json:"model"`
	EntryCount    int64  `json:"entry_count"`
	ActivityCount int64  `json:"activity_count"`
}
