package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hyperengineering/daybook/internal/llm"
	"github.com/hyperengineering/daybook/internal/types"
	"github.com/hyperengineering/daybook/internal/validation"
)

// ImportStore is the slice of the persistence layer the importer needs.
type ImportStore interface {
	ListCategories(ctx context.Context) ([]types.Category, error)
	ReplaceDay(ctx context.Context, date, rawText string, activities []types.NewActivity) error
}

// dayEntry is one calendar day's slice of the raw import blob.
type dayEntry struct {
	Date    string
	RawText string
}

// dateHeader matches a day boundary: a line beginning with YYYY-MM-DD.
var dateHeader = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Importer drives the bulk journal import: it parses a multi-day blob
// into per-day entries, validates category prerequisites once up front,
// runs extraction+classification per entry, and persists results with
// overwrite semantics. Entries are processed strictly sequentially so
// progress lines appear in input order.
type Importer struct {
	gen   Generator
	store ImportStore
}

// NewImporter creates an Importer.
func NewImporter(gen Generator, store ImportStore) *Importer {
	return &Importer{gen: gen, store: store}
}

// Run starts an import and returns its progress stream: human-readable
// lines delivered as they are produced, closed when the run finishes.
// Per-entry failures are logged and counted but never abort the batch;
// configuration and category-fetch failures abort the whole run before
// any model call. A run that reaches completion emits a final summary
// block exactly once. Cancelling ctx abandons the run best-effort.
func (im *Importer) Run(ctx context.Context, input string) <-chan string {
	progress := make(chan string)
	go func() {
		defer close(progress)
		im.run(ctx, input, progress)
	}()
	return progress
}

func (im *Importer) run(ctx context.Context, input string, progress chan<- string) {
	emit := func(format string, args ...any) bool {
		select {
		case progress <- fmt.Sprintf(format, args...):
			return true
		case <-ctx.Done():
			return false
		}
	}

	start := time.Now()
	if !emit("import started: %d bytes of journal text", len(input)) {
		return
	}

	// Category fetch failure is an infrastructure failure, fatal for the
	// run before any model call is spent.
	categories, err := im.store.ListCategories(ctx)
	if err != nil {
		emit("import aborted: could not load categories: %v", err)
		return
	}

	classifiable, err := classifiableCategories(categories)
	if err != nil {
		emit("import aborted: %v", err)
		return
	}
	emit("%d categories available for classification", len(classifiable))

	entries := parseDayEntries(input)
	if len(entries) == 0 {
		emit("import aborted: no day entries found; each day must start on a YYYY-MM-DD line")
		return
	}
	emit("parsed %d day entries", len(entries))

	validIDs := make(map[string]struct{}, len(classifiable))
	for _, c := range classifiable {
		validIDs[c.ID] = struct{}{}
	}

	var succeeded, failed, totalActivities int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		if !validation.IsDate(entry.Date) {
			emit("[%s] warning: not a valid calendar date, entry skipped", entry.Date)
			failed++
			continue
		}

		emit("[%s] extracting activities", entry.Date)
		activities, err := im.extract(ctx, entry, classifiable, validIDs)
		if err != nil {
			emit("[%s] extraction failed: %v", entry.Date, err)
			emit("[%s] %s", entry.Date, failureHint(err))
			failed++
			continue
		}
		emit("[%s] extracted %d activities", entry.Date, len(activities))

		emit("[%s] saving", entry.Date)
		if err := im.store.ReplaceDay(ctx, entry.Date, entry.RawText, activities); err != nil {
			emit("[%s] save failed: %v", entry.Date, err)
			failed++
			continue
		}
		emit("[%s] saved %d activities", entry.Date, len(activities))

		succeeded++
		totalActivities += len(activities)
	}

	emit("import finished: %d succeeded, %d failed", succeeded, failed)
	emit("activities created: %d", totalActivities)
	emit("elapsed: %s", time.Since(start).Round(time.Millisecond))
}

// extract runs one entry through prompt → model → schema validation,
// including the category id cross-check.
func (im *Importer) extract(ctx context.Context, entry dayEntry, categories []types.Category, validIDs map[string]struct{}) ([]types.NewActivity, error) {
	// No client-side timeout: the bulk import tolerates slow local
	// inference and relies on the transport's own limits if any.
	raw, err := im.gen.Generate(ctx, llm.Request{
		Prompt:      llm.ImportPrompt(entry.Date, entry.RawText, categories),
		Schema:      &llm.ImportSchema,
		Temperature: 0.0,
	})
	if err != nil {
		return nil, err
	}
	return llm.DecodeActivities(raw, validIDs)
}

// classifiableCategories filters to user-defined categories and enforces
// the import prerequisite: at least one exists and every one carries a
// description. Violations fail the run before any model call, because
// every subsequent classification would be meaningless.
func classifiableCategories(categories []types.Category) ([]types.Category, error) {
	var classifiable []types.Category
	for _, c := range categories {
		if c.IsDefault {
			continue
		}
		classifiable = append(classifiable, c)
	}

	if len(classifiable) == 0 {
		return nil, errors.New("no user-defined categories exist; create categories with descriptions before importing")
	}
	for _, c := range classifiable {
		if strings.TrimSpace(c.Description) == "" {
			return nil, fmt.Errorf("category %q has no description; classification needs one", c.Name)
		}
	}

	return classifiable, nil
}

// parseDayEntries splits the import blob on lines that begin with a
// YYYY-MM-DD date. The date token is the entry's date, the rest of the
// segment is that day's free text. Empty segments are discarded.
func parseDayEntries(input string) []dayEntry {
	var entries []dayEntry
	var current *dayEntry

	for _, line := range strings.Split(input, "\n") {
		if dateHeader.MatchString(line) {
			if current != nil {
				appendEntry(&entries, *current)
			}
			current = &dayEntry{Date: dateHeader.FindString(line)}
			if rest := strings.TrimSpace(line[len(current.Date):]); rest != "" {
				current.RawText = rest
			}
			continue
		}
		if current != nil {
			if current.RawText != "" {
				current.RawText += "\n"
			}
			current.RawText += line
		}
	}
	if current != nil {
		appendEntry(&entries, *current)
	}

	return entries
}

func appendEntry(entries *[]dayEntry, e dayEntry) {
	e.RawText = strings.TrimSpace(e.RawText)
	if e.RawText == "" {
		return
	}
	*entries = append(*entries, e)
}

// failureHint distinguishes JSON-shaped failures from transport-shaped
// ones so the operator knows where to look.
func failureHint(err error) string {
	var validationErr *llm.ValidationError
	var syntaxErr *json.SyntaxError
	var refusal *llm.RefusalError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &syntaxErr):
		return "hint: the model returned malformed or non-conforming JSON; a smaller model may not follow the schema"
	case errors.As(err, &refusal):
		return "hint: the model declined this entry; its text may have tripped a content filter"
	case errors.Is(err, llm.ErrTruncated):
		return "hint: the response hit the model's length limit; try a larger context window"
	default:
		return "hint: the model endpoint did not answer; check that it is running and reachable"
	}
}
