package llm

import (
	"fmt"
	"strings"

	"github.com/hyperengineering/daybook/internal/types"
)

// Prompt builders are pure: typed inputs in, one instruction string out.
// Every prompt ends with the JSON-only instruction and the inlined schema
// the decoder will enforce.

// maxNoteChars bounds how much of an activity's notes the reranker prompt
// carries, so prompt size stays proportional to batch size.
const maxNoteChars = 200

// PlannerPrompt renders the keyword extraction instruction for a query.
func PlannerPrompt(query string) string {
	var b strings.Builder
	b.WriteString("You extract search keywords from questions about a personal activity journal.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString("Extract 3 to 7 generic search keywords that would match journal activity ")
	b.WriteString("descriptions, notes, or tags. Use content words only: no conversational ")
	b.WriteString("filler, no question words, no punctuation. Single words or short phrases.\n\n")
	writeSchemaFooter(&b, SearchTermsSchema)
	return b.String()
}

// RerankPrompt renders the relevance-ranking instruction for one batch of
// candidate activities. Candidates are projected compactly (id,
// description, truncated notes) to bound prompt size.
func RerankPrompt(query string, candidates []types.Activity) string {
	var b strings.Builder
	b.WriteString("You rank journal activities by relevance to a question.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nCandidate activities:\n")
	for _, a := range candidates {
		fmt.Fprintf(&b, "- id: %s | %s", a.ID, a.Description)
		if a.Notes != nil && *a.Notes != "" {
			fmt.Fprintf(&b, " | notes: %s", truncate(*a.Notes, maxNoteChars))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReturn the ids of the relevant activities ordered most relevant first. ")
	b.WriteString("Omit irrelevant activities. Return an empty list if none are relevant.\n\n")
	writeSchemaFooter(&b, RerankSchema)
	return b.String()
}

// ImportPrompt renders the extraction+classification instruction for one
// day's raw journal text. Only the supplied categories are legal
// classification targets.
func ImportPrompt(date, rawText string, categories []types.Category) string {
	var b strings.Builder
	b.WriteString("You extract structured activities from one day of a personal journal.\n\n")
	fmt.Fprintf(&b, "Date: %s\nJournal text:\n%s\n\n", date, rawText)
	b.WriteString("Available categories (classify every activity to exactly one categoryId from this list, never invent an id):\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- id: %s | name: %s | description: %s\n", c.ID, c.Name, c.Description)
	}
	b.WriteString("\nFor each distinct activity in the text, extract:\n")
	b.WriteString("- description: a concise statement of what was done\n")
	b.WriteString("- duration: the time spent normalized to minutes (e.g. 1.5h becomes 90), or null when the text gives none; never guess\n")
	b.WriteString("- notes: extra detail from the text, or null\n")
	b.WriteString("- tags: a comma-separated string of 1-3 short lowercase topic tags\n")
	b.WriteString("- categoryId: the id of the best-matching category above\n\n")
	writeSchemaFooter(&b, ImportSchema)
	return b.String()
}

// SummaryPrompt renders the answer-synthesis instruction for a query and
// its ranked activities.
func SummaryPrompt(query string, activities []types.Activity) string {
	var b strings.Builder
	b.WriteString("You answer questions about a personal activity journal using only the supplied context.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nContext activities:\n")
	writeActivityContext(&b, activities)
	b.WriteString("\nWrite a structured answer grounded strictly in the context above. ")
	b.WriteString("Do not introduce any information that is not present in the context. ")
	b.WriteString("Include a timeSpent block only when the context contains durations.\n\n")
	writeSchemaFooter(&b, SummarySchema)
	return b.String()
}

// WeeklyReportPrompt renders the weekly report instruction for a week of
// activities.
func WeeklyReportPrompt(activities []types.Activity) string {
	var b strings.Builder
	b.WriteString("You write a structured weekly report from one week of journal activities.\n\n")
	b.WriteString("Activities this week:\n")
	writeActivityContext(&b, activities)
	b.WriteString("\nProduce:\n")
	b.WriteString("- timeAnalysis: total minutes and minutes per professional/project/life category groups, plus a breakdownRatio string\n")
	b.WriteString("- keyActivities: the 3-5 most significant activities, most significant first\n")
	b.WriteString("- tagAnalysis: 3-7 tags with total minutes and occurrence count\n")
	b.WriteString("- insightsAndTrends: free-text observations about the week\n")
	b.WriteString("Use only the activities supplied above.\n\n")
	writeSchemaFooter(&b, WeeklyReportSchema)
	return b.String()
}

// writeActivityContext writes the full textual projection of activities
// used by the synthesis prompts.
func writeActivityContext(b *strings.Builder, activities []types.Activity) {
	for _, a := range activities {
		fmt.Fprintf(b, "- [%s] %s | %s", a.Date, a.CategoryName, a.Description)
		if a.DurationMinutes != nil {
			fmt.Fprintf(b, " | %d min", *a.DurationMinutes)
		}
		if len(a.Tags) > 0 {
			fmt.Fprintf(b, " | tags: %s", strings.Join(a.Tags, ", "))
		}
		if a.Notes != nil && *a.Notes != "" {
			fmt.Fprintf(b, " | notes: %s", *a.Notes)
		}
		b.WriteString("\n")
	}
}

func writeSchemaFooter(b *strings.Builder, schema Schema) {
	b.WriteString("Respond with JSON only, no markdown and no commentary, conforming to this JSON Schema:\n")
	b.WriteString(schema.JSON())
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
