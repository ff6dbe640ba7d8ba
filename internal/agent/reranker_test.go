package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperengineering/daybook/internal/llm"
	"github.com/hyperengineering/daybook/internal/types"
)

func makeActivities(n int) []types.Activity {
	activities := make([]types.Activity, n)
	for i := range activities {
		activities[i] = types.Activity{
			ID:          fmt.Sprintf("act-%02d", i),
			Description: fmt.Sprintf("activity %d", i),
		}
	}
	return activities
}

func rankedJSON(ids ...string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf(`{"ranked_ids":[%s]}`, strings.Join(quoted, ","))
}

func TestRerankEmptyInput(t *testing.T) {
	gen := &fakeGenerator{reply: staticReply("", errors.New("must not be called"))}
	got := NewReranker(gen).Rerank(context.Background(), "q", nil)

	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	if gen.calls() != 0 {
		t.Errorf("expected no model calls, got %d", gen.calls())
	}
}

func TestRerankBatches(t *testing.T) {
	candidates := makeActivities(25)

	// Each batch returns its last two ids reversed.
	gen := &fakeGenerator{reply: func(req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "id: act-00"):
			return rankedJSON("act-09", "act-08"), nil
		case strings.Contains(req.Prompt, "id: act-10"):
			return rankedJSON("act-19", "act-18"), nil
		default:
			return rankedJSON("act-24", "act-23"), nil
		}
	}}

	got := NewReranker(gen).Rerank(context.Background(), "q", candidates)

	if gen.calls() != 3 {
		t.Fatalf("expected 3 batch calls, got %d", gen.calls())
	}
	wantOrder := []string{"act-09", "act-08", "act-19", "act-18", "act-24", "act-23"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d results, got %d", len(wantOrder), len(got))
	}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestRerankDropsUnknownAndDuplicateIDs(t *testing.T) {
	candidates := makeActivities(3)
	gen := &fakeGenerator{reply: staticReply(rankedJSON("act-02", "act-99", "act-02", "act-00"), nil)}

	got := NewReranker(gen).Rerank(context.Background(), "q", candidates)

	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].ID != "act-02" || got[1].ID != "act-00" {
		t.Errorf("unexpected order %s, %s", got[0].ID, got[1].ID)
	}
}

func TestRerankFailedBatchDropped(t *testing.T) {
	candidates := makeActivities(20)

	gen := &fakeGenerator{reply: func(req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "id: act-00") {
			return "", errors.New("timeout")
		}
		return rankedJSON("act-12", "act-11"), nil
	}}

	got := NewReranker(gen).Rerank(context.Background(), "q", candidates)

	// First batch's candidates are gone entirely.
	for _, a := range got {
		if a.ID < "act-10" {
			t.Errorf("candidate %s from the failed batch survived", a.ID)
		}
	}
	if len(got) != 2 {
		t.Errorf("expected 2 results, got %d", len(got))
	}
}

func TestRerankFallbackWhenAllBatchesFail(t *testing.T) {
	candidates := makeActivities(30)
	gen := &fakeGenerator{reply: staticReply("", errors.New("down"))}

	got := NewReranker(gen).Rerank(context.Background(), "q", candidates)

	if len(got) != rerankFallbackLimit {
		t.Fatalf("expected fallback of %d, got %d", rerankFallbackLimit, len(got))
	}
	// Original order.
	for i, a := range got {
		if a.ID != candidates[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, candidates[i].ID, a.ID)
		}
	}
}

func TestRerankFallbackWhenModelRanksNothing(t *testing.T) {
	candidates := makeActivities(5)
	gen := &fakeGenerator{reply: staticReply(rankedJSON(), nil)}

	got := NewReranker(gen).Rerank(context.Background(), "q", candidates)

	if len(got) != 5 {
		t.Fatalf("expected all 5 candidates back, got %d", len(got))
	}
}
