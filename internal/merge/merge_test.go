package merge

import (
	"fmt"
	"testing"
	"time"

	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/trust"
)

func admitted(title, date, loc string, tr event.Trust, score float64) trust.Admitted {
	d, _ := time.Parse("2006-01-02", date)
	return trust.Admitted{
		Candidate: event.Candidate{Title: title, Date: date, Location: loc, Trust: tr, RelevanceScore: score},
		Date:      d,
	}
}

func TestMergePriorityWinsDuplicates(t *testing.T) {
	generated := Tagged{Trust: event.TrustGenerated, Items: []trust.Admitted{
		admitted("KENT CRAFT MARKET ", "2026-07-04", "Detling", event.TrustGenerated, 12),
	}}
	seed := Tagged{Trust: event.TrustSeed, Items: []trust.Admitted{
		admitted("Kent Craft Market", "2026-07-04", "detling", event.TrustSeed, 3),
	}}
	pinned := Tagged{Trust: event.TrustPinned, Items: []trust.Admitted{
		admitted("kent  craft market", "2026-07-04", "Detling", event.TrustPinned, 1),
	}}

	got := Merge(0, generated, seed, pinned)
	if len(got) != 1 {
		t.Fatalf("expected 1 event after dedup, got %d", len(got))
	}
	if got[0].Trust != event.TrustPinned {
		t.Errorf("expected pinned record to win, got %s", got[0].Trust)
	}
}

func TestMergeOrdering(t *testing.T) {
	list := Tagged{Trust: event.TrustScraped, Items: []trust.Admitted{
		admitted("Later", "2026-09-01", "", event.TrustScraped, 5),
		{Candidate: event.Candidate{Title: "Undated", RelevanceScore: 5}},
		admitted("Sooner", "2026-07-01", "", event.TrustScraped, 5),
		admitted("Best", "2026-12-01", "", event.TrustScraped, 9),
	}}

	got := Merge(10, list)
	want := []string{"Best", "Sooner", "Later", "Undated"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, title := range want {
		if got[i].Title != title {
			t.Errorf("position %d: expected %q, got %q", i, title, got[i].Title)
		}
	}
}

func TestMergeTruncates(t *testing.T) {
	var items []trust.Admitted
	for i := range 60 {
		items = append(items, admitted(fmt.Sprintf("Event %d", i), "2026-08-01", "", event.TrustGenerated, float64(i)))
	}

	if got := Merge(0, Tagged{Trust: event.TrustGenerated, Items: items}); len(got) != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, len(got))
	}
	got := Merge(5, Tagged{Trust: event.TrustGenerated, Items: items})
	if len(got) != 5 || got[0].Title != "Event 59" {
		t.Errorf("expected top 5 by score, got %+v", got)
	}
}

func TestMergeKeepsDistinctDates(t *testing.T) {
	got := Merge(0, Tagged{Trust: event.TrustSeed, Items: []trust.Admitted{
		admitted("Kent Fair", "2026-07-04", "Detling", event.TrustSeed, 1),
		admitted("Kent Fair", "2026-07-05", "Detling", event.TrustSeed, 1),
	}})
	if len(got) != 2 {
		t.Errorf("different dates are different events, got %d", len(got))
	}
}
