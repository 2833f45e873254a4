package parse

import (
	"errors"
	"strings"
	"testing"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
)

func gazetteer() config.Gazetteer {
	return config.DefaultHeuristics().Gazetteer
}

func collect(text string) []event.Candidate {
	var out []event.Candidate
	for c := range Blocks(text, gazetteer()) {
		out = append(out, c)
	}
	return out
}

func TestBlocksRoundTrip(t *testing.T) {
	got := collect("Kent Summer Fair\n2026-07-04\nLOCATION: Detling Showground\nhttps://kenteventcentre.co.uk/fair")
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.Title != "Kent Summer Fair" {
		t.Errorf("expected title 'Kent Summer Fair', got %q", c.Title)
	}
	if !strings.Contains(c.Date, "2026-07-04") {
		t.Errorf("expected date to contain 2026-07-04, got %q", c.Date)
	}
	if c.URL != "https://kenteventcentre.co.uk/fair" {
		t.Errorf("unexpected url %q", c.URL)
	}
	if c.Location != "Detling Showground" {
		t.Errorf("expected labelled location, got %q", c.Location)
	}
}

func TestBlocksMultiple(t *testing.T) {
	text := `- Bluewater Christmas Market
Sat 5th Dec 2026
Stalls by the winter garden, Bluewater, Dartford.
Book at www.bluewater.co.uk/events.

ok

## TITLE: Olympia Craft Show
Olympia London
No dates announced

Connect Festival
Connect hall, pop-up stalls welcome`

	got := collect(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates (short block dropped), got %d: %+v", len(got), got)
	}

	if got[0].Title != "Bluewater Christmas Market" {
		t.Errorf("bullet not stripped: %q", got[0].Title)
	}
	if got[0].Date != "Sat 5th Dec 2026" {
		t.Errorf("unexpected date %q", got[0].Date)
	}
	if got[0].Location != "Stalls by the winter garden, Bluewater, Dartford." {
		t.Errorf("unexpected location %q", got[0].Location)
	}
	if got[0].URL != "https://www.bluewater.co.uk/events" {
		t.Errorf("unexpected url %q", got[0].URL)
	}

	if got[1].Title != "Olympia Craft Show" {
		t.Errorf("label not stripped: %q", got[1].Title)
	}
	if got[1].Date != "" {
		t.Errorf("expected no date, got %q", got[1].Date)
	}
	if got[1].Location != "Olympia London" {
		t.Errorf("unexpected location %q", got[1].Location)
	}
	if got[1].Description != "Olympia London No dates announced" {
		t.Errorf("unexpected description %q", got[1].Description)
	}

	// "nec" must not be found inside "Connect".
	if got[2].Location != "" {
		t.Errorf("expected no location, got %q", got[2].Location)
	}
}

func TestBlocksStopsEarly(t *testing.T) {
	n := 0
	for range Blocks("First Event\n\nSecond Event\n\nThird Event", gazetteer()) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("expected to stop after 2, got %d", n)
	}
}

func TestBlocksNeverPanics(t *testing.T) {
	for _, in := range []string{"", "\n\n\n", "a", "  \t ", "x\r\n\r\ny", "TITLE:\nDATE:", "===", "http://"} {
		_ = collect(in)
	}
}

func TestEventSection(t *testing.T) {
	text := "Rules go here\n=== Event Data ===\nKent Fair\n2026-07-04\n=== END EVENT DATA ===\nFooter"
	got := strings.TrimSpace(EventSection(text))
	if got != "Kent Fair\n2026-07-04" {
		t.Errorf("unexpected section %q", got)
	}

	if EventSection("no markers") != "no markers" {
		t.Error("expected whole text without markers")
	}
	if got := strings.TrimSpace(EventSection("=== EVENT DATA ===\nOpen ended")); got != "Open ended" {
		t.Errorf("expected open-ended section, got %q", got)
	}
}

func TestCatalogueStampsTrust(t *testing.T) {
	got := Catalogue("Intro text that is not an event\n=== EVENT DATA ===\nKent Fair\n2026-07-04\n=== END EVENT DATA ===", event.TrustCatalogue, gazetteer())
	if len(got) != 1 || got[0].Trust != event.TrustCatalogue {
		t.Errorf("unexpected catalogue result: %+v", got)
	}
}

func TestGeneratorOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"array", `[{"title": "A Fair", "date": "2026-07-04"}, {"title": "B Market"}]`, 2},
		{"fenced", "```json\n[{\"title\": \"A Fair\"}]\n```", 1},
		{"plain fence", "```\n[{\"title\": \"A Fair\"}]\n```", 1},
		{"wrapped", `{"events": [{"title": "A Fair"}]}`, 1},
		{"single", `{"title": "A Fair", "url": "https://excel.london"}`, 1},
		{"chatter", "Here are the events:\n[{\"title\": \"A Fair\"}]\nEnjoy!", 1},
	}
	for _, tt := range tests {
		got, err := GeneratorOutput(tt.raw)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if len(got) != tt.want {
			t.Errorf("%s: expected %d candidates, got %d", tt.name, tt.want, len(got))
		}
		for _, c := range got {
			if c.Trust != event.TrustGenerated {
				t.Errorf("%s: expected generated trust, got %q", tt.name, c.Trust)
			}
		}
	}
}

func TestGeneratorOutputMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "```\n```", "I could not find any events.", `{"events": "none"}`, "[1, 2"} {
		if _, err := GeneratorOutput(raw); !errors.Is(err, ErrMalformedOutput) {
			t.Errorf("%q: expected ErrMalformedOutput, got %v", raw, err)
		}
	}
}
