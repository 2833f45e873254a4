package corpus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/PopFinder/internal/event"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestDirCorpora(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, RulesFile, "Catalogue\n=== EVENT DATA ===\nKent Fair\n2026-07-04\n=== END EVENT DATA ===")
	writeFile(t, dir, NotesTextFile, "Sold well at Bluewater.")
	writeFile(t, dir, NotesJSONFile, `{"notes": ["Avoid tech expos", {"text": "Try Detling"}, 3]}`)
	writeFile(t, dir, SeedsFile, `[{"title": "Kent County Show", "date": "2026-07-10"}]`)
	writeFile(t, dir, PinsFile, `{"not": "a list"}`)

	c := NewDir(dir, zerolog.Nop())
	ctx := context.Background()

	if got := c.Text(ctx, Rules); !strings.Contains(got, "Kent Fair") {
		t.Errorf("unexpected rules %q", got)
	}
	if got := c.Text(ctx, Notes); got != "Sold well at Bluewater.\nAvoid tech expos\nTry Detling" {
		t.Errorf("unexpected notes %q", got)
	}

	seeds := c.Events(ctx, Seeds)
	if len(seeds) != 1 || seeds[0].Trust != event.TrustSeed {
		t.Errorf("unexpected seeds %+v", seeds)
	}
	if pins := c.Events(ctx, Pins); pins != nil {
		t.Errorf("expected non-list pins to read as empty, got %+v", pins)
	}
	if got := c.Events(ctx, "unknown"); got != nil {
		t.Errorf("expected nil for unknown corpus, got %+v", got)
	}
}

func TestDirCorporaMissing(t *testing.T) {
	c := NewDir(filepath.Join(t.TempDir(), "nope"), zerolog.Nop())
	if got := c.Text(context.Background(), Rules); got != "" {
		t.Errorf("expected empty rules, got %q", got)
	}
	if got := c.Events(context.Background(), Seeds); got != nil {
		t.Errorf("expected no seeds, got %+v", got)
	}
}

func TestRemoteCorpora(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/rules.txt":
			w.Write([]byte("Remote rules"))
		case "/data/pins.json":
			w.Write([]byte(`[{"id": "p1", "title": "Olympia Craft Show", "date": "2026-11-02"}]`))
		case "/data/seed_events.json":
			http.Error(w, "down", http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewRemote(srv.URL+"/data/", time.Second, zerolog.Nop())
	ctx := context.Background()

	if got := c.Text(ctx, Rules); got != "Remote rules" {
		t.Errorf("unexpected rules %q", got)
	}
	if got := c.Text(ctx, Notes); got != "" {
		t.Errorf("expected no notes, got %q", got)
	}
	pins := c.Events(ctx, Pins)
	if len(pins) != 1 || pins[0].ID != "p1" || pins[0].Trust != event.TrustPinned {
		t.Errorf("unexpected pins %+v", pins)
	}
	if got := c.Events(ctx, Seeds); got != nil {
		t.Errorf("expected server error to read as empty, got %+v", got)
	}
}

func TestRemoteCorporaTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	c := NewRemote(srv.URL, 20*time.Millisecond, zerolog.Nop())
	if got := c.Text(context.Background(), Rules); got != "" {
		t.Errorf("expected timeout to read as empty, got %q", got)
	}
}

func TestPinStore(t *testing.T) {
	dir := t.TempDir()
	s := NewPinStore(dir)

	pins, err := s.List()
	if err != nil || len(pins) != 0 {
		t.Fatalf("expected empty store, got %v %v", pins, err)
	}

	a, err := s.Add(event.Candidate{Title: " Bluewater Christmas Market ", Date: "2026-12-01", Trust: event.TrustGenerated, RelevanceScore: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" || a.Trust != event.TrustPinned || a.Title != "Bluewater Christmas Market" {
		t.Errorf("unexpected pin %+v", a)
	}
	b, _ := s.Add(event.Candidate{Title: "Kent Fair", Date: "2026-07-04"})

	if _, err := s.Add(event.Candidate{Title: "  "}); err == nil {
		t.Error("expected error for untitled pin")
	}

	pins, _ = s.List()
	if len(pins) != 2 {
		t.Fatalf("expected 2 pins, got %d", len(pins))
	}

	data, _ := os.ReadFile(filepath.Join(dir, PinsFile))
	if err := ValidateEvents(data); err != nil {
		t.Errorf("stored pins should validate: %v", err)
	}

	removed, err := s.Remove(a.ID)
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	removed, _ = s.Remove("missing")
	if removed {
		t.Error("expected no removal for unknown id")
	}

	pins, _ = s.List()
	if len(pins) != 1 || pins[0].ID != b.ID {
		t.Errorf("unexpected pins after removal %+v", pins)
	}
}

func TestNoteStore(t *testing.T) {
	dir := t.TempDir()
	s := NewNoteStore(dir)

	if err := s.Add("  "); err == nil {
		t.Error("expected error for empty note")
	}
	s.Add("Bluewater footfall is great in December")
	s.Add("Detling parking fills early")

	notes, err := s.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 2 || notes[1] != "Detling parking fills early" {
		t.Errorf("unexpected notes %v", notes)
	}

	got := NewDir(dir, zerolog.Nop()).Text(context.Background(), Notes)
	if !strings.Contains(got, "Bluewater footfall") {
		t.Errorf("expected corpora to read stored notes, got %q", got)
	}
}

func TestValidateEvents(t *testing.T) {
	valid := `[{"title": "Kent Fair", "date": "2026-07-04", "url": "https://kentshowground.co.uk", "footfall_score": 7},
		{"name": "Olympia Show", "vendor_fit_score": "5", "url": ""}]`
	if err := ValidateEvents([]byte(valid)); err != nil {
		t.Errorf("expected valid file, got %v", err)
	}

	invalid := map[string]string{
		"not array":   `{"title": "x"}`,
		"no title":    `[{"date": "2026-07-04"}]`,
		"blank title": `[{"title": "   "}]`,
		"bad url":     `[{"title": "x", "url": "ftp://x"}]`,
		"bad score":   `[{"title": "x", "footfall_score": 11}]`,
		"trailing":    `[] []`,
		"empty":       ``,
	}
	for name, in := range invalid {
		if err := ValidateEvents([]byte(in)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
