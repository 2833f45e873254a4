package dates

import (
	"testing"
	"time"
)

func fixed() Normalizer {
	return New(time.Date(2026, time.June, 15, 14, 30, 0, 0, time.UTC))
}

func TestNormalizeStrictISO(t *testing.T) {
	n := fixed()

	tests := []struct {
		raw  string
		kind Kind
		want string
	}{
		{"2026-07-04", Future, "2026-07-04"},
		{"2026-06-15", Future, "2026-06-15"},
		{"2026-07-04 to 2026-07-06", Future, "2026-07-04"},
		{"2026-07-04, Saturday", Future, "2026-07-04"},
		{"2024-01-01", Past, "2024-01-01"},
		{"2026-06-14", Past, "2026-06-14"},
	}
	for _, tt := range tests {
		got := n.Normalize(tt.raw)
		if got.Kind != tt.kind {
			t.Errorf("%q: expected %s, got %s", tt.raw, tt.kind, got.Kind)
			continue
		}
		if got.Date.Format("2006-01-02") != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.raw, tt.want, got.Date.Format("2006-01-02"))
		}
		if got.Fuzzy {
			t.Errorf("%q: strict ISO should not be fuzzy", tt.raw)
		}
	}
}

func TestNormalizeFuzzy(t *testing.T) {
	n := fixed()

	tests := []struct {
		raw  string
		kind Kind
		want string
	}{
		{"2–3 Dec 2026", Future, "2026-12-02"},
		{"2-3 December 2026", Future, "2026-12-02"},
		{"Sat 4th Jul 2026", Future, "2026-07-04"},
		{"4 July 2026", Future, "2026-07-04"},
		{"July 4, 2026", Future, "2026-07-04"},
		{"Opens 04/07/2026", Future, "2026-07-04"},
		{"Weekend of 2026-08-01", Future, "2026-08-01"},
		{"Dec 2026", Future, "2026-12-01"},
		{"June 2026", Future, "2026-06-15"},
		{"May 2026", Past, "2026-05-01"},
		{"Kent County Show 2026, dates TBC", Future, "2026-06-15"},
		{"2027 season", Future, "2027-01-01"},
		{"3 March 2025", Past, "2025-03-03"},
		{"county show 2024", Past, "2024-12-31"},
	}
	for _, tt := range tests {
		got := n.Normalize(tt.raw)
		if got.Kind != tt.kind {
			t.Errorf("%q: expected %s, got %s", tt.raw, tt.kind, got.Kind)
			continue
		}
		if got.Date.Format("2006-01-02") != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.raw, tt.want, got.Date.Format("2006-01-02"))
		}
		if !got.Fuzzy {
			t.Errorf("%q: expected fuzzy result", tt.raw)
		}
	}
}

func TestNormalizeUnparseable(t *testing.T) {
	n := fixed()
	for _, raw := range []string{"", "   ", "TBC", "every weekend", "1500 visitors",
		"2026-02-30", "2026-13-01", "2025-13-45 county show", "from 2026-06-31 onwards"} {
		if got := n.Normalize(raw); got.Kind != Unparseable {
			t.Errorf("%q: expected unparseable, got %s", raw, got.Kind)
		}
	}
}

func TestNormalizeImpossibleDayFallsBackToMonth(t *testing.T) {
	got := fixed().Normalize("31 June 2026")
	if got.Kind != Future || got.Date.Format("2006-01-02") != "2026-06-15" {
		t.Errorf("expected month-year fallback, got %s %s", got.Kind, got.Date)
	}
}

func TestNormalizeDoesNotDependOnTimeOfDay(t *testing.T) {
	n := Normalizer{Today: time.Date(2026, time.June, 15, 23, 59, 0, 0, time.UTC)}
	if got := n.Normalize("2026-06-15"); got.Kind != Future {
		t.Errorf("today must count as future, got %s", got.Kind)
	}
}

