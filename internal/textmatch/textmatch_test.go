package textmatch

import (
	"reflect"
	"testing"
)

func TestTokens(t *testing.T) {
	got := Tokens("Kent Craft-Market, Detling (2026)!")
	want := []string{"kent", "craft", "market", "detling", "2026"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestHasRespectsWordBoundaries(t *testing.T) {
	text := New("Connect Expo at the Manchester Central hall")

	if text.Has("nec") {
		t.Error("'nec' must not match inside 'connect'")
	}
	if !text.Has("manchester central") {
		t.Error("expected multi-word phrase to match")
	}
	if text.Has("central manchester") {
		t.Error("phrase tokens must be contiguous and ordered")
	}
	if text.Has("") {
		t.Error("empty phrase never matches")
	}
}

func TestCountDistinct(t *testing.T) {
	text := New("Christmas market and food market at Bluewater")
	if got := text.Count([]string{"market", "food", "Market", "craft"}); got != 2 {
		t.Errorf("expected 2 distinct matches, got %d", got)
	}
	if !text.HasAny([]string{"craft", "bluewater"}) {
		t.Error("expected HasAny to match bluewater")
	}
}

func TestSet(t *testing.T) {
	stop := map[string]struct{}{"the": {}}
	got := Set("The big craft fair at the NEC", stop, 3)
	for _, tok := range []string{"big", "craft", "fair", "nec"} {
		if _, ok := got[tok]; !ok {
			t.Errorf("expected %q in set", tok)
		}
	}
	if _, ok := got["the"]; ok {
		t.Error("stop word should be removed")
	}
	if _, ok := got["at"]; ok {
		t.Error("short token should be removed")
	}
}
