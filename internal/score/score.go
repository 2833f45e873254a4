// Package score ranks admitted candidates. Scoring never rejects; every
// candidate gets a positive relevance score built from independent
// sub-scores and a configurable linear weighting.
package score

import (
	"strings"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/textmatch"
	"github.com/TobiSchelling/PopFinder/internal/trust"
)

const (
	regionWildcard = 1.0
	regionHit      = 2.0
	regionMiss     = 0.5

	notesPerToken = 0.25
	notesCap      = 1.0
	minNoteToken  = 3

	pinTitleBoost    = 1.0
	pinLocationBoost = 0.8

	footfallBase  = 4
	footfallVenue = 3
	footfallCrowd = 2
	vendorBase    = 3
	vendorPerWord = 1
)

// Query is what the user asked for.
type Query = event.Query

// Context is the operator history that nudges ranking.
type Context struct {
	Notes string
	Pins  []event.Candidate
}

// Breakdown holds the sub-scores behind a composite score.
type Breakdown struct {
	Region    float64
	Keyword   float64
	Notes     float64
	Pin       float64
	Footfall  int
	VendorFit int
	Total     float64
}

// Scorer computes relevance. It holds no state beyond its rule lists, so
// Score is a pure function of its arguments.
type Scorer struct {
	Rules     config.ScoringRules
	Gazetteer config.Gazetteer
}

// New returns a Scorer over the given heuristics.
func New(h config.Heuristics) Scorer {
	return Scorer{Rules: h.Scoring, Gazetteer: h.Gazetteer}
}

// Score computes the breakdown for c.
func (s Scorer) Score(c event.Candidate, q Query, ctx Context) Breakdown {
	b := Breakdown{
		Region:    s.region(c, q.Region),
		Keyword:   s.keyword(c, q.Keywords),
		Notes:     s.notes(c, ctx.Notes),
		Pin:       pin(c, ctx.Pins),
		Footfall:  c.FootfallScore,
		VendorFit: c.VendorFitScore,
	}
	if b.Footfall < 1 || b.Footfall > 10 {
		b.Footfall = s.footfall(c)
	}
	if b.VendorFit < 1 || b.VendorFit > 10 {
		b.VendorFit = s.vendorFit(c)
	}

	w := s.Rules.Weights
	b.Total = w.Base +
		b.Region*w.Region +
		b.Keyword*w.Keyword +
		b.Notes*w.Notes +
		b.Pin*w.Pin +
		float64(b.Footfall)*w.Footfall +
		float64(b.VendorFit)*w.VendorFit
	return b
}

// Apply scores every admitted candidate and returns scored copies in the
// same order. The input slice is not modified.
func (s Scorer) Apply(items []trust.Admitted, q Query, ctx Context) []trust.Admitted {
	out := make([]trust.Admitted, len(items))
	for i, it := range items {
		b := s.Score(it.Candidate, q, ctx)
		it.Candidate.RelevanceScore = b.Total
		it.Candidate.FootfallScore = b.Footfall
		it.Candidate.VendorFitScore = b.VendorFit
		out[i] = it
	}
	return out
}

func (s Scorer) region(c event.Candidate, region string) float64 {
	region = strings.ToLower(strings.Join(strings.Fields(region), " "))
	if region == "" {
		return regionWildcard
	}
	for _, w := range s.Gazetteer.Wildcards {
		if strings.EqualFold(region, w) {
			return regionWildcard
		}
	}

	synonyms := append([]string{region}, s.Gazetteer.Regions[region]...)
	if textmatch.New(c.Location).HasAny(synonyms) {
		return regionHit
	}
	return regionMiss
}

// keyword is the fraction of distinct query tokens present in the
// candidate's title, description and location.
func (s Scorer) keyword(c event.Candidate, keywords string) float64 {
	want := textmatch.Set(keywords, s.stopWords(), 1)
	if len(want) == 0 {
		return 0
	}
	text := textmatch.New(c.Text())
	found := 0
	for tok := range want {
		if text.HasToken(tok) {
			found++
		}
	}
	return float64(found) / float64(len(want))
}

func (s Scorer) notes(c event.Candidate, notes string) float64 {
	if strings.TrimSpace(notes) == "" {
		return 0
	}
	stop := s.stopWords()
	noteToks := textmatch.Set(notes, stop, minNoteToken)
	boost := 0.0
	for tok := range textmatch.Set(c.Text(), stop, minNoteToken) {
		if _, ok := noteToks[tok]; ok {
			boost += notesPerToken
			if boost >= notesCap {
				return notesCap
			}
		}
	}
	return boost
}

func pin(c event.Candidate, pins []event.Candidate) float64 {
	title := strings.ToLower(c.Title)
	for _, p := range pins {
		if t := strings.ToLower(strings.TrimSpace(p.Title)); t != "" && strings.Contains(title, t) {
			return pinTitleBoost
		}
	}
	loc := strings.ToLower(c.Location)
	for _, p := range pins {
		if l := strings.ToLower(strings.TrimSpace(p.Location)); l != "" && strings.Contains(loc, l) {
			return pinLocationBoost
		}
	}
	return 0
}

func (s Scorer) footfall(c event.Candidate) int {
	text := textmatch.New(c.Title + " " + c.Location)
	n := footfallBase +
		footfallVenue*text.Count(s.Rules.MajorVenues) +
		footfallCrowd*text.Count(s.Rules.LargeGathering)
	return clamp(n)
}

func (s Scorer) vendorFit(c event.Candidate) int {
	text := textmatch.New(c.Title + " " + c.Description)
	return clamp(vendorBase + vendorPerWord*text.Count(s.Rules.VendorKeywords))
}

func (s Scorer) stopWords() map[string]struct{} {
	stop := make(map[string]struct{}, len(s.Rules.StopWords))
	for _, w := range s.Rules.StopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return stop
}

func clamp(n int) int {
	return max(1, min(10, n))
}
