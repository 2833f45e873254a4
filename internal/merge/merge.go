// Package merge combines scored candidate lists from several sources into
// one bounded, ordered result.
package merge

import (
	"cmp"
	"slices"

	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/trust"
)

// DefaultLimit bounds the result when no positive limit is given.
const DefaultLimit = 40

// Tagged is one source's admitted candidates with the trust level that sets
// its priority.
type Tagged struct {
	Trust event.Trust
	Items []trust.Admitted
}

// Merge concatenates lists in source priority order (pinned, seed, then
// everything else in the order given), keeps the first candidate seen for
// each identity key, sorts by descending relevance then ascending date with
// undated candidates last, and truncates to limit.
func Merge(limit int, lists ...Tagged) []event.Candidate {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ordered := slices.Clone(lists)
	slices.SortStableFunc(ordered, func(a, b Tagged) int {
		return cmp.Compare(a.Trust.Priority(), b.Trust.Priority())
	})

	seen := make(map[event.Key]struct{})
	var unique []trust.Admitted
	for _, list := range ordered {
		for _, it := range list.Items {
			k := it.Candidate.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			unique = append(unique, it)
		}
	}

	slices.SortStableFunc(unique, func(a, b trust.Admitted) int {
		if c := cmp.Compare(b.Candidate.RelevanceScore, a.Candidate.RelevanceScore); c != 0 {
			return c
		}
		switch {
		case a.Date.IsZero() && b.Date.IsZero():
			return 0
		case a.Date.IsZero():
			return 1
		case b.Date.IsZero():
			return -1
		}
		return a.Date.Compare(b.Date)
	})

	if len(unique) > limit {
		unique = unique[:limit]
	}
	out := make([]event.Candidate, len(unique))
	for i, it := range unique {
		out[i] = it.Candidate
	}
	return out
}
