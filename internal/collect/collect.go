// Package collect scrapes live event listings from third-party sites:
// HTML listing pages, RSS/Atom feeds, free-text pages and a web search API.
// Everything it returns carries scraped trust and must pass the trust filter.
package collect

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
)

// Collector is one live source.
type Collector interface {
	Name() string
	Collect(ctx context.Context, q event.Query) ([]event.Candidate, error)
}

// Result holds the results of a warm-up run across all collectors.
type Result struct {
	TotalFound int
	Failed     int
	Sources    map[string]int
}

// FromConfig builds every collector cfg describes. The search API collector
// is only included when it is enabled. ex serves pages configured with
// extract: llm and may be nil.
func FromConfig(cfg config.Collectors, f *Fetcher, g config.Gazetteer, ex Extractor, logger zerolog.Logger) []Collector {
	var out []Collector
	for _, src := range cfg.Cards {
		out = append(out, NewCardCollector(src, f))
	}
	if len(cfg.Feeds) > 0 {
		out = append(out, NewFeedCollector(cfg.Feeds, f, logger))
	}
	for _, p := range cfg.Pages {
		if strings.EqualFold(p.Extract, "llm") && ex == nil {
			logger.Warn().Str("page", p.URL).Msg("no LLM provider for page extraction, parsing text blocks instead")
		}
		out = append(out, NewPageCollector(p, f, g, ex))
	}
	if cfg.SearchAPI.Enabled {
		out = append(out, NewSearchAPICollector(cfg.SearchAPI, f, logger))
	}
	return out
}

// Warm runs every collector for each region with no keywords so that the
// fetch cache is populated before users search.
func Warm(ctx context.Context, collectors []Collector, regions []string, logger zerolog.Logger) *Result {
	r := &Result{Sources: make(map[string]int)}
	for _, region := range regions {
		q := event.Query{Region: region}
		for _, c := range collectors {
			if ctx.Err() != nil {
				return r
			}
			found, err := c.Collect(ctx, q)
			if err != nil {
				r.Failed++
				logger.Warn().Err(err).Str("collector", c.Name()).Str("region", region).Msg("warm-up failed")
				continue
			}
			r.TotalFound += len(found)
			r.Sources[c.Name()] += len(found)
		}
	}
	logger.Info().Int("found", r.TotalFound).Int("failed", r.Failed).Msg("collector warm-up complete")
	return r
}

// expand fills the {region} and {query} placeholders of a URL template with
// slugs. An empty query becomes "events".
func expand(tmpl string, q event.Query) string {
	query := slug(q.Keywords)
	if query == "" {
		query = "events"
	}
	r := strings.NewReplacer("{region}", slug(q.Region), "{query}", query)
	return r.Replace(tmpl)
}

// fill is expand for free-text templates such as search queries.
func fill(tmpl string, q event.Query) string {
	r := strings.NewReplacer("{region}", strings.TrimSpace(q.Region), "{query}", strings.TrimSpace(q.Keywords))
	return strings.Join(strings.Fields(r.Replace(tmpl)), " ")
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
