// Package search is the entry point of the reconciliation pipeline. It pulls
// every source, runs the candidates through the trust filter and scorer,
// and merges them into one ranked list.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/corpus"
	"github.com/TobiSchelling/PopFinder/internal/database"
	"github.com/TobiSchelling/PopFinder/internal/dates"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/generate"
	"github.com/TobiSchelling/PopFinder/internal/merge"
	"github.com/TobiSchelling/PopFinder/internal/metrics"
	"github.com/TobiSchelling/PopFinder/internal/parse"
	"github.com/TobiSchelling/PopFinder/internal/score"
	"github.com/TobiSchelling/PopFinder/internal/trust"
)

// ErrInvalidQuery is returned when the region or keywords cannot be used at
// all. It is the only error Search returns for a well-formed engine.
var ErrInvalidQuery = errors.New("invalid query")

const maxQueryRunes = 200

// Source names used in stats, logs and metrics.
const (
	SourcePins      = "pins"
	SourceSeeds     = "seeds"
	SourceCatalogue = "catalogue"
	SourceGenerator = "generator"
)

// Corpora reads the operator files. Both methods fail soft.
type Corpora interface {
	Text(ctx context.Context, name string) string
	Events(ctx context.Context, name string) []event.Candidate
}

// Generator returns raw, untrusted model output for a request.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (string, error)
}

// Collector is a live scraping source.
type Collector interface {
	Name() string
	Collect(ctx context.Context, q event.Query) ([]event.Candidate, error)
}

// History stores a record of each search.
type History interface {
	InsertSearchRun(run database.SearchRun) (int64, error)
}

// SourceStat holds the outcome of one source for one search.
type SourceStat struct {
	Name     string `json:"name"`
	Found    int    `json:"found"`
	Admitted int    `json:"admitted"`
	Err      string `json:"error,omitempty"`
}

// Stats summarizes how a result was assembled.
type Stats struct {
	Sources  []SourceStat   `json:"sources"`
	Rejected map[string]int `json:"rejected"`
	Fallback bool           `json:"fallback"`
	Duration time.Duration  `json:"duration_ns"`
}

// Result is the ranked output of a search.
type Result struct {
	Query  event.Query       `json:"query"`
	Events []event.Candidate `json:"events"`
	Stats  Stats             `json:"stats"`
}

// Engine runs searches. It holds no per-search state and is safe for
// concurrent use.
type Engine struct {
	heuristics    config.Heuristics
	maxResults    int
	sourceTimeout time.Duration
	genTimeout    time.Duration

	corpora    Corpora
	generator  Generator
	collectors []Collector

	now     func() time.Time
	metrics *metrics.Recorder
	history History
	logger  zerolog.Logger
}

type Option func(*Engine)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHistory records every search in h.
func WithHistory(h History) Option {
	return func(e *Engine) { e.history = h }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine. gen may be nil when no generator is configured.
func New(cfg *config.Config, corpora Corpora, gen Generator, collectors []Collector, opts ...Option) *Engine {
	e := &Engine{
		heuristics:    cfg.Heuristics,
		maxResults:    cfg.Search.MaxResults,
		sourceTimeout: cfg.Search.SourceTimeout,
		genTimeout:    cfg.Generator.Timeout,
		corpora:       corpora,
		generator:     gen,
		collectors:    collectors,
		now:           time.Now,
		logger:        zerolog.Nop(),
	}
	if e.sourceTimeout <= 0 {
		e.sourceTimeout = 10 * time.Second
	}
	if e.genTimeout <= 0 {
		e.genTimeout = e.sourceTimeout
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateQuery trims region and keywords and rejects input no source
// could sensibly receive.
func ValidateQuery(region, keywords string) (event.Query, error) {
	q := event.Query{Region: strings.TrimSpace(region), Keywords: strings.TrimSpace(keywords)}
	for name, v := range map[string]string{"region": q.Region, "keywords": q.Keywords} {
		if !utf8.ValidString(v) {
			return q, fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidQuery, name)
		}
		if utf8.RuneCountInString(v) > maxQueryRunes {
			return q, fmt.Errorf("%w: %s longer than %d characters", ErrInvalidQuery, name, maxQueryRunes)
		}
		if strings.IndexFunc(v, unicode.IsControl) >= 0 {
			return q, fmt.Errorf("%w: %s contains control characters", ErrInvalidQuery, name)
		}
	}
	return q, nil
}

// inputs is everything fetched for one search.
type inputs struct {
	rules, notes string
	pins, seeds  []event.Candidate
	generated    string
	genErr       error
	collected    [][]event.Candidate
	collectErrs  []error
}

// Search runs the full pipeline for one query. Source failures never
// surface here; only ErrInvalidQuery does.
func (e *Engine) Search(ctx context.Context, region, keywords string) (*Result, error) {
	q, err := ValidateQuery(region, keywords)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	now := e.now()

	in := e.fetch(ctx, q, now)

	filter := trust.Filter{Dates: dates.New(now), Rules: e.heuristics.Trust}
	scorer := score.New(e.heuristics)
	sctx := score.Context{Notes: in.notes, Pins: in.pins}
	stats := Stats{Rejected: make(map[string]int)}

	admit := func(name string, t event.Trust, cands []event.Candidate, srcErr error) merge.Tagged {
		kept, rejected := filter.Apply(stamp(cands, t))
		for _, r := range rejected {
			stats.Rejected[string(r.Reason)]++
			e.metrics.AddRejection(string(r.Reason))
		}
		st := SourceStat{Name: name, Found: len(cands), Admitted: len(kept)}
		if srcErr != nil {
			st.Err = srcErr.Error()
			e.metrics.SourceError(name)
		}
		stats.Sources = append(stats.Sources, st)
		e.metrics.AddCandidates(name, len(cands))
		return merge.Tagged{Trust: t, Items: scorer.Apply(kept, q, sctx)}
	}

	lists := []merge.Tagged{
		admit(SourcePins, event.TrustPinned, in.pins, nil),
		admit(SourceSeeds, event.TrustSeed, in.seeds, nil),
		admit(SourceCatalogue, event.TrustCatalogue, parse.Catalogue(in.rules, event.TrustCatalogue, e.heuristics.Gazetteer), nil),
	}

	generated, genErr := e.parseGenerated(in)
	lists = append(lists, admit(SourceGenerator, event.TrustGenerated, generated, genErr))
	stats.Fallback = genErr != nil

	for i, c := range e.collectors {
		lists = append(lists, admit(c.Name(), event.TrustScraped, in.collected[i], in.collectErrs[i]))
	}

	events := merge.Merge(e.maxResults, lists...)
	if events == nil {
		events = []event.Candidate{}
	}
	stats.Duration = time.Since(start)

	res := &Result{Query: q, Events: events, Stats: stats}
	e.record(res)
	return res, nil
}

// fetch pulls every source. Corpora and collectors run concurrently; the
// generator starts once the corpora it is prompted with have arrived.
func (e *Engine) fetch(ctx context.Context, q event.Query, now time.Time) *inputs {
	in := &inputs{
		collected:   make([][]event.Candidate, len(e.collectors)),
		collectErrs: make([]error, len(e.collectors)),
	}

	var sources errgroup.Group
	for i, c := range e.collectors {
		sources.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
			defer cancel()
			found, err := c.Collect(sctx, q)
			if err != nil {
				e.logger.Warn().Err(err).Str("source", c.Name()).Msg("collector failed")
				in.collectErrs[i] = err
				return nil
			}
			in.collected[i] = found
			return nil
		})
	}

	var corpora errgroup.Group
	withTimeout := func(f func(ctx context.Context)) {
		corpora.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
			defer cancel()
			f(cctx)
			return nil
		})
	}
	if e.corpora != nil {
		withTimeout(func(ctx context.Context) { in.rules = e.corpora.Text(ctx, corpus.Rules) })
		withTimeout(func(ctx context.Context) { in.notes = e.corpora.Text(ctx, corpus.Notes) })
		withTimeout(func(ctx context.Context) { in.pins = e.corpora.Events(ctx, corpus.Pins) })
		withTimeout(func(ctx context.Context) { in.seeds = e.corpora.Events(ctx, corpus.Seeds) })
	}
	_ = corpora.Wait()

	if e.generator != nil {
		sources.Go(func() error {
			gctx, cancel := context.WithTimeout(ctx, e.genTimeout)
			defer cancel()
			in.generated, in.genErr = e.generator.Generate(gctx, generate.Request{
				Region:   q.Region,
				Keywords: q.Keywords,
				Today:    now,
				Rules:    in.rules,
				Notes:    in.notes,
				Pins:     in.pins,
				Seeds:    in.seeds,
			})
			if in.genErr != nil {
				e.logger.Warn().Err(in.genErr).Msg("generator unavailable")
			}
			return nil
		})
	}
	_ = sources.Wait()
	return in
}

// parseGenerated decodes generator output. A missing generator, a failed
// call or malformed output all yield no candidates and a non-nil error.
func (e *Engine) parseGenerated(in *inputs) ([]event.Candidate, error) {
	if e.generator == nil {
		return nil, errors.New("no generator configured")
	}
	if in.genErr != nil {
		return nil, in.genErr
	}
	cands, err := parse.GeneratorOutput(in.generated)
	if err != nil {
		e.logger.Warn().Err(err).Msg("discarding generator output")
		return nil, err
	}
	return cands, nil
}

func (e *Engine) record(res *Result) {
	rejected := 0
	counts := make(map[string]int, len(res.Stats.Sources))
	for _, n := range res.Stats.Rejected {
		rejected += n
	}
	for _, s := range res.Stats.Sources {
		counts[s.Name] = s.Admitted
	}

	e.metrics.ObserveSearch(res.Stats.Duration, len(res.Events), res.Stats.Fallback)
	e.logger.Info().
		Str("region", res.Query.Region).
		Str("keywords", res.Query.Keywords).
		Int("results", len(res.Events)).
		Int("rejected", rejected).
		Bool("fallback", res.Stats.Fallback).
		Dur("took", res.Stats.Duration).
		Msg("search complete")

	if e.history == nil {
		return
	}
	_, err := e.history.InsertSearchRun(database.SearchRun{
		Region:        res.Query.Region,
		Keywords:      res.Query.Keywords,
		ResultCount:   len(res.Events),
		RejectedCount: rejected,
		Fallback:      res.Stats.Fallback,
		SourceCounts:  counts,
		DurationMS:    res.Stats.Duration.Milliseconds(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to record search run")
	}
}

// stamp returns a copy of cands carrying trust t, so a source cannot claim
// more trust than it is given.
func stamp(cands []event.Candidate, t event.Trust) []event.Candidate {
	out := make([]event.Candidate, len(cands))
	for i, c := range cands {
		c.Trust = t
		out[i] = c
	}
	return out
}
