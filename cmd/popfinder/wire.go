package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TobiSchelling/PopFinder/internal/cache"
	"github.com/TobiSchelling/PopFinder/internal/collect"
	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/corpus"
	"github.com/TobiSchelling/PopFinder/internal/database"
	"github.com/TobiSchelling/PopFinder/internal/generate"
	"github.com/TobiSchelling/PopFinder/internal/llm"
	"github.com/TobiSchelling/PopFinder/internal/metrics"
	"github.com/TobiSchelling/PopFinder/internal/search"
)

// app is everything a search needs, built from the loaded config.
type app struct {
	db         *database.DB
	cache      cache.Cache
	corpora    *corpus.Corpora
	collectors []collect.Collector
	engine     *search.Engine
}

// buildApp wires the search engine. A nil reg disables metrics.
func buildApp(reg prometheus.Registerer) (*app, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}

	c, err := openCache(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	var corpora *corpus.Corpora
	if cfg.Corpora.BaseURL != "" {
		corpora = corpus.NewRemote(cfg.Corpora.BaseURL, cfg.Corpora.Timeout, logger)
	} else {
		corpora = corpus.NewDir(cfg.GetCorporaDir(), logger)
	}

	var provider llm.Provider
	if cfg.Generator.Enabled || extractsPages(cfg.Collectors.Pages) {
		provider = llm.CreateProvider(cfg.Generator)
	}

	// Typed nils must not reach the engine or collectors as non-nil interfaces.
	var gen search.Generator
	var extractor collect.Extractor
	if provider != nil {
		if cfg.Generator.Enabled {
			gen = generate.New(provider, cfg.Generator.MaxTokens, c, cfg.Cache.GeneratorTTL, logger)
		}
		extractor = generate.NewPageExtractor(provider, cfg.Generator.MaxTokens, c, cfg.Cache.CollectorTTL, logger)
	} else if cfg.Generator.Enabled {
		logger.Warn().Str("provider", cfg.Generator.Provider).Msg("generator not configured, using corpora and collectors only")
	}

	fetcher := collect.NewFetcher(cfg.Collectors, c, cfg.Cache.CollectorTTL, logger)
	collectors := collect.FromConfig(cfg.Collectors, fetcher, cfg.Heuristics.Gazetteer, extractor, logger)
	sources := make([]search.Collector, 0, len(collectors))
	for _, col := range collectors {
		sources = append(sources, col)
	}

	opts := []search.Option{search.WithLogger(logger), search.WithHistory(db)}
	if reg != nil {
		opts = append(opts, search.WithMetrics(metrics.NewRecorder(reg)))
	}

	return &app{
		db:         db,
		cache:      c,
		corpora:    corpora,
		collectors: collectors,
		engine:     search.New(cfg, corpora, gen, sources, opts...),
	}, nil
}

func (a *app) Close() {
	if r, ok := a.cache.(*cache.Redis); ok {
		r.Close()
	}
	a.db.Close()
}

func extractsPages(pages []config.Page) bool {
	for _, p := range pages {
		if strings.EqualFold(p.Extract, "llm") {
			return true
		}
	}
	return false
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "popfinder.db")
	return database.Open(dbPath)
}

func openCache(db *database.DB) (cache.Cache, error) {
	c, err := cache.New(cfg.Cache, db)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}
