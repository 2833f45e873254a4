package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
)

const searchAPIBaseURL = "https://www.googleapis.com/customsearch/v1"

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// SearchAPICollector runs templated queries against a Custom Search JSON
// API and turns the hits into candidates. The snippet doubles as the date
// field since it usually leads with the event date.
type SearchAPICollector struct {
	apiKey    string
	engineID  string
	endpoint  string
	templates []string
	fetcher   *Fetcher
	logger    zerolog.Logger
}

// NewSearchAPICollector reads credentials from the environment variables
// named in cfg.
func NewSearchAPICollector(cfg config.SearchAPI, f *Fetcher, logger zerolog.Logger) *SearchAPICollector {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = searchAPIBaseURL
	}
	return &SearchAPICollector{
		apiKey:    os.Getenv(cfg.APIKeyEnv),
		engineID:  os.Getenv(cfg.EngineIDEnv),
		endpoint:  endpoint,
		templates: cfg.QueryTemplates,
		fetcher:   f,
		logger:    logger,
	}
}

func (c *SearchAPICollector) Name() string { return "search_api" }

// IsConfigured returns whether both credentials are available.
func (c *SearchAPICollector) IsConfigured() bool {
	return c.apiKey != "" && c.engineID != ""
}

func (c *SearchAPICollector) Collect(ctx context.Context, q event.Query) ([]event.Candidate, error) {
	if !c.IsConfigured() {
		c.logger.Debug().Msg("search API not configured, skipping")
		return nil, nil
	}

	var out []event.Candidate
	seen := make(map[string]struct{})
	failed := 0
	for _, tmpl := range c.templates {
		query := fill(tmpl, q)
		if query == "" {
			continue
		}
		items, err := c.search(ctx, query)
		if err != nil {
			failed++
			c.logger.Warn().Err(err).Str("query", query).Msg("search API request failed")
			continue
		}
		for _, it := range items {
			if _, dup := seen[it.URL]; dup && it.URL != "" {
				continue
			}
			seen[it.URL] = struct{}{}
			out = append(out, it)
		}
	}
	if failed > 0 && failed == len(c.templates) {
		return nil, fmt.Errorf("all %d search queries failed", failed)
	}
	return out, nil
}

func (c *SearchAPICollector) search(ctx context.Context, query string) ([]event.Candidate, error) {
	params := url.Values{
		"cx":  {c.engineID},
		"q":   {query},
		"num": {"10"},
	}
	// The key stays out of the cache key.
	cacheKey := c.endpoint + "?" + params.Encode()
	params.Set("key", c.apiKey)

	body, err := c.fetcher.get(ctx, c.endpoint+"?"+params.Encode(), cacheKey)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	var out []event.Candidate
	for _, it := range resp.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		snippet := strings.Join(strings.Fields(it.Snippet), " ")
		out = append(out, event.Candidate{
			Title:       title,
			URL:         it.Link,
			Date:        snippet,
			Description: snippet,
			Trust:       event.TrustScraped,
		})
	}
	return out, nil
}
