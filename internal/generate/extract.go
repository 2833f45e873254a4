package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/PopFinder/internal/cache"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/llm"
	"github.com/TobiSchelling/PopFinder/internal/parse"
)

// maxPageRunes bounds the page text sent to the model.
const maxPageRunes = 12000

const extractPrompt = `Extract ALL events listed on this web page.

Page URL: %s
Today's date: %s

--- Page text ---
%s
--- End of page text ---

Only include events the page actually describes. Use YYYY-MM-DD dates where the page
gives a day, and copy the page's wording otherwise. Leave a field empty rather than guess.

Respond with ONLY a JSON array:
[{"title": "", "date": "", "location": "", "description": "", "url": "", "category": ""}]`

// PageExtractor reads events out of page text with an LLM provider.
// Parsed results are cached by page content, so an unchanged page is only
// sent to the model once per TTL.
type PageExtractor struct {
	provider  llm.Provider
	maxTokens int
	cache     cache.Cache
	ttl       time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewPageExtractor(provider llm.Provider, maxTokens int, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *PageExtractor {
	if c == nil {
		c = cache.Nop{}
	}
	return &PageExtractor{provider: provider, maxTokens: maxTokens, cache: c, ttl: ttl, now: time.Now, logger: logger}
}

// Extract returns the events the model finds in text. Candidates without a
// URL get pageURL.
func (x *PageExtractor) Extract(ctx context.Context, text, pageURL string) ([]event.Candidate, error) {
	if x.provider == nil {
		return nil, errors.New("no LLM provider configured")
	}
	text = truncateRunes(text, maxPageRunes)
	key := extractKey(pageURL, text)

	raw, err := x.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			x.logger.Warn().Err(err).Msg("extract cache read failed")
		}
		out, err := x.provider.Generate(ctx, fmt.Sprintf(extractPrompt, pageURL, x.now().Format("2006-01-02"), text), x.maxTokens)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", pageURL, err)
		}
		raw = []byte(out)
	} else {
		x.logger.Debug().Str("url", pageURL).Msg("extract cache hit")
	}

	cands, err := parse.GeneratorOutput(string(raw))
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", pageURL, err)
	}
	if err := x.cache.Set(ctx, key, raw, x.ttl); err != nil {
		x.logger.Warn().Err(err).Msg("extract cache write failed")
	}
	for i := range cands {
		if cands[i].URL == "" {
			cands[i].URL = pageURL
		}
	}
	return cands, nil
}

func extractKey(pageURL, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s", pageURL, text)
	return "extract:" + hex.EncodeToString(h.Sum(nil))[:32]
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
