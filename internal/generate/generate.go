// Package generate asks a language model for candidate events. Its output
// is untrusted; callers parse it and run it through the trust filter.
package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/PopFinder/internal/cache"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/llm"
	"github.com/TobiSchelling/PopFinder/internal/parse"
)

const eventPrompt = `You are PopFinder, the UK's event and pop-up opportunity engine.

Your task: list realistic, upcoming UK events, expos, markets, festivals, fairs and
high-footfall vendor opportunities.

USER QUERY:
- Region: %s
- Keywords: %s
- Today's date: %s

CONTEXT FROM SERVER:
--- Rules ---
%s

--- Notes ---
%s

--- Pinned events ---
%s

--- Seed events (verified sources) ---
%s

REQUIREMENTS:
1. Every event must be dated after today, as YYYY-MM-DD (ranges as "YYYY-MM-DD to YYYY-MM-DD").
2. Use real venues such as ExCeL London, Olympia, NEC, Bluewater, Alexandra Palace,
   Southbank and Kent Showground.
3. Use the seed events to anchor realism and do not contradict them.
4. Only give a URL you are confident exists; otherwise leave it empty.
5. Keywords boost results but do not restrict them.
6. Respond with ONLY a JSON array in exactly this structure:

[
  {
    "title": "",
    "date": "",
    "location": "",
    "description": "",
    "url": "",
    "category": ""
  }
]`

// Request carries the query and the operator context the prompt is built from.
type Request struct {
	Region   string
	Keywords string
	Today    time.Time
	Rules    string
	Notes    string
	Pins     []event.Candidate
	Seeds    []event.Candidate
}

// LLMGenerator produces raw candidate text with an LLM provider. Responses
// that decode as event data are cached per region, keywords and day.
type LLMGenerator struct {
	provider  llm.Provider
	maxTokens int
	cache     cache.Cache
	ttl       time.Duration
	logger    zerolog.Logger
}

// New creates a generator. A nil cache disables caching.
func New(provider llm.Provider, maxTokens int, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *LLMGenerator {
	if c == nil {
		c = cache.Nop{}
	}
	return &LLMGenerator{provider: provider, maxTokens: maxTokens, cache: c, ttl: ttl, logger: logger}
}

// Generate returns the model's raw response for req.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.provider == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}

	key := CacheKey(req)
	if cached, err := g.cache.Get(ctx, key); err == nil {
		g.logger.Debug().Str("key", key).Msg("generator cache hit")
		return string(cached), nil
	} else if !errors.Is(err, cache.ErrMiss) {
		g.logger.Warn().Err(err).Msg("generator cache read failed")
	}

	raw, err := g.provider.Generate(ctx, BuildPrompt(req), g.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generating events: %w", err)
	}

	if _, perr := parse.GeneratorOutput(raw); perr == nil {
		if err := g.cache.Set(ctx, key, []byte(raw), g.ttl); err != nil {
			g.logger.Warn().Err(err).Msg("generator cache write failed")
		}
	}
	return raw, nil
}

// BuildPrompt renders the event prompt for req.
func BuildPrompt(req Request) string {
	return fmt.Sprintf(eventPrompt,
		orNone(req.Region),
		orNone(req.Keywords),
		req.Today.Format("2006-01-02"),
		orNone(req.Rules),
		orNone(req.Notes),
		encode(req.Pins),
		encode(req.Seeds),
	)
}

// CacheKey identifies a request for caching. Context corpora are left out
// so a note edit does not invalidate the day's responses.
func CacheKey(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s",
		strings.ToLower(strings.TrimSpace(req.Region)),
		strings.ToLower(strings.Join(strings.Fields(req.Keywords), " ")),
		req.Today.Format("2006-01-02"))
	return "gen:" + hex.EncodeToString(h.Sum(nil))[:32]
}

func encode(cands []event.Candidate) string {
	if len(cands) == 0 {
		return "[]"
	}
	data, err := json.Marshal(cands)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
