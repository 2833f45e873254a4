package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/PopFinder/internal/cache"
	"github.com/TobiSchelling/PopFinder/internal/config"
)

const maxBodyBytes = 5 << 20

// Fetcher performs polite GETs: one request per host per RequestEvery,
// a fixed User-Agent, and response bodies cached for the collector TTL.
type Fetcher struct {
	client    *http.Client
	userAgent string
	every     time.Duration
	cache     cache.Cache
	ttl       time.Duration
	logger    zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher. A nil cache disables caching.
func NewFetcher(cfg config.Collectors, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if c == nil {
		c = cache.Nop{}
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		every:     cfg.RequestEvery,
		cache:     c,
		ttl:       ttl,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Get fetches rawURL, using the URL itself as the cache key.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return f.get(ctx, rawURL, rawURL)
}

// get fetches rawURL, caching the body under "src:"+key. Callers pass a key
// without credentials when the URL carries them.
func (f *Fetcher) get(ctx context.Context, rawURL, key string) ([]byte, error) {
	key = "src:" + key
	if body, err := f.cache.Get(ctx, key); err == nil {
		return body, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		f.logger.Warn().Err(err).Msg("cache read failed")
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	if err := f.limiter(strings.ToLower(u.Host)).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u.Host, err)
	}

	if f.ttl > 0 {
		if err := f.cache.Set(ctx, key, body, f.ttl); err != nil {
			f.logger.Warn().Err(err).Msg("cache write failed")
		}
	}
	return body, nil
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.every > 0 {
			limit = rate.Every(f.every)
		}
		l = rate.NewLimiter(limit, 1)
		f.limiters[host] = l
	}
	return l
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, http.StatusText(e.code))
}
