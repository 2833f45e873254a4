package collect

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
)

const maxPerFeed = 20

// FeedCollector reads RSS/Atom "what's on" feeds. Items carrying the RSS
// event module (ev:startdate, ev:location) use those fields; otherwise the
// publication date stands in for the event date.
type FeedCollector struct {
	feeds   []config.Feed
	fetcher *Fetcher
	logger  zerolog.Logger
}

func NewFeedCollector(feeds []config.Feed, f *Fetcher, logger zerolog.Logger) *FeedCollector {
	return &FeedCollector{feeds: feeds, fetcher: f, logger: logger}
}

func (c *FeedCollector) Name() string { return "feeds" }

// Collect parses every configured feed. A feed that fails is logged and
// skipped; an error is returned only when all of them fail.
func (c *FeedCollector) Collect(ctx context.Context, _ event.Query) ([]event.Candidate, error) {
	parser := gofeed.NewParser()
	var all []event.Candidate
	failed := 0
	for _, fc := range c.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		body, err := c.fetcher.Get(ctx, fc.URL)
		if err != nil {
			failed++
			c.logger.Warn().Err(err).Str("feed", fc.URL).Msg("failed to fetch feed")
			continue
		}
		entries, err := parseFeed(parser, body)
		if err != nil {
			failed++
			c.logger.Warn().Err(err).Str("feed", fc.URL).Msg("failed to parse feed")
			continue
		}
		all = append(all, entries...)
		c.logger.Debug().Int("entries", len(entries)).Str("feed", name).Msg("parsed feed")
	}
	if failed > 0 && failed == len(c.feeds) {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}
	return all, nil
}

func parseFeed(parser *gofeed.Parser, body []byte) ([]event.Candidate, error) {
	feed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var entries []event.Candidate
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}
		if c, ok := parseItem(item); ok {
			entries = append(entries, c)
		}
	}
	return entries, nil
}

func parseItem(item *gofeed.Item) (event.Candidate, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return event.Candidate{}, false
	}

	itemURL := item.Link
	if itemURL == "" && strings.HasPrefix(item.GUID, "http") {
		itemURL = item.GUID
	}

	date := eventExtension(item, "startdate")
	if date == "" {
		if item.PublishedParsed != nil {
			date = item.PublishedParsed.Format("2006-01-02")
		} else if item.UpdatedParsed != nil {
			date = item.UpdatedParsed.Format("2006-01-02")
		}
	}

	var content string
	if item.Description != "" {
		content = stripHTML(item.Description)
	} else if item.Content != "" {
		content = stripHTML(item.Content)
	}

	return event.Candidate{
		Title:       title,
		URL:         itemURL,
		Date:        date,
		Location:    eventExtension(item, "location"),
		Description: content,
		Trust:       event.TrustScraped,
	}, true
}

func eventExtension(item *gofeed.Item, field string) string {
	ev, ok := item.Extensions["ev"]
	if !ok {
		return ""
	}
	for _, e := range ev[field] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

func stripHTML(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "events.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if n := len(parts); n >= 3 && len(parts[n-1]) == 2 && len(parts[n-2]) <= 3 {
		// example.co.uk
		parts = parts[:n-1]
	}
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
