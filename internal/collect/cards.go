package collect

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
)

// CardCollector scrapes a listing page where each event is rendered as a
// card matched by CSS selectors.
type CardCollector struct {
	src     config.CardSource
	fetcher *Fetcher
}

func NewCardCollector(src config.CardSource, f *Fetcher) *CardCollector {
	return &CardCollector{src: src, fetcher: f}
}

func (c *CardCollector) Name() string { return c.src.Name }

func (c *CardCollector) Collect(ctx context.Context, q event.Query) ([]event.Candidate, error) {
	pageURL := expand(c.src.URL, q)
	body, err := c.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.src.Name, err)
	}
	return parseCards(body, c.src, pageURL)
}

func parseCards(body []byte, src config.CardSource, pageURL string) ([]event.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: parsing html: %w", src.Name, err)
	}

	base, _ := url.Parse(pageURL)
	if src.BaseURL != "" {
		if b, err := url.Parse(src.BaseURL); err == nil {
			base = b
		}
	}

	linkSel := src.Link
	if linkSel == "" {
		linkSel = "a"
	}

	var out []event.Candidate
	seen := make(map[event.Key]struct{})
	doc.Find(src.Card).Each(func(_ int, card *goquery.Selection) {
		title := selText(card, src.Title)
		if title == "" {
			return
		}
		link := resolve(base, card.Find(linkSel).First().AttrOr("href", ""))
		if link == "" && card.Is("a") {
			link = resolve(base, card.AttrOr("href", ""))
		}

		c := event.Candidate{
			Title:       title,
			URL:         link,
			Description: selText(card, src.Description),
			Date:        selText(card, src.Date),
			Location:    selText(card, src.Location),
			Trust:       event.TrustScraped,
		}
		if c.Location == "" {
			c.Location = src.Venue
		}
		if c.Date == "" {
			if dt, ok := card.Find("time").First().Attr("datetime"); ok {
				c.Date = strings.TrimSpace(dt)
			}
		}
		if _, dup := seen[c.Key()]; dup {
			return
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	})
	return out, nil
}

func selText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}
