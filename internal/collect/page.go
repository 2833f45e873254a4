package collect

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/parse"
)

// Extractor reads events out of page text, typically with a language model.
type Extractor interface {
	Extract(ctx context.Context, text, pageURL string) ([]event.Candidate, error)
}

// PageCollector extracts the readable body of a free-form "what's on" page
// and mines it for event blocks, or hands it to an Extractor when the page
// is configured with extract: llm.
type PageCollector struct {
	page      config.Page
	fetcher   *Fetcher
	gazetteer config.Gazetteer
	extractor Extractor
}

// NewPageCollector builds a page collector. ex may be nil, in which case
// the page is always block-parsed.
func NewPageCollector(p config.Page, f *Fetcher, g config.Gazetteer, ex Extractor) *PageCollector {
	c := &PageCollector{page: p, fetcher: f, gazetteer: g}
	if strings.EqualFold(p.Extract, "llm") {
		c.extractor = ex
	}
	return c
}

func (c *PageCollector) Name() string {
	if c.page.Name != "" {
		return c.page.Name
	}
	return extractSourceName(c.page.URL)
}

func (c *PageCollector) Collect(ctx context.Context, _ event.Query) ([]event.Candidate, error) {
	body, err := c.fetcher.Get(ctx, c.page.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	text, err := pageText(body, c.page.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	if c.extractor != nil {
		cands, err := c.extractor.Extract(ctx, text, c.page.URL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
		for i := range cands {
			cands[i].Trust = event.TrustScraped
			if cands[i].URL == "" {
				cands[i].URL = c.page.URL
			}
		}
		return cands, nil
	}

	var out []event.Candidate
	for cand := range parse.Blocks(text, c.gazetteer) {
		cand.Trust = event.TrustScraped
		if cand.URL == "" {
			cand.URL = c.page.URL
		}
		out = append(out, cand)
	}
	return out, nil
}

// pageText renders the main content of an HTML page as plain text with one
// block per heading, separated by blank lines. Pages without headings get
// one block per paragraph.
func pageText(body []byte, pageURL string) (string, error) {
	content := string(body)
	if parsedURL, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(bytes.NewReader(body), parsedURL); err == nil && strings.TrimSpace(article.Content) != "" {
			content = article.Content
		}
	}

	return htmlBlocks(content)
}

func htmlBlocks(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	headings := doc.Find("h1, h2, h3, h4").Length() > 0
	var b strings.Builder
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, s *goquery.Selection) {
		if s.Is("li") && s.Find("p").Length() > 0 {
			return
		}
		line := strings.Join(strings.Fields(s.Text()), " ")
		if line == "" {
			return
		}
		if b.Len() > 0 {
			if !headings || s.Is("h1, h2, h3, h4") {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(line)
	})
	return b.String(), nil
}
