// Package parse mines event candidates out of loosely structured text:
// operator catalogues, scraped page text and generator responses.
package parse

import (
	"iter"
	"regexp"
	"strings"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/textmatch"
)

const minTitleLen = 3

var (
	blankLine = regexp.MustCompile(`\n[ \t]*\n`)
	urlToken  = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+|\bwww\.[^\s<>"']+`)
	yearToken = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	dayWord   = regexp.MustCompile(`(?i)\b\d{1,2}(st|nd|rd|th)?\s+[a-z]{3,}`)
	label     = regexp.MustCompile(`(?i)^(title|date|dates|when|location|venue|where|url|link)\s*:\s*`)
	bullet    = regexp.MustCompile(`^(\s*([-*•#>]+|\d+[.)])\s*)+`)

	sectionStart = regexp.MustCompile(`(?i)===\s*event data\s*===`)
	sectionEnd   = regexp.MustCompile(`(?i)===\s*end event data\s*===`)
)

// Blocks splits text on blank lines and yields one candidate per block whose
// title is at least three characters long. Fields that cannot be found are
// left empty; blocks without a date are still yielded. The returned sequence
// re-scans text on every range, so each iteration is independent.
func Blocks(text string, g config.Gazetteer) iter.Seq[event.Candidate] {
	places := g.Places()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return func(yield func(event.Candidate) bool) {
		for _, block := range blankLine.Split(text, -1) {
			c, ok := parseBlock(block, places)
			if !ok {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// EventSection returns the part of an operator catalogue between the
// "=== EVENT DATA ===" and "=== END EVENT DATA ===" markers. Text without a
// start marker is returned whole; a missing end marker runs to the end.
func EventSection(text string) string {
	start := sectionStart.FindStringIndex(text)
	if start == nil {
		return text
	}
	rest := text[start[1]:]
	if end := sectionEnd.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return rest
}

// Catalogue parses the event section of an operator catalogue and stamps
// every candidate with trust.
func Catalogue(text string, trust event.Trust, g config.Gazetteer) []event.Candidate {
	var out []event.Candidate
	for c := range Blocks(EventSection(text), g) {
		c.Trust = trust
		out = append(out, c)
	}
	return out
}

func parseBlock(block string, places []string) (event.Candidate, bool) {
	var lines []string
	for _, l := range strings.Split(block, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return event.Candidate{}, false
	}

	title := cleanTitle(lines[0])
	if len([]rune(title)) < minTitleLen {
		return event.Candidate{}, false
	}

	c := event.Candidate{Title: title}
	rest := lines[1:]

	var dateLine, locLine, labelledDate, labelledLoc string
	for _, l := range rest {
		name, value := splitLabel(l)

		if c.URL == "" {
			if u := urlToken.FindString(l); u != "" {
				c.URL = cleanURL(u)
			}
		}

		switch name {
		case "date", "dates", "when":
			if labelledDate == "" {
				labelledDate = value
			}
			continue
		case "location", "venue", "where":
			if labelledLoc == "" {
				labelledLoc = value
			}
			continue
		case "url", "link", "title":
			continue
		}

		if urlToken.FindString(l) == l {
			continue
		}
		if dateLine == "" && (yearToken.MatchString(l) || dayWord.MatchString(l)) {
			dateLine = l
		}
		if locLine == "" && textmatch.New(l).HasAny(places) {
			locLine = l
		}
	}

	c.Date = firstNonEmpty(labelledDate, dateLine)
	c.Location = firstNonEmpty(labelledLoc, locLine)
	c.Description = strings.Join(rest, " ")
	return c, true
}

func cleanTitle(line string) string {
	line = bullet.ReplaceAllString(line, "")
	line = strings.Trim(line, "*_ \t")
	if name, value := splitLabel(line); name == "title" {
		line = value
	}
	return strings.TrimSpace(line)
}

// splitLabel splits "LOCATION: Detling" into ("location", "Detling").
func splitLabel(line string) (string, string) {
	m := label.FindStringSubmatchIndex(line)
	if m == nil {
		return "", line
	}
	return strings.ToLower(line[m[2]:m[3]]), strings.TrimSpace(line[m[1]:])
}

func cleanURL(u string) string {
	u = strings.TrimRight(u, ".,;:)]}!?")
	if strings.HasPrefix(strings.ToLower(u), "www.") {
		u = "https://" + u
	}
	return u
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
