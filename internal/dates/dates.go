// Package dates turns the inconsistent date strings found in event text into
// comparable calendar days.
//
// Normalization is two-tier. The first whitespace token is tried as a strict
// ISO date, which is what operators and well-behaved generators produce. When
// that fails the whole string is searched for prose dates, month-year pairs
// and finally a bare year; those results are marked Fuzzy. Nothing that is
// unambiguously before today is ever reported as Future.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	minYear = 2020
	maxYear = 2099
)

// Kind classifies a normalized date.
type Kind int

const (
	Unparseable Kind = iota
	Future           // today or later
	Past
)

func (k Kind) String() string {
	switch k {
	case Future:
		return "future"
	case Past:
		return "past"
	default:
		return "unparseable"
	}
}

// Result is the outcome of normalizing one date string. Date is the zero
// time when Kind is Unparseable.
type Result struct {
	Kind  Kind
	Date  time.Time
	Fuzzy bool
}

// Normalizer evaluates dates relative to Today.
type Normalizer struct {
	Today time.Time
}

// New returns a Normalizer for the calendar day containing now.
func New(now time.Time) Normalizer {
	return Normalizer{Today: day(now.Year(), now.Month(), now.Day())}
}

var (
	isoAnywhere = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	numericDMY  = regexp.MustCompile(`\b(\d{1,2})[/.](\d{1,2})[/.](\d{4})\b`)

	monthPattern = `(january|february|march|april|may|june|july|august|september|october|november|december|` +
		`jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?`
	dayPattern = `(\d{1,2})(?:st|nd|rd|th)?`
	dashes     = `\s*(?:-|–|—|to|&|and)\s*`

	// "4 July 2026", "2–3 Dec 2026", "Sat 4th of Jul, 2026"
	proseDMY = regexp.MustCompile(`(?i)\b` + dayPattern + `(?:` + dashes + `\d{1,2}(?:st|nd|rd|th)?)?\s+(?:of\s+)?` +
		monthPattern + `,?\s+(\d{4})\b`)
	// "July 4, 2026", "Dec 2-3 2026"
	proseMDY = regexp.MustCompile(`(?i)\b` + monthPattern + `\s+` + dayPattern + `(?:` + dashes +
		`\d{1,2}(?:st|nd|rd|th)?)?,?\s+(\d{4})\b`)
	// "Dec 2026", "June, 2026"
	monthYear = regexp.MustCompile(`(?i)\b` + monthPattern + `,?\s+(\d{4})\b`)
	bareYear  = regexp.MustCompile(`\b(\d{4})\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// Normalize classifies raw relative to n.Today.
func (n Normalizer) Normalize(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}
	}
	today := n.today()

	if first := strings.Fields(raw)[0]; first != "" {
		if t, err := time.Parse("2006-01-02", strings.TrimRight(first, ",;:")); err == nil {
			return n.classify(t, false)
		}
	}

	if t, ok := fuzzy(raw); ok {
		return n.classify(t, true)
	}

	// An ISO-shaped date that is not a real day is malformed, not a hint
	// to fall back on the month or year.
	if isoAnywhere.MatchString(raw) {
		return Result{}
	}

	// Month-year resolves to the first of the month, but the month is only
	// past once all of it is.
	if m := monthYear.FindStringSubmatch(raw); m != nil {
		if y, ok := year(m[2]); ok {
			start := day(y, monthOf(m[1]), 1)
			end := start.AddDate(0, 1, -1)
			if end.Before(today) {
				return Result{Kind: Past, Date: start, Fuzzy: true}
			}
			if start.Before(today) {
				start = today
			}
			return Result{Kind: Future, Date: start, Fuzzy: true}
		}
	}

	if t, ok := viaDateparse(raw); ok {
		return n.classify(t, true)
	}

	for _, m := range bareYear.FindAllStringSubmatch(raw, -1) {
		y, ok := year(m[1])
		if !ok {
			continue
		}
		switch {
		case y < today.Year():
			return Result{Kind: Past, Date: day(y, time.December, 31), Fuzzy: true}
		case y == today.Year():
			return Result{Kind: Future, Date: today, Fuzzy: true}
		default:
			return Result{Kind: Future, Date: day(y, time.January, 1), Fuzzy: true}
		}
	}

	return Result{}
}

func (n Normalizer) today() time.Time {
	return day(n.Today.Year(), n.Today.Month(), n.Today.Day())
}

func (n Normalizer) classify(t time.Time, fuzzy bool) Result {
	t = day(t.Year(), t.Month(), t.Day())
	if t.Before(n.today()) {
		return Result{Kind: Past, Date: t, Fuzzy: fuzzy}
	}
	return Result{Kind: Future, Date: t, Fuzzy: fuzzy}
}

// fuzzy finds a full day-month-year date anywhere in s.
func fuzzy(s string) (time.Time, bool) {
	if m := isoAnywhere.FindStringSubmatch(s); m != nil {
		if t, ok := build(m[1], m[2], m[3]); ok {
			return t, true
		}
	}
	if m := proseDMY.FindStringSubmatch(s); m != nil {
		if t, ok := build(m[3], strconv.Itoa(int(monthOf(m[2]))), m[1]); ok {
			return t, true
		}
	}
	if m := proseMDY.FindStringSubmatch(s); m != nil {
		if t, ok := build(m[3], strconv.Itoa(int(monthOf(m[1]))), m[2]); ok {
			return t, true
		}
	}
	// UK order: day first.
	if m := numericDMY.FindStringSubmatch(s); m != nil {
		if t, ok := build(m[3], m[2], m[1]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// viaDateparse handles the long tail of machine formats. It only runs when
// the string carries a plausible year that is not the whole string, and the
// parsed year must appear in the input so that dateparse cannot invent one.
func viaDateparse(s string) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	m := bareYear.FindStringSubmatch(s)
	if m == nil || strings.TrimSpace(s) == m[1] {
		return time.Time{}, false
	}
	if _, inRange := year(m[1]); !inRange {
		return time.Time{}, false
	}
	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	ys := strconv.Itoa(parsed.Year())
	if _, inRange := year(ys); !inRange || !strings.Contains(s, ys) {
		return time.Time{}, false
	}
	return day(parsed.Year(), parsed.Month(), parsed.Day()), true
}

func build(ys, ms, ds string) (time.Time, bool) {
	y, ok := year(ys)
	if !ok {
		return time.Time{}, false
	}
	mo, err := strconv.Atoi(ms)
	if err != nil || mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(ds)
	if err != nil || d < 1 {
		return time.Time{}, false
	}
	t := day(y, time.Month(mo), d)
	if t.Day() != d {
		// 31 June and friends
		return time.Time{}, false
	}
	return t, true
}

func year(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil || y < minYear || y > maxYear {
		return 0, false
	}
	return y, true
}

func monthOf(name string) time.Month {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if len(name) > 3 {
		name = name[:3]
	}
	return months[name]
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
