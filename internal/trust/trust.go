// Package trust is the gate between untrusted candidates and the ranked
// result set. It rejects anything without a usable future date, and for
// unverified sources also rejects known fabricated titles and one-off
// events claimed at unrecognised URLs.
package trust

import (
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/dates"
	"github.com/TobiSchelling/PopFinder/internal/event"
)

// Reason explains why a candidate was rejected.
type Reason string

const (
	MissingTitle    Reason = "missing_title"
	UnparseableDate Reason = "unparseable_date"
	PastDate        Reason = "past_date"
	DeniedTitle     Reason = "denied_title"
	UntrustedURL    Reason = "untrusted_url"
	InvalidURL      Reason = "invalid_url"
)

// Decision is the outcome of checking one candidate. Date is set whenever
// the candidate's date could be parsed.
type Decision struct {
	Pass   bool
	Reason Reason
	Date   time.Time
}

// Admitted is a candidate that passed, with its normalized date.
type Admitted struct {
	Candidate event.Candidate
	Date      time.Time
}

// Rejection records a dropped candidate and why.
type Rejection struct {
	Candidate event.Candidate
	Reason    Reason
}

// Filter applies the trust rules relative to Dates.Today.
type Filter struct {
	Dates dates.Normalizer
	Rules config.TrustRules
}

// Check runs the rules in order: title present, date today or later, then
// seed and pinned pass, then the deny-list, then the URL check.
func (f Filter) Check(c event.Candidate) Decision {
	if !c.Valid() {
		return Decision{Reason: MissingTitle}
	}

	d := f.Dates.Normalize(c.Date)
	switch d.Kind {
	case dates.Unparseable:
		return Decision{Reason: UnparseableDate}
	case dates.Past:
		return Decision{Reason: PastDate, Date: d.Date}
	}

	if c.Trust.Verified() {
		return Decision{Pass: true, Date: d.Date}
	}

	title := strings.ToLower(c.Title)
	if containsAny(title, f.Rules.DeniedTitles) {
		return Decision{Reason: DeniedTitle, Date: d.Date}
	}

	if u := strings.TrimSpace(c.URL); u != "" {
		host, ok := hostOf(u)
		if ok && f.trustedHost(host) {
			return Decision{Pass: true, Date: d.Date}
		}
		if !ok && containsAny(strings.ToLower(u), f.Rules.TrustedDomains) {
			return Decision{Pass: true, Date: d.Date}
		}
		if containsAny(title, f.Rules.RecurringTitles) {
			return Decision{Pass: true, Date: d.Date}
		}
		if !ok {
			return Decision{Reason: InvalidURL, Date: d.Date}
		}
		return Decision{Reason: UntrustedURL, Date: d.Date}
	}

	return Decision{Pass: true, Date: d.Date}
}

// Apply splits cands into admitted and rejected, preserving order.
func (f Filter) Apply(cands []event.Candidate) ([]Admitted, []Rejection) {
	var kept []Admitted
	var rejected []Rejection
	for _, c := range cands {
		d := f.Check(c)
		if d.Pass {
			kept = append(kept, Admitted{Candidate: c, Date: d.Date})
			continue
		}
		rejected = append(rejected, Rejection{Candidate: c, Reason: d.Reason})
	}
	return kept, rejected
}

// trustedHost matches host against the allow-list on domain boundaries, so
// "excel.london" admits "www.excel.london" but not "excel.london.example.com".
func (f Filter) trustedHost(host string) bool {
	for _, d := range f.Rules.TrustedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// hostOf extracts the lowercased host of an http(s) URL. Generators often
// drop the scheme, so "www.excel.london/whats-on" is read as https.
func hostOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err == nil && u.Scheme == "" && !strings.HasPrefix(raw, "/") {
		u, err = url.Parse("https://" + raw)
	}
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	return host, true
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
