package event

import (
	"strings"
)

// Trust identifies where a candidate came from. It decides how leniently the
// trust filter treats the candidate and which duplicate survives a merge.
type Trust string

const (
	TrustGenerated Trust = "generated"
	TrustScraped   Trust = "scraped"
	TrustCatalogue Trust = "operator_catalogue"
	TrustSeed      Trust = "seed"
	TrustPinned    Trust = "pinned"
)

// Priority returns the merge priority of a trust level. Lower wins.
func (t Trust) Priority() int {
	switch t {
	case TrustPinned:
		return 0
	case TrustSeed:
		return 1
	default:
		return 2
	}
}

// Verified reports whether the source is operator-verified and therefore
// never second-guessed by the trust filter.
func (t Trust) Verified() bool {
	return t == TrustSeed || t == TrustPinned
}

// Valid reports whether t is one of the known trust levels.
func (t Trust) Valid() bool {
	switch t {
	case TrustGenerated, TrustScraped, TrustCatalogue, TrustSeed, TrustPinned:
		return true
	}
	return false
}

// Candidate is an unverified event record flowing through the pipeline.
type Candidate struct {
	ID             string  `json:"id,omitempty"`
	Title          string  `json:"title"`
	Date           string  `json:"date"`
	Location       string  `json:"location"`
	Description    string  `json:"description"`
	URL            string  `json:"url"`
	Category       string  `json:"category,omitempty"`
	FootfallScore  int     `json:"footfall_score,omitempty"`
	VendorFitScore int     `json:"vendor_fit_score,omitempty"`
	Trust          Trust   `json:"source_trust"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Key is the normalized identity of an event used for deduplication.
type Key struct {
	Title    string
	Date     string
	Location string
}

// Key returns the normalized (title, date, location) identity triple.
func (c Candidate) Key() Key {
	return Key{
		Title:    normalize(c.Title),
		Date:     normalize(c.Date),
		Location: normalize(c.Location),
	}
}

// Valid reports whether the candidate has a usable title.
func (c Candidate) Valid() bool {
	return strings.TrimSpace(c.Title) != ""
}

// Text returns title, description and location joined for token matching.
func (c Candidate) Text() string {
	return c.Title + " " + c.Description + " " + c.Location
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Query is a user search: a region and free-text keywords.
type Query struct {
	Region   string `json:"region"`
	Keywords string `json:"keywords"`
}
