package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// record is the loose shape of event-like JSON produced by operators,
// generators and scrapers. Field names vary between sources.
type record map[string]any

// DecodeRecords decodes a JSON array of event-shaped objects and stamps each
// candidate with trust. A payload that is not an array is an error. Elements
// that are not objects are skipped.
func DecodeRecords(data []byte, trust Trust) ([]Candidate, error) {
	if !trust.Valid() {
		return nil, fmt.Errorf("unknown trust level %q", trust)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if data[0] != '[' {
		return nil, fmt.Errorf("payload is not a JSON array")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}

	out := make([]Candidate, 0, len(raw))
	for _, item := range raw {
		var r record
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		out = append(out, FromRecord(r, trust))
	}
	return out, nil
}

// FromRecord converts a decoded JSON object into a Candidate.
func FromRecord(r map[string]any, trust Trust) Candidate {
	rec := record(r)
	return Candidate{
		ID:             rec.str("id"),
		Title:          rec.str("title", "name"),
		Date:           rec.str("date", "dates", "start_date"),
		Location:       rec.str("location", "venue", "region"),
		Description:    rec.str("description", "snippet", "summary"),
		URL:            rec.str("url", "link"),
		Category:       rec.str("category", "type", "event_type"),
		FootfallScore:  rec.score("footfall_score"),
		VendorFitScore: rec.score("vendor_fit_score"),
		Trust:          trust,
	}
}

func (r record) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

// score reads a 1..10 score. Anything unusable reads as 0 (not supplied).
func (r record) score(key string) int {
	var n int
	switch v := r[key].(type) {
	case float64:
		n = int(v)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		n = i
	default:
		return 0
	}
	if n < 1 || n > 10 {
		return 0
	}
	return n
}
