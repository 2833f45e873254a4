package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/TobiSchelling/PopFinder/internal/event"
)

// ErrMalformedOutput is returned when a generator response holds no usable
// event data.
var ErrMalformedOutput = errors.New("malformed generator output")

// GeneratorOutput decodes a generator response into candidates with trust
// generated. It accepts a JSON array, an object with an "events" array or a
// single event object, optionally wrapped in markdown code fences or
// surrounded by chatter.
func GeneratorOutput(raw string) ([]event.Candidate, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}

	if cands, err := decode(text); err == nil {
		return cands, nil
	}

	// Models like to explain themselves around the payload.
	if i, j := strings.Index(text, "["), strings.LastIndex(text, "]"); i >= 0 && j > i {
		if cands, err := decode(text[i : j+1]); err == nil {
			return cands, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON event list found", ErrMalformedOutput)
}

func decode(text string) ([]event.Candidate, error) {
	switch text[0] {
	case '[':
		return event.DecodeRecords([]byte(text), event.TrustGenerated)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, err
		}
		if list, ok := obj["events"]; ok {
			return event.DecodeRecords(list, event.TrustGenerated)
		}
		var single map[string]any
		if err := json.Unmarshal([]byte(text), &single); err != nil {
			return nil, err
		}
		return []event.Candidate{event.FromRecord(single, event.TrustGenerated)}, nil
	}
	return nil, errors.New("not JSON")
}

// StripFences removes surrounding whitespace and a markdown code fence, if
// present.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if len(lines) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}
