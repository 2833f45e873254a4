// Package corpus reads the operator-maintained files that feed a search:
// rules (the catalogue), notes, pinned events and seed events. They can
// live in a local directory or behind a web server. Every read fails soft.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/PopFinder/internal/event"
)

// Corpus names.
const (
	Rules = "rules"
	Notes = "notes"
	Pins  = "pins"
	Seeds = "seeds"
)

const (
	RulesFile     = "rules.txt"
	NotesTextFile = "notes.txt"
	NotesJSONFile = "notes.json"
	PinsFile      = "pins.json"
	SeedsFile     = "seed_events.json"
)

var textFiles = map[string][]string{
	Rules: {RulesFile},
	Notes: {NotesTextFile, NotesJSONFile},
}

var eventFiles = map[string]struct {
	file  string
	trust event.Trust
}{
	Pins:  {PinsFile, event.TrustPinned},
	Seeds: {SeedsFile, event.TrustSeed},
}

// errNotFound marks a corpus file that simply does not exist.
var errNotFound = errors.New("corpus file not found")

type reader interface {
	read(ctx context.Context, file string) ([]byte, error)
	describe(file string) string
}

// Corpora reads named corpora from a directory or a base URL.
type Corpora struct {
	src    reader
	logger zerolog.Logger
}

// NewDir reads corpora from files in dir.
func NewDir(dir string, logger zerolog.Logger) *Corpora {
	return &Corpora{src: dirReader(dir), logger: logger}
}

// NewRemote reads corpora from files under baseURL.
func NewRemote(baseURL string, timeout time.Duration, logger zerolog.Logger) *Corpora {
	return &Corpora{
		src: &httpReader{
			baseURL: strings.TrimRight(baseURL, "/"),
			client:  &http.Client{Timeout: timeout},
		},
		logger: logger,
	}
}

// Text returns the named text corpus, or "" when it cannot be read. Notes
// may come from notes.txt, notes.json or both.
func (c *Corpora) Text(ctx context.Context, name string) string {
	var parts []string
	for _, file := range textFiles[name] {
		data, err := c.src.read(ctx, file)
		if err != nil {
			c.logFailure(file, err)
			continue
		}
		if strings.HasSuffix(file, ".json") {
			notes, err := DecodeNotes(data)
			if err != nil {
				c.logger.Warn().Err(err).Str("source", c.src.describe(file)).Msg("ignoring malformed notes")
				continue
			}
			parts = append(parts, notes...)
			continue
		}
		if t := strings.TrimSpace(string(data)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Events returns the named event corpus stamped with its trust level, or
// nil when it cannot be read or is not a JSON array.
func (c *Corpora) Events(ctx context.Context, name string) []event.Candidate {
	src, ok := eventFiles[name]
	if !ok {
		return nil
	}
	data, err := c.src.read(ctx, src.file)
	if err != nil {
		c.logFailure(src.file, err)
		return nil
	}
	cands, err := event.DecodeRecords(data, src.trust)
	if err != nil {
		c.logger.Warn().Err(err).Str("source", c.src.describe(src.file)).Msg("ignoring malformed event file")
		return nil
	}
	return cands
}

func (c *Corpora) logFailure(file string, err error) {
	if errors.Is(err, errNotFound) {
		c.logger.Debug().Str("source", c.src.describe(file)).Msg("corpus file absent")
		return
	}
	c.logger.Warn().Err(err).Str("source", c.src.describe(file)).Msg("failed to load corpus")
}

type dirReader string

func (d dirReader) read(_ context.Context, file string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), file))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errNotFound
	}
	return data, err
}

func (d dirReader) describe(file string) string {
	return filepath.Join(string(d), file)
}

type httpReader struct {
	baseURL string
	client  *http.Client
}

func (h *httpReader) read(ctx context.Context, file string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", h.describe(file), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 5<<20))
}

func (h *httpReader) describe(file string) string {
	return h.baseURL + "/" + file
}

// DecodeNotes accepts {"notes": [...]} or a bare array, where each note is
// a string or an object with a "text" field.
func DecodeNotes(data []byte) ([]string, error) {
	var wrapped struct {
		Notes []json.RawMessage `json:"notes"`
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err == nil {
		items = wrapped.Notes
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding notes: %w", err)
	}

	var notes []string
	for _, raw := range items {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				notes = append(notes, s)
			}
			continue
		}
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			if t := strings.TrimSpace(obj.Text); t != "" {
				notes = append(notes, t)
			}
		}
	}
	return notes, nil
}
