package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/TobiSchelling/PopFinder/internal/event"
)

// ErrEmpty is returned when a pin has no title or a note has no text.
var ErrEmpty = errors.New("empty record")

// pinRecord is the on-disk shape of a pinned event.
type pinRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Category    string `json:"category,omitempty"`
}

// PinStore manages pins.json in a corpora directory.
type PinStore struct {
	path string
	mu   sync.Mutex
}

func NewPinStore(dir string) *PinStore {
	return &PinStore{path: filepath.Join(dir, PinsFile)}
}

// List returns every pinned event.
func (s *PinStore) List() ([]event.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add pins c under a fresh ID and returns the stored record.
func (s *PinStore) Add(c event.Candidate) (event.Candidate, error) {
	if !c.Valid() {
		return event.Candidate{}, fmt.Errorf("%w: pin needs a title", ErrEmpty)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.load()
	if err != nil {
		return event.Candidate{}, err
	}
	pinned := event.Candidate{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(c.Title),
		Date:        strings.TrimSpace(c.Date),
		Location:    strings.TrimSpace(c.Location),
		Description: strings.TrimSpace(c.Description),
		URL:         strings.TrimSpace(c.URL),
		Category:    strings.TrimSpace(c.Category),
		Trust:       event.TrustPinned,
	}
	pins = append(pins, pinned)
	if err := s.save(pins); err != nil {
		return event.Candidate{}, err
	}
	return pinned, nil
}

// Remove deletes the pin with id. It reports whether a pin was removed.
func (s *PinStore) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.load()
	if err != nil {
		return false, err
	}
	i := slices.IndexFunc(pins, func(c event.Candidate) bool { return c.ID == id })
	if i < 0 {
		return false, nil
	}
	return true, s.save(slices.Delete(pins, i, i+1))
}

func (s *PinStore) load() ([]event.Candidate, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pins: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	pins, err := event.DecodeRecords(data, event.TrustPinned)
	if err != nil {
		return nil, fmt.Errorf("reading pins: %w", err)
	}
	return pins, nil
}

func (s *PinStore) save(pins []event.Candidate) error {
	records := make([]pinRecord, 0, len(pins))
	for _, p := range pins {
		records = append(records, pinRecord{
			ID:          p.ID,
			Title:       p.Title,
			Date:        p.Date,
			Location:    p.Location,
			Description: p.Description,
			URL:         p.URL,
			Category:    p.Category,
		})
	}
	return writeJSON(s.path, records)
}

// NoteStore manages notes.json in a corpora directory.
type NoteStore struct {
	path string
	mu   sync.Mutex
}

func NewNoteStore(dir string) *NoteStore {
	return &NoteStore{path: filepath.Join(dir, NotesJSONFile)}
}

// List returns every stored note.
func (s *NoteStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add appends a note.
func (s *NoteStore) Add(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: note has no text", ErrEmpty)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load()
	if err != nil {
		return err
	}
	return writeJSON(s.path, struct {
		Notes []string `json:"notes"`
	}{Notes: append(notes, text)})
}

func (s *NoteStore) load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading notes: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return DecodeNotes(data)
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating corpora directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp.Name(), path)
}
