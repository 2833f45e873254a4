package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/PopFinder/internal/corpus"
	"github.com/TobiSchelling/PopFinder/internal/database"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/search"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const maxBodyBytes = 1 << 20

// Searcher runs a search.
type Searcher interface {
	Search(ctx context.Context, region, keywords string) (*search.Result, error)
}

// Deps are the collaborators the server needs. DB and Metrics are optional.
type Deps struct {
	Searcher Searcher
	Corpora  search.Corpora
	Pins     *corpus.PinStore
	Notes    *corpus.NoteStore
	DB       *database.DB
	Metrics  http.Handler
	Logger   zerolog.Logger
}

// Server is the HTTP front end for searching and curating events.
type Server struct {
	deps  Deps
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(deps Deps) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"score": func(f float64) string { return fmt.Sprintf("%.1f", f) },
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	pageNames := []string{"index.html", "pins.html", "rules.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}
	s := &Server{deps: deps, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	s.mux.Handle("GET /metrics", s.deps.Metrics)

	// Pages
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /pins", s.handlePinsPage)
	s.mux.HandleFunc("POST /pins/add", s.handleAddPinForm)
	s.mux.HandleFunc("POST /pins/{id}/delete", s.handleDeletePinForm)
	s.mux.HandleFunc("GET /rules", s.handleRules)
	s.mux.HandleFunc("POST /notes/add", s.handleAddNoteForm)

	// JSON API
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/pins", s.handleListPins)
	s.mux.HandleFunc("POST /api/pins", s.handleAddPin)
	s.mux.HandleFunc("DELETE /api/pins/{id}", s.handleDeletePin)
	s.mux.HandleFunc("GET /api/notes", s.handleListNotes)
	s.mux.HandleFunc("POST /api/notes", s.handleAddNote)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	keywords := r.URL.Query().Get("keywords")
	data := map[string]any{
		"Region":   region,
		"Keywords": keywords,
	}

	status := http.StatusOK
	if r.URL.Query().Has("region") || r.URL.Query().Has("keywords") {
		res, err := s.deps.Searcher.Search(r.Context(), region, keywords)
		switch {
		case errors.Is(err, search.ErrInvalidQuery):
			status = http.StatusBadRequest
			data["Error"] = err.Error()
		case err != nil:
			s.deps.Logger.Error().Err(err).Msg("search failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		default:
			data["Result"] = res
		}
	}

	if s.deps.DB != nil {
		runs, err := s.deps.DB.GetRecentSearchRuns(10)
		if err != nil {
			s.deps.Logger.Warn().Err(err).Msg("loading recent searches")
		}
		data["Runs"] = runs
	}

	s.renderStatus(w, status, "index.html", data)
}

func (s *Server) handlePinsPage(w http.ResponseWriter, r *http.Request) {
	pins, err := s.deps.Pins.List()
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("listing pins")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "pins.html", map[string]any{
		"Pins": pins,
	})
}

func (s *Server) handleAddPinForm(w http.ResponseWriter, r *http.Request) {
	c := event.Candidate{
		Title:       r.FormValue("title"),
		Date:        r.FormValue("date"),
		Location:    r.FormValue("location"),
		Description: r.FormValue("description"),
		URL:         r.FormValue("url"),
	}
	if _, err := s.deps.Pins.Add(c); err != nil && !errors.Is(err, corpus.ErrEmpty) {
		s.deps.Logger.Error().Err(err).Msg("adding pin")
	}
	http.Redirect(w, r, "/pins", http.StatusFound)
}

func (s *Server) handleDeletePinForm(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Pins.Remove(r.PathValue("id")); err != nil {
		s.deps.Logger.Error().Err(err).Msg("removing pin")
	}
	http.Redirect(w, r, "/pins", http.StatusFound)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if s.deps.Corpora != nil {
		data["Rules"] = s.deps.Corpora.Text(r.Context(), corpus.Rules)
	}
	notes, err := s.deps.Notes.List()
	if err != nil {
		s.deps.Logger.Warn().Err(err).Msg("listing notes")
	}
	data["Notes"] = notes
	s.render(w, "rules.html", data)
}

func (s *Server) handleAddNoteForm(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Notes.Add(r.FormValue("text")); err != nil && !errors.Is(err, corpus.ErrEmpty) {
		s.deps.Logger.Error().Err(err).Msg("adding note")
	}
	http.Redirect(w, r, "/rules", http.StatusFound)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Searcher.Search(r.Context(), r.URL.Query().Get("region"), r.URL.Query().Get("keywords"))
	if errors.Is(err, search.ErrInvalidQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("search failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListPins(w http.ResponseWriter, r *http.Request) {
	pins, err := s.deps.Pins.List()
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("listing pins")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if pins == nil {
		pins = []event.Candidate{}
	}
	writeJSON(w, http.StatusOK, pins)
}

func (s *Server) handleAddPin(w http.ResponseWriter, r *http.Request) {
	var c event.Candidate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	pinned, err := s.deps.Pins.Add(c)
	if errors.Is(err, corpus.ErrEmpty) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("adding pin")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, pinned)
}

func (s *Server) handleDeletePin(w http.ResponseWriter, r *http.Request) {
	removed, err := s.deps.Pins.Remove(r.PathValue("id"))
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("removing pin")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "pin not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.deps.Notes.List()
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("listing notes")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if notes == nil {
		notes = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"notes": notes})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.deps.Notes.Add(body.Text)
	if errors.Is(err, corpus.ErrEmpty) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("adding note")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"text": strings.TrimSpace(body.Text)})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	s.renderStatus(w, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.deps.Logger.Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.deps.Logger.Error().Err(err).Str("template", name).Msg("rendering template")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve runs the server on port until ctx is cancelled.
func Serve(ctx context.Context, deps Deps, port int) error {
	srv, err := New(deps)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	deps.Logger.Info().Msgf("Server listening on http://%s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}
