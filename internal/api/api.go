// Package api exposes the engine's data as a thin, read-only HTTP JSON
// API: a health check, the list of upgrade-disciplines, and one
// discipline's Reporter roster as JSON or rendered HTML. It has no routes
// for events, races, results or a person's points history. Grounded on the
// chi router + middleware chain used for the gateway service in the
// retrieved pack, pared down to what a read-only reporting surface needs.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/report"
	"github.com/brandond/obra-upgrades/internal/storage"
)

// Server wires storage.Store and the Reporter behind a chi router.
type Server struct {
	store    storage.Store
	reporter *report.Reporter
	log      zerolog.Logger
}

// New constructs a Server.
func New(store storage.Store, log zerolog.Logger) *Server {
	return &Server{store: store, reporter: report.New(store), log: log.With().Str("component", "api").Logger()}
}

// Router builds the chi Router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/disciplines", s.handleDisciplines)
		r.Get("/disciplines/{discipline}/roster", s.handleRoster)
		r.Get("/disciplines/{discipline}/roster.html", s.handleRosterHTML)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("req_id", chimw.GetReqID(r.Context())).
			Int("status", rw.Status()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDisciplines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, discipline.All())
}

// sinceParam parses a ?since=YYYY-MM-DD query param, defaulting to one
// calendar year before now (spec §4.10's reporting window).
func sinceParam(r *http.Request) time.Time {
	if raw := r.URL.Query().Get("since"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t
		}
	}
	return time.Now().AddDate(-1, 0, 0)
}

func (s *Server) parseDiscipline(w http.ResponseWriter, r *http.Request) (discipline.Tag, bool) {
	d := discipline.Tag(chi.URLParam(r, "discipline"))
	if !discipline.Valid(d) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown discipline"})
		return "", false
	}
	return d, true
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	d, ok := s.parseDiscipline(w, r)
	if !ok {
		return
	}
	roster, err := s.reporter.Build(r.Context(), []discipline.Tag{d}, sinceParam(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (s *Server) handleRosterHTML(w http.ResponseWriter, r *http.Request) {
	d, ok := s.parseDiscipline(w, r)
	if !ok {
		return
	}
	roster, err := s.reporter.Build(r.Context(), []discipline.Tag{d}, sinceParam(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := (report.HTMLSink{}).Render(roster, w); err != nil {
		s.log.Warn().Err(err).Msg("render roster html")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
