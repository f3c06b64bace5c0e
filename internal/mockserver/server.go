// Package mockserver is an in-memory fake of the adaptive-testing service.
// It serves fixed item banks in order and scores answers with a toy
// step estimator. Tests and the mock-server command use it.
package mockserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/adaptest/internal/client"
)

// MaxMetadataBytes is the largest encoded run metadata the server accepts.
const MaxMetadataBytes = 10 * 1024

// Server holds the fake service state. It is safe for concurrent use.
type Server struct {
	apiKey string
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	datasets []Dataset
	runs     map[string]*run
	projects []projectJSON
	journal  []string
}

// Option configures a Server.
type Option func(*Server)

// WithDatasets replaces the default item banks.
func WithDatasets(ds ...Dataset) Option {
	return func(s *Server) { s.datasets = ds }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server accepting apiKey.
func New(apiKey string, opts ...Option) *Server {
	s := &Server{
		apiKey:   apiKey,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		datasets: DefaultDatasets(),
		runs:     make(map[string]*run),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the router. Service endpoints live under /api and account
// endpoints under /admin, so a client pointed at <root>/api reaches both.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.authenticate)

	r.Route("/api", func(api chi.Router) {
		api.Post("/runs/start", s.handleStartRun)
		api.Post("/runs/continue", s.handleContinueRun)
		api.Get("/runs/adaptive/{runID}", s.handleRunSummary)
		api.Post("/runs/{runID}/replay", s.handleReplay)
		api.Post("/runs/classic", s.handleClassic)
		api.Get("/datasets", s.handleDatasets)
	})
	r.Route("/admin", func(admin chi.Router) {
		admin.Get("/api-keys/me", s.handleMe)
		admin.Get("/public/projects", s.handleListProjects)
		admin.Post("/public/projects", s.handleCreateProject)
	})
	return r
}

// Journal returns the recorded calls in order, e.g. "start DEMO1" or
// "continue demo1-q1-a".
func (s *Server) Journal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.journal)
}

// record appends to the journal. The caller holds s.mu.
func (s *Server) record(format string, args ...any) {
	s.journal = append(s.journal, fmt.Sprintf(format, args...))
}

func (s *Server) dataset(id string) (Dataset, bool) {
	for _, d := range s.datasets {
		if d.ID == id {
			return d, true
		}
	}
	return Dataset{}, false
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("fake service request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start),
		)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(client.APIKeyHeader) != s.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode reply", "error", err)
	}
}

// writeDetail writes the {"detail": ...} body used for 413 and 422 replies.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": what + " not found."})
}

// decodeBody decodes a JSON request body, answering 422 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Malformed request body: "+err.Error())
		return false
	}
	return true
}

// metadataTooLarge answers 413 when meta encodes to more than MaxMetadataBytes.
func metadataTooLarge(w http.ResponseWriter, meta map[string]any) bool {
	data, err := json.Marshal(meta)
	if err != nil || len(data) <= MaxMetadataBytes {
		return false
	}
	writeDetail(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Metadata is %d bytes, the limit is %d.", len(data), MaxMetadataBytes))
	return true
}
