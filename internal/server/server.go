// Package server exposes the export orchestrator and dataset catalog over
// HTTP for polling clients.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/adaeze-okafor/stats-exporter/internal/common"
	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

type Server struct {
	Manager *export.Manager
	Catalog *dataset.Catalog
	Logger  *slog.Logger
	BaseURL string

	submitLimiter *rate.Limiter
}

// Option configures the server.
type Option func(*Server)

// WithSubmitLimit caps job submissions to rps with the given burst. Zero or
// negative rps disables the limiter.
func WithSubmitLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.submitLimiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func NewServer(manager *export.Manager, catalog *dataset.Catalog, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Manager: manager,
		Catalog: catalog,
		Logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/exports", func(r chi.Router) {
			r.With(s.limitSubmits).Post("/", s.handleCreateExport)
			r.Get("/", s.handleListExports)
			r.Get("/stats", s.handleExportStats)
			r.Get("/{id}", s.handleGetExport)
			r.Post("/{id}/cancel", s.handleCancelExport)
			r.Delete("/{id}", s.handleDeleteExport)
			r.Get("/{id}/download", s.handleDownloadExport)
		})
		r.Get("/formats", s.handleListFormats)
		r.Get("/themes", s.handleListThemes)
		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", s.handleListDatasets)
			r.Get("/{name}", s.handleGetDataset)
		})
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

// statusFor maps orchestrator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, export.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, export.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, export.ErrNotCancellable),
		errors.Is(err, export.ErrJobNotTerminal):
		return http.StatusConflict
	case errors.Is(err, export.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
