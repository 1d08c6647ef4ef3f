// Package api provides the HTTP API server and handlers for the Shelfmark catalog.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shelfmarkapp/shelfmark-server/internal/ratelimit"
	"github.com/shelfmarkapp/shelfmark-server/internal/store"
	"github.com/shelfmarkapp/shelfmark-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	catalog   store.Catalog
	validator *validation.Validator
	writes    *ratelimit.KeyedRateLimiter
	router    *chi.Mux
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(catalog store.Catalog, validator *validation.Validator, writes *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Server {
	s := &Server{
		catalog:   catalog,
		validator: validator,
		writes:    writes,
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/{id}", s.handleGetBook)
			r.Get("/uuid/{uuid}", s.handleGetBookByUUID)

			// Writes share the per-client budget.
			r.Group(func(r chi.Router) {
				r.Use(s.limitWrites)
				r.Post("/", s.handleCreateBook)
				r.Patch("/{id}", s.handleUpdateBook)
				r.Delete("/{id}", s.handleDeleteBook)
				r.Post("/{id}/loan", s.handleLendBook)
				r.Delete("/{id}/loan", s.handleReturnBook)
			})
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/{kind}", s.handleFindLinkedEntity)
		})

		r.Route("/search", func(r chi.Router) {
			r.Get("/", s.handleSearch)
			r.With(s.limitWrites).Post("/rebuild", s.handleRebuildSearchIndex)
		})
	})
}
