package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfmarkapp/shelfmark-server/internal/http/response"
	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

const defaultSearchLimit = 50

// handleSearch returns the ids of books matching every term of the query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, "Query parameter q is required", s.logger)
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.BadRequest(w, "Invalid limit", s.logger)
			return
		}
		limit = parsed
	}

	ids, err := s.catalog.Search(r.Context(), query, limit)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	response.Success(w, map[string]any{"ids": ids}, s.logger)
}

// handleRebuildSearchIndex regenerates the entire search index.
func (s *Server) handleRebuildSearchIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.RebuildSearchIndex(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]string{"status": "rebuilt"}, s.logger)
}

// handleFindLinkedEntity resolves a linked entity id by kind and normalized
// key, for clients deduplicating before an import.
func (s *Server) handleFindLinkedEntity(w http.ResponseWriter, r *http.Request) {
	kind := store.LinkedEntityKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		response.BadRequest(w, "Unknown entity kind", s.logger)
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		response.BadRequest(w, "Query parameter key is required", s.logger)
		return
	}

	id, err := s.catalog.FindLinkedEntityID(r.Context(), kind, key)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]int64{"id": id}, s.logger)
}
