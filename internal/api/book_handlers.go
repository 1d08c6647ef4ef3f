package api

import (
	"github.com/go-json-experiment/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
	"github.com/shelfmarkapp/shelfmark-server/internal/http/response"
)

// BookWriteRequest is the JSON write payload: the book input plus the write
// mode flags. The input's pointer fields give true PATCH semantics - a field
// absent from the body is left untouched.
type BookWriteRequest struct {
	domain.BookInput
	BatchMode         bool `json:"batch_mode,omitempty"`
	PreserveID        bool `json:"preserve_id,omitempty"`
	PreserveTimestamp bool `json:"preserve_timestamp,omitempty"`
}

func (req *BookWriteRequest) options() domain.WriteOptions {
	return domain.WriteOptions{
		BatchMode:         req.BatchMode,
		PreserveID:        req.PreserveID,
		PreserveTimestamp: req.PreserveTimestamp,
	}
}

// handleCreateBook inserts a new book with its relations.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req BookWriteRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	id, err := s.catalog.WriteBook(r.Context(), &req.BookInput, req.options())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	book, err := s.catalog.GetBook(r.Context(), id)
	if err != nil {
		s.logger.Warn("Failed to load book after create", "error", err, "book_id", id)
		response.Created(w, map[string]int64{"id": id}, s.logger)
		return
	}
	response.Created(w, book, s.logger)
}

// handleUpdateBook applies a partial update (PATCH semantics). Only fields
// present in the request body are written.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	var req BookWriteRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	req.ID = id
	req.PreserveID = false

	if _, err := s.catalog.WriteBook(r.Context(), &req.BookInput, req.options()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	book, err := s.catalog.GetBook(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleDeleteBook removes a book and everything hanging off it.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	deleted, err := s.catalog.DeleteBook(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if !deleted {
		response.NotFound(w, "Book not found", s.logger)
		return
	}
	response.NoContent(w)
}

// handleGetBook returns a book with all relations.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	book, err := s.catalog.GetBook(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleGetBookByUUID resolves a book through its stable UUID.
func (s *Server) handleGetBookByUUID(w http.ResponseWriter, r *http.Request) {
	bookUUID := chi.URLParam(r, "uuid")
	if bookUUID == "" {
		response.BadRequest(w, "Book UUID is required", s.logger)
		return
	}

	id, err := s.catalog.BookIDByUUID(r.Context(), bookUUID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	book, err := s.catalog.GetBook(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// bookID parses the {id} route parameter, writing the error response itself.
func (s *Server) bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		response.BadRequest(w, "Invalid book ID", s.logger)
		return 0, false
	}
	return id, true
}
