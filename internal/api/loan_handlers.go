package api

import (
	"github.com/go-json-experiment/json"
	"net/http"

	"github.com/shelfmarkapp/shelfmark-server/internal/http/response"
)

// LoanRequest names the borrower a book is handed to.
type LoanRequest struct {
	LoanedTo string `json:"loaned_to" validate:"required,max=255"`
}

// handleLendBook records a loan, replacing any existing one.
func (s *Server) handleLendBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	var req LoanRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.catalog.LendBook(r.Context(), id, req.LoanedTo); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]string{"loaned_to": req.LoanedTo}, s.logger)
}

// handleReturnBook clears the loan record.
func (s *Server) handleReturnBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	if err := s.catalog.ReturnBook(r.Context(), id); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
