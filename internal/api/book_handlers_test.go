package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
)

func createBook(t *testing.T, srv *Server, payload map[string]any) domain.Book {
	t.Helper()

	w := doJSON(t, srv, http.MethodPost, "/api/v1/books", payload)
	require.Equal(t, http.StatusCreated, w.Code, "create failed: %s", w.Body.String())

	var book domain.Book
	decodeData(t, w, &book)
	return book
}

func TestCreateBook(t *testing.T) {
	srv := setupTestServer(t)

	book := createBook(t, srv, map[string]any{
		"title": "The Left Hand of Darkness",
		"authors": []map[string]any{
			{"family_name": "Le Guin", "given_names": "Ursula K."},
		},
		"series":     []map[string]any{{"title": "Hainish Cycle", "number": "4"}},
		"publishers": []map[string]any{{"name": "Ace Books"}},
	})

	assert.NotZero(t, book.ID)
	assert.NotEmpty(t, book.UUID)
	assert.Equal(t, "The Left Hand of Darkness", book.Title)
	require.Len(t, book.Authors, 1)
	assert.Equal(t, "Le Guin", book.Authors[0].FamilyName)
	require.Len(t, book.Series, 1)
	assert.Equal(t, "4", book.Series[0].Number)
	require.Len(t, book.Publishers, 1)
}

func TestCreateBook_MissingTitle(t *testing.T) {
	srv := setupTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/books", map[string]any{
		"authors": []map[string]any{{"family_name": "Nobody"}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBook_MissingAuthors(t *testing.T) {
	srv := setupTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/books", map[string]any{
		"title": "Anonymous Work",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBook_InvalidBody(t *testing.T) {
	srv := setupTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/books", "not an object")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBook(t *testing.T) {
	srv := setupTestServer(t)
	created := createBook(t, srv, map[string]any{
		"title":   "Ficciones",
		"authors": []map[string]any{{"family_name": "Borges", "given_names": "Jorge Luis"}},
	})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/books/"+itoa(created.ID), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var book domain.Book
	decodeData(t, w, &book)
	assert.Equal(t, created.ID, book.ID)
	assert.Equal(t, created.UUID, book.UUID)
}

func TestGetBook_NotFound(t *testing.T) {
	srv := setupTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/books/999", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBook_InvalidID(t *testing.T) {
	srv := setupTestServer(t)

	for _, path := range []string{"/api/v1/books/abc", "/api/v1/books/0", "/api/v1/books/-3"} {
		w := doJSON(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "path %s", path)
	}
}

func TestGetBookByUUID(t *testing.T) {
	srv := setupTestServer(t)
	created := createBook(t, srv, map[string]any{
		"title":   "Kindred",
		"authors": []map[string]any{{"family_name": "Butler", "given_names": "Octavia E."}},
	})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/books/uuid/"+created.UUID, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var book domain.Book
	decodeData(t, w, &book)
	assert.Equal(t, created.ID, book.ID)

	missing := doJSON(t, srv, http.MethodGet, "/api/v1/books/uuid/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestUpdateBook_Partial(t *testing.T) {
	srv := setupTestServer(t)
	created := createBook(t, srv, map[string]any{
		"title":   "Solaris",
		"notes":   "first edition",
		"authors": []map[string]any{{"family_name": "Lem", "given_names": "Stanislaw"}},
	})

	// Only the title is present in the patch; notes and authors must survive.
	w := doJSON(t, srv, http.MethodPatch, "/api/v1/books/"+itoa(created.ID), map[string]any{
		"title": "Solaris (revised)",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var book domain.Book
	decodeData(t, w, &book)
	assert.Equal(t, "Solaris (revised)", book.Title)
	assert.Equal(t, "first edition", book.Notes)
	require.Len(t, book.Authors, 1)
	assert.Equal(t, created.UUID, book.UUID, "UUID never changes on update")
}

func TestUpdateBook_ClearRelations(t *testing.T) {
	srv := setupTestServer(t)
	created := createBook(t, srv, map[string]any{
		"title":   "Dune",
		"authors": []map[string]any{{"family_name": "Herbert", "given_names": "Frank"}},
		"series":  []map[string]any{{"title": "Dune Chronicles", "number": "1"}},
	})

	w := doJSON(t, srv, http.MethodPatch, "/api/v1/books/"+itoa(created.ID), map[string]any{
		"series": []map[string]any{},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var book domain.Book
	decodeData(t, w, &book)
	assert.Empty(t, book.Series)
	require.Len(t, book.Authors, 1, "authors absent from the patch are untouched")
}

func TestUpdateBook_NotFound(t *testing.T) {
	srv := setupTestServer(t)

	w := doJSON(t, srv, http.MethodPatch, "/api/v1/books/424242", map[string]any{
		"title": "Ghost",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteBook(t *testing.T) {
	srv := setupTestServer(t)
	created := createBook(t, srv, map[string]any{
		"title":   "Disposable",
		"authors": []map[string]any{{"family_name": "Shredder"}},
	})

	w := doJSON(t, srv, http.MethodDelete, "/api/v1/books/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	again := doJSON(t, srv, http.MethodDelete, "/api/v1/books/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, again.Code)

	get := doJSON(t, srv, http.MethodGet, "/api/v1/books/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, get.Code)
}

func TestLoanLifecycle(t *testing.T) {
	srv := setupTestServer(t)
	created := createBook(t, srv, map[string]any{
		"title":   "Lendable",
		"authors": []map[string]any{{"family_name": "Sharer"}},
	})
	path := "/api/v1/books/" + itoa(created.ID) + "/loan"

	lend := doJSON(t, srv, http.MethodPost, path, map[string]any{"loaned_to": "Alice"})
	assert.Equal(t, http.StatusOK, lend.Code)

	get := doJSON(t, srv, http.MethodGet, "/api/v1/books/"+itoa(created.ID), nil)
	var loaned domain.Book
	decodeData(t, get, &loaned)
	assert.Equal(t, "Alice", loaned.LoanedTo)

	ret := doJSON(t, srv, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, ret.Code)

	// Decode into a fresh struct: loaned_to is omitempty, so an absent field
	// would leave a stale value behind in a reused one.
	get = doJSON(t, srv, http.MethodGet, "/api/v1/books/"+itoa(created.ID), nil)
	var returned domain.Book
	decodeData(t, get, &returned)
	assert.Empty(t, returned.LoanedTo)
}

func TestLendBook_MissingBorrower(t *testing.T) {
	srv := setupTestServer(t)
	created := createBook(t, srv, map[string]any{
		"title":   "Unlendable",
		"authors": []map[string]any{{"family_name": "Keeper"}},
	})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/books/"+itoa(created.ID)+"/loan", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "loaned_to")
}
