package domain

import (
	"strings"

	"github.com/shelfmarkapp/shelfmark-server/internal/sortkey"
)

// Author is a contributor referenced by one or more books.
type Author struct {
	ID         int64  `json:"id"`
	FamilyName string `json:"family_name"`
	GivenNames string `json:"given_names,omitempty"`
}

// DisplayName returns "Given Family".
func (a Author) DisplayName() string {
	if a.GivenNames == "" {
		return a.FamilyName
	}
	return a.GivenNames + " " + a.FamilyName
}

// SortKey returns the normalized lookup key, family name first.
func (a Author) SortKey() string {
	return sortkey.Normalize(strings.TrimSpace(a.FamilyName + " " + a.GivenNames))
}

// Series is a named collection of books with an ordering of its own.
type Series struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// SortKey returns the normalized lookup key.
func (s Series) SortKey() string {
	return sortkey.Normalize(s.Title)
}

// SeriesRef links a book into a series, optionally at a number within it.
// Number is free text ("2", "2.1", "Omnibus").
type SeriesRef struct {
	Series
	Number string `json:"number,omitempty"`
}

// Publisher is a publishing house referenced by books.
type Publisher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SortKey returns the normalized lookup key.
func (p Publisher) SortKey() string {
	return sortkey.Normalize(p.Name)
}

// TOCEntry is a single work inside an anthology or collection. Entries are
// shared across books: the same story may appear in several collections, so
// unlike other linked entities a book write may correct the entry itself
// (title and first-publication date).
type TOCEntry struct {
	ID               int64  `json:"id"`
	Author           Author `json:"author"`
	Title            string `json:"title"`
	FirstPublication string `json:"first_publication,omitempty"`
}

// SortKey returns the normalized lookup key for the entry title.
func (t TOCEntry) SortKey() string {
	return sortkey.Normalize(t.Title)
}

// Bookshelf is a user-defined shelf a book can be placed on. Membership is
// unordered; a book may sit on many shelves.
type Bookshelf struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SortKey returns the normalized lookup key.
func (b Bookshelf) SortKey() string {
	return sortkey.Normalize(b.Name)
}

// Loan records that a book is currently lent out. At most one per book.
type Loan struct {
	BookID   int64  `json:"book_id"`
	LoanedTo string `json:"loaned_to"`
}
