// Package domain contains the core business entities and domain logic for the Shelfmark catalog.
package domain

import "time"

// Book is the root record of the catalog: one physical or logical item.
//
// Identity is the surrogate integer ID plus an externally-visible UUID that
// is assigned once at insert and never changes afterwards. Every book must
// reference at least one author at all times.
type Book struct {
	ID            int64     `json:"id"`
	UUID          string    `json:"uuid"`
	Title         string    `json:"title"`
	ISBN          string    `json:"isbn,omitempty"`
	Description   string    `json:"description,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Genre         string    `json:"genre,omitempty"`
	Language      string    `json:"language,omitempty"`
	Location      string    `json:"location,omitempty"`
	DatePublished string    `json:"date_published,omitempty"`
	DateAdded     time.Time `json:"date_added"`
	LastUpdated   time.Time `json:"last_updated"`

	Authors     []Author    `json:"authors"`
	Series      []SeriesRef `json:"series,omitempty"`
	Publishers  []Publisher `json:"publishers,omitempty"`
	TOCEntries  []TOCEntry  `json:"toc_entries,omitempty"`
	Bookshelves []Bookshelf `json:"bookshelves,omitempty"`
	LoanedTo    string      `json:"loaned_to,omitempty"`
}

// Touch updates the LastUpdated timestamp to the current UTC time.
func (b *Book) Touch() {
	b.LastUpdated = time.Now().UTC()
}
