package domain

import (
	"errors"
	"time"
)

// BookInput is the write payload for a book: root field deltas plus ordered
// relation lists.
//
// Root fields are pointers so that partial updates can distinguish "absent"
// from "set to empty": a nil field is left untouched in storage. Relation
// slices follow the same rule at the slice level — a nil slice means the
// relation is absent from the payload, an empty non-nil slice clears it.
type BookInput struct {
	// ID selects the book to update. Zero means insert, unless
	// WriteOptions.PreserveID trusts an externally supplied id.
	ID int64 `json:"id,omitempty"`

	Title         *string `json:"title,omitempty"`
	ISBN          *string `json:"isbn,omitempty"`
	Description   *string `json:"description,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	Genre         *string `json:"genre,omitempty"`
	Language      *string `json:"language,omitempty"`
	Location      *string `json:"location,omitempty"`
	DatePublished *string `json:"date_published,omitempty"`

	// LastUpdated is honored only with WriteOptions.PreserveTimestamp
	// (restore-from-backup flows); otherwise the store stamps the write.
	LastUpdated *time.Time `json:"last_updated,omitempty"`

	Authors     []Author    `json:"authors,omitempty"`
	Series      []SeriesRef `json:"series,omitempty"`
	Publishers  []Publisher `json:"publishers,omitempty"`
	TOCEntries  []TOCEntry  `json:"toc_entries,omitempty"`
	Bookshelves []Bookshelf `json:"bookshelves,omitempty"`

	// LoanedTo replaces the loan state: nil leaves it alone, empty string
	// returns the book, anything else records the loanee.
	LoanedTo *string `json:"loaned_to,omitempty"`
}

// WriteOptions are the write-mode flags accepted by the composite writer.
type WriteOptions struct {
	// BatchMode skips expensive per-item housekeeping during bulk import.
	BatchMode bool
	// PreserveID trusts the id supplied in the payload on insert.
	PreserveID bool
	// PreserveTimestamp trusts the supplied last-modified timestamp.
	PreserveTimestamp bool
}

// Validation errors returned by BookInput.Validate.
var (
	ErrTitleRequired  = errors.New("book title is required")
	ErrAuthorRequired = errors.New("book requires at least one author")
	ErrBlankAuthor    = errors.New("author has no name")
)

// IsInsert reports whether the payload describes a new book.
func (in *BookInput) IsInsert(opts WriteOptions) bool {
	return in.ID == 0 || opts.PreserveID
}

// Validate checks the payload against the root-record invariants.
// Inserts must carry a title and at least one author; updates must not
// empty the author list when they touch it.
func (in *BookInput) Validate(opts WriteOptions) error {
	insert := in.IsInsert(opts)

	if insert {
		if in.Title == nil || *in.Title == "" {
			return ErrTitleRequired
		}
		if len(in.Authors) == 0 {
			return ErrAuthorRequired
		}
	} else if in.Authors != nil && len(in.Authors) == 0 {
		// An update may leave authors alone, but never remove them all.
		return ErrAuthorRequired
	}

	for _, a := range in.Authors {
		if a.ID == 0 && a.SortKey() == "" {
			return ErrBlankAuthor
		}
	}

	if in.Title != nil && *in.Title == "" && !insert {
		return ErrTitleRequired
	}

	return nil
}
