package store

import (
	"context"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
)

// Catalog is the persistence interface consumed by the HTTP layer and the
// maintenance tooling. The sqlite package provides the implementation.
type Catalog interface {
	// Lifecycle
	Close() error

	// Composite book writes
	WriteBook(ctx context.Context, in *domain.BookInput, opts domain.WriteOptions) (int64, error)
	DeleteBook(ctx context.Context, id int64) (bool, error)

	// Reads
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
	GetBookUUID(ctx context.Context, id int64) (string, error)
	BookIDByUUID(ctx context.Context, uuid string) (int64, error)
	FindLinkedEntityID(ctx context.Context, kind LinkedEntityKind, normalizedKey string) (int64, error)

	// Loans
	LendBook(ctx context.Context, bookID int64, loanee string) error
	ReturnBook(ctx context.Context, bookID int64) error
	GetLoanee(ctx context.Context, bookID int64) (string, error)

	// Search
	Search(ctx context.Context, query string, limit int) ([]int64, error)
	RebuildSearchIndex(ctx context.Context) error

	// Maintenance
	PurgeAuthors(ctx context.Context) (int64, error)
	PurgeSeries(ctx context.Context) (int64, error)
	PurgePublishers(ctx context.Context) (int64, error)
	PurgeShelves(ctx context.Context) (int64, error)
}
