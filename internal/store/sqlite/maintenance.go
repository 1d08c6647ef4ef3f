package sqlite

import (
	"context"
	"fmt"

	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

// purge runs one orphan-removal statement in its own write transaction and
// returns the number of rows removed.
func (s *Store) purge(ctx context.Context, query string) (int64, error) {
	var removed int64
	err := s.inWriteTx(ctx, func(ctx context.Context) error {
		res, err := s.q(ctx).ExecContext(ctx, query)
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// count runs a cached COUNT(*) statement under a shared lock.
func (s *Store) count(ctx context.Context, name, query string) (int64, error) {
	var n int64
	err := s.withShared(ctx, func(ctx context.Context) error {
		st, err := s.stmts.Get(name, query)
		if err != nil {
			return err
		}
		n, err = st.QueryInt64(ctx)
		return err
	})
	return n, err
}

// CountBooks returns the number of books in the catalog.
func (s *Store) CountBooks(ctx context.Context) (int64, error) {
	return s.count(ctx, "countBooks", `SELECT COUNT(*) FROM books`)
}

// CountAuthors returns the number of authors.
func (s *Store) CountAuthors(ctx context.Context) (int64, error) {
	return s.count(ctx, "countAuthors", `SELECT COUNT(*) FROM authors`)
}

// CountSeries returns the number of series.
func (s *Store) CountSeries(ctx context.Context) (int64, error) {
	return s.count(ctx, "countSeries", `SELECT COUNT(*) FROM series`)
}

// CountPublishers returns the number of publishers.
func (s *Store) CountPublishers(ctx context.Context) (int64, error) {
	return s.count(ctx, "countPublishers", `SELECT COUNT(*) FROM publishers`)
}

// CountSearchRows returns the number of search index rows. Always equal to
// CountBooks when the index is healthy.
func (s *Store) CountSearchRows(ctx context.Context) (int64, error) {
	return s.count(ctx, "countSearchRows", `SELECT COUNT(*) FROM book_search`)
}

// FindLinkedEntityID resolves a linked entity by its normalized sort key.
// Returns ErrNotFound when no entity matches.
func (s *Store) FindLinkedEntityID(ctx context.Context, kind store.LinkedEntityKind, normalizedKey string) (int64, error) {
	var query, name string
	switch kind {
	case store.KindAuthor:
		name, query = "authorIDByKey", sqlAuthorIDByKey
	case store.KindSeries:
		name, query = "seriesIDByKey", `SELECT COALESCE(MIN(id), 0) FROM series WHERE sort_key = ?`
	case store.KindPublisher:
		name, query = "publisherIDByKey", `SELECT COALESCE(MIN(id), 0) FROM publishers WHERE sort_key = ?`
	case store.KindTOCEntry:
		name, query = "tocEntryIDByKeyAnyAuthor", `SELECT COALESCE(MIN(id), 0) FROM toc_entries WHERE sort_key = ?`
	case store.KindBookshelf:
		name, query = "shelfIDByKey", `SELECT COALESCE(MIN(id), 0) FROM shelves WHERE sort_key = ?`
	default:
		return 0, fmt.Errorf("unknown linked entity kind %q", kind)
	}

	var id int64
	err := s.withShared(ctx, func(ctx context.Context) error {
		st, err := s.stmts.Get(name, query)
		if err != nil {
			return err
		}
		id, err = st.QueryInt64(ctx, normalizedKey)
		return err
	})
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, store.ErrNotFound
	}
	return id, nil
}
