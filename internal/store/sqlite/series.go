package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
	"github.com/shelfmarkapp/shelfmark-server/internal/sortkey"
)

const (
	sqlSeriesIDByKeys = `SELECT COALESCE(MIN(id), 0) FROM series WHERE sort_key IN (?, ?)`
	sqlInsertSeries   = `INSERT INTO series (title, sort_key) VALUES (?, ?)`

	sqlDeleteBookSeries = `DELETE FROM book_series WHERE book_id = ?`
	sqlInsertBookSeries = `INSERT INTO book_series (book_id, series_id, series_number, position) VALUES (?, ?, ?, ?)`
)

// titleKeys returns the lookup keys for a title: the literal form and the
// article-moved variant, so "The Foo" and "Foo, The" match the same row
// whichever spelling the stored row holds. A title with a leading article
// gets the reordered variant; one with a trailing article gets the restored
// variant. Batch mode skips the variant to keep bulk imports cheap.
func titleKeys(title string, batch bool) (string, string) {
	key := sortkey.Normalize(title)
	if batch {
		return key, key
	}
	alt := sortkey.Normalize(sortkey.ReorderArticle(title))
	if alt == key {
		alt = sortkey.Normalize(sortkey.RestoreArticle(title))
	}
	return key, alt
}

// resolveSeries finds or creates the series and fills in its id.
func (s *Store) resolveSeries(batch bool) func(ctx context.Context, ref *domain.SeriesRef) (int64, error) {
	return func(ctx context.Context, ref *domain.SeriesRef) (int64, error) {
		if ref.ID != 0 {
			return ref.ID, nil
		}
		key, alt := titleKeys(ref.Title, batch)
		if key == "" {
			return 0, fmt.Errorf("series has no title")
		}

		st, err := s.stmts.Get("seriesIDByKeys", sqlSeriesIDByKeys)
		if err != nil {
			return 0, err
		}
		id, err := st.QueryInt64(ctx, key, alt)
		if err != nil {
			return 0, err
		}
		if id == 0 {
			ins, err := s.stmts.Get("insertSeries", sqlInsertSeries)
			if err != nil {
				return 0, err
			}
			res, err := ins.Exec(ctx, ref.Title, key)
			if err != nil {
				return 0, fmt.Errorf("insert series %q: %w", ref.Title, err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return 0, err
			}
		}
		ref.ID = id
		return id, nil
	}
}

// setBookSeries replaces all series links for a book. Requires an active
// transaction. The dedupe key includes the series number: the same series
// may legitimately appear twice at different numbers.
func (s *Store) setBookSeries(ctx context.Context, bookID int64, refs []domain.SeriesRef, batch bool) error {
	return replaceLinks(ctx, s, bookID, refs, relation[domain.SeriesRef]{
		kind:       "series",
		deleteName: "deleteBookSeries",
		deleteSQL:  sqlDeleteBookSeries,
		insertName: "insertBookSeries",
		insertSQL:  sqlInsertBookSeries,
		resolve:    s.resolveSeries(batch),
		dedupeKey: func(ref domain.SeriesRef, id int64) string {
			return fmt.Sprintf("%d(%s)", id, strings.ToUpper(ref.Number))
		},
		insertArgs: func(bookID, entityID int64, pos int, ref domain.SeriesRef) []any {
			return []any{bookID, entityID, ref.Number, pos}
		},
	})
}

// SetBookSeries replaces the ordered series list of a book, participating in
// the caller's transaction or running in its own.
func (s *Store) SetBookSeries(ctx context.Context, bookID int64, refs []domain.SeriesRef) error {
	return s.inWriteTx(ctx, func(ctx context.Context) error {
		return s.setBookSeries(ctx, bookID, refs, false)
	})
}

// GetBookSeries returns the series of a book in link order.
func (s *Store) GetBookSeries(ctx context.Context, bookID int64) ([]domain.SeriesRef, error) {
	var refs []domain.SeriesRef
	err := s.withShared(ctx, func(ctx context.Context) error {
		rows, err := s.q(ctx).QueryContext(ctx, `
			SELECT sr.id, sr.title, bs.series_number
			FROM series sr
			JOIN book_series bs ON bs.series_id = sr.id
			WHERE bs.book_id = ?
			ORDER BY bs.position ASC`, bookID)
		if err != nil {
			return fmt.Errorf("query book series: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ref domain.SeriesRef
			if err := rows.Scan(&ref.ID, &ref.Title, &ref.Number); err != nil {
				return fmt.Errorf("scan series: %w", err)
			}
			refs = append(refs, ref)
		}
		return rows.Err()
	})
	return refs, err
}

// PurgeSeries deletes series no longer referenced by any book.
func (s *Store) PurgeSeries(ctx context.Context) (int64, error) {
	return s.purge(ctx, `
		DELETE FROM series
		WHERE id NOT IN (SELECT series_id FROM book_series)`)
}
