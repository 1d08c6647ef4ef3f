package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfmarkapp/shelfmark-server/internal/sortkey"
	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

// Search projection SQL. One row per book, every text field ASCII-folded
// before storage so matching is a plain case-blind LIKE.
const (
	sqlSearchProjection = `
		SELECT b.title, b.notes,
		       (SELECT COALESCE(group_concat(a.given_names || ' ' || a.family_name, ' '), '')
		        FROM authors a JOIN book_authors ba ON ba.author_id = a.id
		        WHERE ba.book_id = b.id),
		       (SELECT COALESCE(group_concat(se.title, ' '), '')
		        FROM series se JOIN book_series bs ON bs.series_id = se.id
		        WHERE bs.book_id = b.id),
		       (SELECT COALESCE(group_concat(p.name, ' '), '')
		        FROM publishers p JOIN book_publishers bp ON bp.publisher_id = p.id
		        WHERE bp.book_id = b.id),
		       (SELECT COALESCE(group_concat(t.title, ' '), '')
		        FROM toc_entries t JOIN book_toc_entries bt ON bt.toc_entry_id = t.id
		        WHERE bt.book_id = b.id)
		FROM books b WHERE b.id = ?`

	sqlUpsertSearchRow = `
		INSERT INTO book_search
			(book_id, title, author_names, series_titles, publisher_names, toc_titles, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			title = excluded.title,
			author_names = excluded.author_names,
			series_titles = excluded.series_titles,
			publisher_names = excluded.publisher_names,
			toc_titles = excluded.toc_titles,
			notes = excluded.notes`
)

type searchRow struct {
	title      string
	authors    string
	series     string
	publishers string
	toc        string
	notes      string
}

// buildSearchRow projects one book into its folded search row. Must run
// inside the transaction (or lock) that covers the book's current state.
func (s *Store) buildSearchRow(ctx context.Context, bookID int64) (searchRow, error) {
	var r searchRow
	row := s.q(ctx).QueryRowContext(ctx, sqlSearchProjection, bookID)
	if err := row.Scan(&r.title, &r.notes, &r.authors, &r.series, &r.publishers, &r.toc); err != nil {
		return r, fmt.Errorf("project book %d: %w", bookID, err)
	}
	r.title = sortkey.Fold(r.title)
	r.authors = sortkey.Fold(r.authors)
	r.series = sortkey.Fold(r.series)
	r.publishers = sortkey.Fold(r.publishers)
	r.toc = sortkey.Fold(r.toc)
	r.notes = sortkey.Fold(r.notes)
	return r, nil
}

// reindexBookTx refreshes the search row for one book inside the caller's
// transaction, so the row commits or rolls back together with the book write
// it mirrors.
func (s *Store) reindexBookTx(ctx context.Context, bookID int64) error {
	if _, err := s.txn.requireTx(ctx); err != nil {
		return err
	}
	r, err := s.buildSearchRow(ctx, bookID)
	if err != nil {
		return err
	}
	up, err := s.stmts.Get("upsertSearchRow", sqlUpsertSearchRow)
	if err != nil {
		return err
	}
	if _, err := up.Exec(ctx, bookID, r.title, r.authors, r.series, r.publishers, r.toc, r.notes); err != nil {
		return fmt.Errorf("upsert search row for book %d: %w", bookID, err)
	}
	return nil
}

// Search returns the ids of books matching every whitespace-separated term of
// the query, as case- and diacritic-blind substring matches over the
// denormalized rows. Results are ordered by folded title. A non-positive
// limit returns everything.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]int64, error) {
	terms := strings.Fields(sortkey.Fold(query))
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	var (
		conds []string
		args  []any
	)
	for _, term := range terms {
		conds = append(conds,
			`(title || ' ' || author_names || ' ' || series_titles || ' ' ||
			  publisher_names || ' ' || toc_titles || ' ' || notes) LIKE ?`)
		args = append(args, "%"+term+"%")
	}
	args = append(args, limit)

	var ids []int64
	err := s.withShared(ctx, func(ctx context.Context) error {
		rows, err := s.q(ctx).QueryContext(ctx, fmt.Sprintf(`
			SELECT book_id FROM book_search
			WHERE %s
			ORDER BY title ASC, book_id ASC
			LIMIT ?`, strings.Join(conds, " AND ")), args...)
		if err != nil {
			return fmt.Errorf("query search: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan search hit: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

// RebuildSearchIndex regenerates every search row from scratch into a side
// table, then swaps the side table in.
//
// The fill runs in one write transaction. The swap - dropping the stale
// table and renaming the side table into place - is schema DDL and runs
// outside any transaction, under a single uninterrupted exclusive hold so no
// reader can observe the gap between drop and rename. Refuses to run while
// the caller already holds a transaction, since the swap could not then be
// kept outside it.
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	if s.txn.InTransaction(ctx) {
		return store.ErrTransactionOpen
	}

	var ids []int64
	err := s.inWriteTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		if _, err := q.ExecContext(ctx, `DROP TABLE IF EXISTS book_search_rebuild`); err != nil {
			return fmt.Errorf("drop stale rebuild table: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			CREATE TABLE book_search_rebuild (
				book_id         INTEGER PRIMARY KEY REFERENCES books(id) ON DELETE CASCADE,
				title           TEXT NOT NULL DEFAULT '',
				author_names    TEXT NOT NULL DEFAULT '',
				series_titles   TEXT NOT NULL DEFAULT '',
				publisher_names TEXT NOT NULL DEFAULT '',
				toc_titles      TEXT NOT NULL DEFAULT '',
				notes           TEXT NOT NULL DEFAULT ''
			)`); err != nil {
			return fmt.Errorf("create rebuild table: %w", err)
		}

		rows, err := q.QueryContext(ctx, `SELECT id FROM books ORDER BY id ASC`)
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan book id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			r, err := s.buildSearchRow(ctx, id)
			if err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO book_search_rebuild
					(book_id, title, author_names, series_titles, publisher_names, toc_titles, notes)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, r.title, r.authors, r.series, r.publishers, r.toc, r.notes); err != nil {
				return fmt.Errorf("fill search row for book %d: %w", id, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	// Swap in the rebuilt table. Both statements are DDL outside any
	// transaction; the exclusive hold spans the drop and the rename, so a
	// reader never finds book_search missing.
	lock, err := s.arbiter.AcquireExclusive()
	if err != nil {
		return err
	}
	defer func() {
		if relErr := s.arbiter.Release(lock); relErr != nil {
			s.logger.Warn("releasing rebuild lock", "error", relErr)
		}
	}()
	if _, err := s.db.ExecContext(ctx, `DROP TABLE book_search`); err != nil {
		return fmt.Errorf("drop search table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `ALTER TABLE book_search_rebuild RENAME TO book_search`); err != nil {
		return fmt.Errorf("swap in rebuilt search table: %w", err)
	}
	s.logger.Info("search index rebuilt", "books", len(ids))
	return nil
}
