package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

const (
	sqlAuthorIDByKey = `SELECT COALESCE(MIN(id), 0) FROM authors WHERE sort_key = ?`
	sqlInsertAuthor  = `INSERT INTO authors (family_name, given_names, sort_key) VALUES (?, ?, ?)`

	sqlDeleteBookAuthors = `DELETE FROM book_authors WHERE book_id = ?`
	sqlInsertBookAuthor  = `INSERT INTO book_authors (book_id, author_id, position) VALUES (?, ?, ?)`
)

// authorIDByKey returns the author id for a normalized sort key, 0 when absent.
func (s *Store) authorIDByKey(ctx context.Context, key string) (int64, error) {
	st, err := s.stmts.Get("authorIDByKey", sqlAuthorIDByKey)
	if err != nil {
		return 0, err
	}
	return st.QueryInt64(ctx, key)
}

// resolveAuthor finds or creates the author and fills in its id. Authors are
// never updated as a side effect of a book write.
func (s *Store) resolveAuthor(ctx context.Context, a *domain.Author) (int64, error) {
	if a.ID != 0 {
		return a.ID, nil
	}

	key := a.SortKey()
	if key == "" {
		return 0, domain.ErrBlankAuthor
	}

	id, err := s.authorIDByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		ins, err := s.stmts.Get("insertAuthor", sqlInsertAuthor)
		if err != nil {
			return 0, err
		}
		res, err := ins.Exec(ctx, a.FamilyName, a.GivenNames, key)
		if err != nil {
			return 0, fmt.Errorf("insert author %q: %w", a.DisplayName(), err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	}
	a.ID = id
	return id, nil
}

// setBookAuthors replaces all author links for a book. Requires an active
// transaction.
func (s *Store) setBookAuthors(ctx context.Context, bookID int64, authors []domain.Author) error {
	return replaceLinks(ctx, s, bookID, authors, relation[domain.Author]{
		kind:       "author",
		deleteName: "deleteBookAuthors",
		deleteSQL:  sqlDeleteBookAuthors,
		insertName: "insertBookAuthor",
		insertSQL:  sqlInsertBookAuthor,
		resolve:    s.resolveAuthor,
		dedupeKey: func(_ domain.Author, id int64) string {
			return fmt.Sprintf("%d", id)
		},
		insertArgs: func(bookID, entityID int64, pos int, _ domain.Author) []any {
			return []any{bookID, entityID, pos}
		},
	})
}

// SetBookAuthors replaces the ordered author list of a book, participating
// in the caller's transaction or running in its own.
func (s *Store) SetBookAuthors(ctx context.Context, bookID int64, authors []domain.Author) error {
	if len(authors) == 0 {
		return store.NewWriteError(fmt.Sprintf("book %d", bookID), domain.ErrAuthorRequired)
	}
	return s.inWriteTx(ctx, func(ctx context.Context) error {
		return s.setBookAuthors(ctx, bookID, authors)
	})
}

// GetBookAuthors returns the authors of a book in link order.
func (s *Store) GetBookAuthors(ctx context.Context, bookID int64) ([]domain.Author, error) {
	var authors []domain.Author
	err := s.withShared(ctx, func(ctx context.Context) error {
		rows, err := s.q(ctx).QueryContext(ctx, `
			SELECT a.id, a.family_name, a.given_names
			FROM authors a
			JOIN book_authors ba ON ba.author_id = a.id
			WHERE ba.book_id = ?
			ORDER BY ba.position ASC`, bookID)
		if err != nil {
			return fmt.Errorf("query book authors: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var a domain.Author
			if err := rows.Scan(&a.ID, &a.FamilyName, &a.GivenNames); err != nil {
				return fmt.Errorf("scan author: %w", err)
			}
			authors = append(authors, a)
		}
		return rows.Err()
	})
	return authors, err
}

// GetAuthor returns one author by id.
func (s *Store) GetAuthor(ctx context.Context, id int64) (*domain.Author, error) {
	var a domain.Author
	err := s.withShared(ctx, func(ctx context.Context) error {
		row := s.q(ctx).QueryRowContext(ctx,
			`SELECT id, family_name, given_names FROM authors WHERE id = ?`, id)
		if err := row.Scan(&a.ID, &a.FamilyName, &a.GivenNames); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return fmt.Errorf("scan author: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// PurgeAuthors deletes authors no longer referenced by any book or TOC
// entry. Maintenance operation; never part of the write path.
func (s *Store) PurgeAuthors(ctx context.Context) (int64, error) {
	return s.purge(ctx, `
		DELETE FROM authors
		WHERE id NOT IN (SELECT author_id FROM book_authors)
		  AND id NOT IN (SELECT author_id FROM toc_entries)`)
}
