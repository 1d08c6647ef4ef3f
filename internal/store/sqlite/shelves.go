package sqlite

import (
	"context"
	"fmt"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
	"github.com/shelfmarkapp/shelfmark-server/internal/sortkey"
)

const (
	sqlShelfIDByKey = `SELECT COALESCE(MIN(id), 0) FROM shelves WHERE sort_key = ?`
	sqlInsertShelf  = `INSERT INTO shelves (name, sort_key) VALUES (?, ?)`

	sqlDeleteBookShelves = `DELETE FROM book_shelves WHERE book_id = ?`
	sqlInsertBookShelf   = `INSERT INTO book_shelves (book_id, shelf_id) VALUES (?, ?)`
)

// resolveShelf finds or creates the bookshelf and fills in its id.
func (s *Store) resolveShelf(ctx context.Context, b *domain.Bookshelf) (int64, error) {
	if b.ID != 0 {
		return b.ID, nil
	}
	key := sortkey.Normalize(b.Name)
	if key == "" {
		return 0, fmt.Errorf("bookshelf has no name")
	}

	st, err := s.stmts.Get("shelfIDByKey", sqlShelfIDByKey)
	if err != nil {
		return 0, err
	}
	id, err := st.QueryInt64(ctx, key)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		ins, err := s.stmts.Get("insertShelf", sqlInsertShelf)
		if err != nil {
			return 0, err
		}
		res, err := ins.Exec(ctx, b.Name, key)
		if err != nil {
			return 0, fmt.Errorf("insert shelf %q: %w", b.Name, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	}
	b.ID = id
	return id, nil
}

// setBookShelves replaces the shelf memberships of a book. Membership is
// many-to-many and unordered, so the link rows carry no position; the
// replace algorithm still dedupes and stays atomic.
func (s *Store) setBookShelves(ctx context.Context, bookID int64, shelves []domain.Bookshelf) error {
	return replaceLinks(ctx, s, bookID, shelves, relation[domain.Bookshelf]{
		kind:       "bookshelf",
		deleteName: "deleteBookShelves",
		deleteSQL:  sqlDeleteBookShelves,
		insertName: "insertBookShelf",
		insertSQL:  sqlInsertBookShelf,
		resolve:    s.resolveShelf,
		dedupeKey: func(_ domain.Bookshelf, id int64) string {
			return fmt.Sprintf("%d", id)
		},
		insertArgs: func(bookID, entityID int64, _ int, _ domain.Bookshelf) []any {
			return []any{bookID, entityID}
		},
	})
}

// SetBookShelves replaces the shelf memberships of a book, participating in
// the caller's transaction or running in its own.
func (s *Store) SetBookShelves(ctx context.Context, bookID int64, shelves []domain.Bookshelf) error {
	return s.inWriteTx(ctx, func(ctx context.Context) error {
		return s.setBookShelves(ctx, bookID, shelves)
	})
}

// GetBookShelves returns the shelves a book sits on, by name.
func (s *Store) GetBookShelves(ctx context.Context, bookID int64) ([]domain.Bookshelf, error) {
	var shelves []domain.Bookshelf
	err := s.withShared(ctx, func(ctx context.Context) error {
		rows, err := s.q(ctx).QueryContext(ctx, `
			SELECT sh.id, sh.name
			FROM shelves sh
			JOIN book_shelves bs ON bs.shelf_id = sh.id
			WHERE bs.book_id = ?
			ORDER BY sh.sort_key ASC`, bookID)
		if err != nil {
			return fmt.Errorf("query book shelves: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var sh domain.Bookshelf
			if err := rows.Scan(&sh.ID, &sh.Name); err != nil {
				return fmt.Errorf("scan shelf: %w", err)
			}
			shelves = append(shelves, sh)
		}
		return rows.Err()
	})
	return shelves, err
}

// PurgeShelves deletes shelves with no remaining book memberships.
func (s *Store) PurgeShelves(ctx context.Context) (int64, error) {
	return s.purge(ctx, `
		DELETE FROM shelves
		WHERE id NOT IN (SELECT shelf_id FROM book_shelves)`)
}
