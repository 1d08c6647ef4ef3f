package sqlite

import (
	"context"
	"fmt"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
)

const (
	sqlPublisherIDByKeys = `SELECT COALESCE(MIN(id), 0) FROM publishers WHERE sort_key IN (?, ?)`
	sqlInsertPublisher   = `INSERT INTO publishers (name, sort_key) VALUES (?, ?)`

	sqlDeleteBookPublishers = `DELETE FROM book_publishers WHERE book_id = ?`
	sqlInsertBookPublisher  = `INSERT INTO book_publishers (book_id, publisher_id, position) VALUES (?, ?, ?)`
)

// resolvePublisher finds or creates the publisher and fills in its id.
// Like series titles, publisher names match against the literal form and
// the article-reordered variant.
func (s *Store) resolvePublisher(batch bool) func(ctx context.Context, p *domain.Publisher) (int64, error) {
	return func(ctx context.Context, p *domain.Publisher) (int64, error) {
		if p.ID != 0 {
			return p.ID, nil
		}
		key, alt := titleKeys(p.Name, batch)
		if key == "" {
			return 0, fmt.Errorf("publisher has no name")
		}

		st, err := s.stmts.Get("publisherIDByKeys", sqlPublisherIDByKeys)
		if err != nil {
			return 0, err
		}
		id, err := st.QueryInt64(ctx, key, alt)
		if err != nil {
			return 0, err
		}
		if id == 0 {
			ins, err := s.stmts.Get("insertPublisher", sqlInsertPublisher)
			if err != nil {
				return 0, err
			}
			res, err := ins.Exec(ctx, p.Name, key)
			if err != nil {
				return 0, fmt.Errorf("insert publisher %q: %w", p.Name, err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return 0, err
			}
		}
		p.ID = id
		return id, nil
	}
}

// setBookPublishers replaces all publisher links for a book. Requires an
// active transaction.
func (s *Store) setBookPublishers(ctx context.Context, bookID int64, pubs []domain.Publisher, batch bool) error {
	return replaceLinks(ctx, s, bookID, pubs, relation[domain.Publisher]{
		kind:       "publisher",
		deleteName: "deleteBookPublishers",
		deleteSQL:  sqlDeleteBookPublishers,
		insertName: "insertBookPublisher",
		insertSQL:  sqlInsertBookPublisher,
		resolve:    s.resolvePublisher(batch),
		dedupeKey: func(_ domain.Publisher, id int64) string {
			return fmt.Sprintf("%d", id)
		},
		insertArgs: func(bookID, entityID int64, pos int, _ domain.Publisher) []any {
			return []any{bookID, entityID, pos}
		},
	})
}

// SetBookPublishers replaces the ordered publisher list of a book,
// participating in the caller's transaction or running in its own.
func (s *Store) SetBookPublishers(ctx context.Context, bookID int64, pubs []domain.Publisher) error {
	return s.inWriteTx(ctx, func(ctx context.Context) error {
		return s.setBookPublishers(ctx, bookID, pubs, false)
	})
}

// GetBookPublishers returns the publishers of a book in link order.
func (s *Store) GetBookPublishers(ctx context.Context, bookID int64) ([]domain.Publisher, error) {
	var pubs []domain.Publisher
	err := s.withShared(ctx, func(ctx context.Context) error {
		rows, err := s.q(ctx).QueryContext(ctx, `
			SELECT p.id, p.name
			FROM publishers p
			JOIN book_publishers bp ON bp.publisher_id = p.id
			WHERE bp.book_id = ?
			ORDER BY bp.position ASC`, bookID)
		if err != nil {
			return fmt.Errorf("query book publishers: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p domain.Publisher
			if err := rows.Scan(&p.ID, &p.Name); err != nil {
				return fmt.Errorf("scan publisher: %w", err)
			}
			pubs = append(pubs, p)
		}
		return rows.Err()
	})
	return pubs, err
}

// PurgePublishers deletes publishers no longer referenced by any book.
func (s *Store) PurgePublishers(ctx context.Context) (int64, error) {
	return s.purge(ctx, `
		DELETE FROM publishers
		WHERE id NOT IN (SELECT publisher_id FROM book_publishers)`)
}
