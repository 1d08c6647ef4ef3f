package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
)

const (
	sqlTOCEntryIDByKeys = `SELECT COALESCE(MIN(id), 0) FROM toc_entries
		WHERE author_id = ? AND sort_key IN (?, ?)`
	sqlInsertTOCEntry = `INSERT INTO toc_entries (author_id, title, sort_key, first_publication) VALUES (?, ?, ?, ?)`
	sqlUpdateTOCEntry = `UPDATE toc_entries SET title = ?, sort_key = ?, first_publication = ? WHERE id = ?`

	sqlDeleteBookTOCEntries = `DELETE FROM book_toc_entries WHERE book_id = ?`
	sqlInsertBookTOCEntry   = `INSERT INTO book_toc_entries (book_id, toc_entry_id, position) VALUES (?, ?, ?)`
)

// resolveTOCEntry finds or creates a TOC entry for (author, title).
//
// TOC entries are the one relation whose linked entity is corrected as part
// of a book write: when the entry resolves to an existing row, its title,
// sort key, and first-publication date are updated in place, because the
// same story is shared across books and a fix should propagate. When that
// correction renames the entry onto a sort key another entry of the same
// author already holds, the update resolves to the colliding row instead;
// the subsequent link insert then lands on an already-present link, which
// the replace algorithm treats as benign.
func (s *Store) resolveTOCEntry(batch bool) func(ctx context.Context, e *domain.TOCEntry) (int64, error) {
	return func(ctx context.Context, e *domain.TOCEntry) (int64, error) {
		authorID, err := s.resolveAuthor(ctx, &e.Author)
		if err != nil {
			return 0, err
		}

		title := strings.TrimSpace(e.Title)
		key, alt := titleKeys(title, batch)
		if key == "" {
			return 0, fmt.Errorf("toc entry has no title")
		}

		lookup, err := s.stmts.Get("tocEntryIDByKeys", sqlTOCEntryIDByKeys)
		if err != nil {
			return 0, err
		}

		id := e.ID
		if id == 0 {
			if id, err = lookup.QueryInt64(ctx, authorID, key, alt); err != nil {
				return 0, err
			}
		}

		if id == 0 {
			ins, err := s.stmts.Get("insertTOCEntry", sqlInsertTOCEntry)
			if err != nil {
				return 0, err
			}
			res, err := ins.Exec(ctx, authorID, title, key, e.FirstPublication)
			switch {
			case err == nil:
				if id, err = res.LastInsertId(); err != nil {
					return 0, err
				}
			case strings.Contains(err.Error(), "UNIQUE constraint failed"):
				// Lost a race against an equivalent entry in this list.
				if id, err = lookup.QueryInt64(ctx, authorID, key, alt); err != nil {
					return 0, err
				}
			default:
				return 0, fmt.Errorf("insert toc entry %q: %w", title, err)
			}
		} else {
			upd, err := s.stmts.Get("updateTOCEntry", sqlUpdateTOCEntry)
			if err != nil {
				return 0, err
			}
			if _, err := upd.Exec(ctx, title, key, e.FirstPublication, id); err != nil {
				if !strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return 0, fmt.Errorf("update toc entry %d: %w", id, err)
				}
				// Rename collided with an existing entry for this author;
				// resolve to that entry rather than failing the write.
				if id, err = lookup.QueryInt64(ctx, authorID, key, alt); err != nil {
					return 0, err
				}
			}
		}

		e.ID = id
		return id, nil
	}
}

// setBookTOCEntries replaces all TOC links for a book. Requires an active
// transaction.
func (s *Store) setBookTOCEntries(ctx context.Context, bookID int64, entries []domain.TOCEntry, batch bool) error {
	return replaceLinks(ctx, s, bookID, entries, relation[domain.TOCEntry]{
		kind:       "toc entry",
		deleteName: "deleteBookTOCEntries",
		deleteSQL:  sqlDeleteBookTOCEntries,
		insertName: "insertBookTOCEntry",
		insertSQL:  sqlInsertBookTOCEntry,
		resolve:    s.resolveTOCEntry(batch),
		dedupeKey: func(_ domain.TOCEntry, id int64) string {
			return fmt.Sprintf("%d", id)
		},
		insertArgs: func(bookID, entityID int64, pos int, _ domain.TOCEntry) []any {
			return []any{bookID, entityID, pos}
		},
	})
}

// SetBookTOCEntries replaces the ordered table of contents of a book,
// participating in the caller's transaction or running in its own.
func (s *Store) SetBookTOCEntries(ctx context.Context, bookID int64, entries []domain.TOCEntry) error {
	return s.inWriteTx(ctx, func(ctx context.Context) error {
		return s.setBookTOCEntries(ctx, bookID, entries, false)
	})
}

// GetBookTOCEntries returns the table of contents of a book in link order.
func (s *Store) GetBookTOCEntries(ctx context.Context, bookID int64) ([]domain.TOCEntry, error) {
	var entries []domain.TOCEntry
	err := s.withShared(ctx, func(ctx context.Context) error {
		rows, err := s.q(ctx).QueryContext(ctx, `
			SELECT t.id, t.title, t.first_publication, a.id, a.family_name, a.given_names
			FROM toc_entries t
			JOIN authors a ON a.id = t.author_id
			JOIN book_toc_entries bt ON bt.toc_entry_id = t.id
			WHERE bt.book_id = ?
			ORDER BY bt.position ASC`, bookID)
		if err != nil {
			return fmt.Errorf("query book toc entries: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e domain.TOCEntry
			if err := rows.Scan(&e.ID, &e.Title, &e.FirstPublication,
				&e.Author.ID, &e.Author.FamilyName, &e.Author.GivenNames); err != nil {
				return fmt.Errorf("scan toc entry: %w", err)
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries, err
}
