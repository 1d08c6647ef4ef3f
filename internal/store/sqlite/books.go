package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

const (
	sqlGetBook = `
		SELECT id, uuid, title, isbn, description, notes, genre, language,
		       location, date_published, date_added, last_updated
		FROM books WHERE id = ?`
	sqlGetBookUUID  = `SELECT uuid FROM books WHERE id = ?`
	sqlBookIDByUUID = `SELECT COALESCE(MIN(id), 0) FROM books WHERE uuid = ?`
	sqlDeleteBook   = `DELETE FROM books WHERE id = ?`
)

// WriteBook writes a book and its relations as one atomic unit.
//
// A zero ID (or WriteOptions.PreserveID) inserts; otherwise the payload is a
// partial update and nil fields are left untouched. Every relation slice that
// is present replaces the stored links wholesale. The whole write runs in a
// single exclusive transaction, joining the caller's when ctx carries one, so
// a failure anywhere leaves no partial book behind.
func (s *Store) WriteBook(ctx context.Context, in *domain.BookInput, opts domain.WriteOptions) (int64, error) {
	if err := in.Validate(opts); err != nil {
		return 0, err
	}

	var id int64
	err := s.inWriteTx(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.writeBookTx(ctx, in, opts)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) writeBookTx(ctx context.Context, in *domain.BookInput, opts domain.WriteOptions) (int64, error) {
	var (
		id  int64
		err error
	)
	if in.IsInsert(opts) {
		id, err = s.insertBookRow(ctx, in, opts)
	} else {
		id = in.ID
		err = s.updateBookRow(ctx, in, opts)
	}
	if err != nil {
		return 0, err
	}

	// Replace each relation the payload carries. Nil slices are absent and
	// leave the stored links alone; empty slices clear them.
	if in.Authors != nil {
		if err := s.setBookAuthors(ctx, id, in.Authors); err != nil {
			return 0, err
		}
	}
	if in.Series != nil {
		if err := s.setBookSeries(ctx, id, in.Series, opts.BatchMode); err != nil {
			return 0, err
		}
	}
	if in.Publishers != nil {
		if err := s.setBookPublishers(ctx, id, in.Publishers, opts.BatchMode); err != nil {
			return 0, err
		}
	}
	if in.TOCEntries != nil {
		if err := s.setBookTOCEntries(ctx, id, in.TOCEntries, opts.BatchMode); err != nil {
			return 0, err
		}
	}
	if in.Bookshelves != nil {
		if err := s.setBookShelves(ctx, id, in.Bookshelves); err != nil {
			return 0, err
		}
	}
	if in.LoanedTo != nil {
		if err := s.setLoanTx(ctx, id, *in.LoanedTo); err != nil {
			return 0, err
		}
	}

	// The search row is a cache: refresh it in the same transaction so it
	// commits with the book, but never let it sink the write.
	if err := s.reindexBookTx(ctx, id); err != nil {
		s.logger.Warn("updating search row", "book_id", id, "error", err)
	}

	return id, nil
}

// insertBookRow inserts the root record and returns its id. The UUID is
// minted here, exactly once for the lifetime of the book.
func (s *Store) insertBookRow(ctx context.Context, in *domain.BookInput, opts domain.WriteOptions) (int64, error) {
	now := time.Now().UTC()
	lastUpdated := now
	if opts.PreserveTimestamp && in.LastUpdated != nil {
		lastUpdated = *in.LastUpdated
	}

	cols := []string{"uuid", "title", "date_added", "last_updated"}
	args := []any{uuid.NewString(), *in.Title, formatTime(now), formatTime(lastUpdated)}

	if opts.PreserveID && in.ID != 0 {
		cols = append(cols, "id")
		args = append(args, in.ID)
	}
	for _, f := range []struct {
		col string
		val *string
	}{
		{"isbn", in.ISBN},
		{"description", in.Description},
		{"notes", in.Notes},
		{"genre", in.Genre},
		{"language", in.Language},
		{"location", in.Location},
		{"date_published", in.DatePublished},
	} {
		if f.val != nil {
			cols = append(cols, f.col)
			args = append(args, *f.val)
		}
	}

	query := fmt.Sprintf("INSERT INTO books (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	res, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, store.NewWriteError(fmt.Sprintf("book %q", *in.Title), err)
	}
	return res.LastInsertId()
}

// updateBookRow applies the non-nil root fields of a partial update. The
// UUID and date_added columns are immutable and never appear in the SET list.
func (s *Store) updateBookRow(ctx context.Context, in *domain.BookInput, opts domain.WriteOptions) error {
	var (
		sets []string
		args []any
	)
	set := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	for _, f := range []struct {
		col string
		val *string
	}{
		{"title", in.Title},
		{"isbn", in.ISBN},
		{"description", in.Description},
		{"notes", in.Notes},
		{"genre", in.Genre},
		{"language", in.Language},
		{"location", in.Location},
		{"date_published", in.DatePublished},
	} {
		if f.val != nil {
			set(f.col, *f.val)
		}
	}

	lastUpdated := time.Now().UTC()
	if opts.PreserveTimestamp && in.LastUpdated != nil {
		lastUpdated = *in.LastUpdated
	}
	set("last_updated", formatTime(lastUpdated))

	args = append(args, in.ID)
	res, err := s.q(ctx).ExecContext(ctx,
		fmt.Sprintf("UPDATE books SET %s WHERE id = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return store.NewWriteError(fmt.Sprintf("book %d", in.ID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.NewWriteError(fmt.Sprintf("book %d", in.ID), store.ErrNotFound)
	}
	return nil
}

// DeleteBook removes a book and, through cascades, all of its link rows, its
// loan record and its search row. Reports whether a row was deleted.
func (s *Store) DeleteBook(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.inWriteTx(ctx, func(ctx context.Context) error {
		st, err := s.stmts.Get("deleteBook", sqlDeleteBook)
		if err != nil {
			return err
		}
		res, err := st.Exec(ctx, id)
		if err != nil {
			return fmt.Errorf("delete book %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// GetBook loads a book with all of its relations. The whole read runs under
// one shared lock so the relations belong to the same version of the book.
func (s *Store) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var b domain.Book
	err := s.withShared(ctx, func(ctx context.Context) error {
		var dateAdded, lastUpdated string
		row := s.q(ctx).QueryRowContext(ctx, sqlGetBook, id)
		if err := row.Scan(&b.ID, &b.UUID, &b.Title, &b.ISBN, &b.Description,
			&b.Notes, &b.Genre, &b.Language, &b.Location, &b.DatePublished,
			&dateAdded, &lastUpdated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return fmt.Errorf("scan book: %w", err)
		}

		var err error
		if b.DateAdded, err = parseTime(dateAdded); err != nil {
			return fmt.Errorf("parse date_added: %w", err)
		}
		if b.LastUpdated, err = parseTime(lastUpdated); err != nil {
			return fmt.Errorf("parse last_updated: %w", err)
		}

		if b.Authors, err = s.GetBookAuthors(ctx, id); err != nil {
			return err
		}
		if b.Series, err = s.GetBookSeries(ctx, id); err != nil {
			return err
		}
		if b.Publishers, err = s.GetBookPublishers(ctx, id); err != nil {
			return err
		}
		if b.TOCEntries, err = s.GetBookTOCEntries(ctx, id); err != nil {
			return err
		}
		if b.Bookshelves, err = s.GetBookShelves(ctx, id); err != nil {
			return err
		}
		if b.LoanedTo, err = s.GetLoanee(ctx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookUUID returns the immutable UUID of a book.
func (s *Store) GetBookUUID(ctx context.Context, id int64) (string, error) {
	var u string
	err := s.withShared(ctx, func(ctx context.Context) error {
		st, err := s.stmts.Get("getBookUUID", sqlGetBookUUID)
		if err != nil {
			return err
		}
		u, err = st.QueryString(ctx, id)
		return err
	})
	return u, err
}

// BookIDByUUID resolves a UUID back to the book id.
func (s *Store) BookIDByUUID(ctx context.Context, bookUUID string) (int64, error) {
	var id int64
	err := s.withShared(ctx, func(ctx context.Context) error {
		st, err := s.stmts.Get("bookIDByUUID", sqlBookIDByUUID)
		if err != nil {
			return err
		}
		id, err = st.QueryInt64(ctx, bookUUID)
		if err != nil {
			return err
		}
		if id == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	return id, err
}
