package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

const (
	sqlDeleteLoan = `DELETE FROM loans WHERE book_id = ?`
	sqlInsertLoan = `INSERT INTO loans (book_id, loaned_to) VALUES (?, ?)`
	sqlGetLoanee  = `SELECT loaned_to FROM loans WHERE book_id = ?`
)

// setLoanTx rewrites the loan row for a book. A book has at most one loanee,
// so the rewrite is a delete plus an optional single insert; blank loanee
// means the book is back on the shelf.
func (s *Store) setLoanTx(ctx context.Context, bookID int64, loanee string) error {
	if _, err := s.txn.requireTx(ctx); err != nil {
		return err
	}

	del, err := s.stmts.Get("deleteLoan", sqlDeleteLoan)
	if err != nil {
		return err
	}
	if _, err := del.Exec(ctx, bookID); err != nil {
		return fmt.Errorf("clear loan for book %d: %w", bookID, err)
	}

	loanee = strings.TrimSpace(loanee)
	if loanee == "" {
		return nil
	}

	ins, err := s.stmts.Get("insertLoan", sqlInsertLoan)
	if err != nil {
		return err
	}
	if _, err := ins.Exec(ctx, bookID, loanee); err != nil {
		return store.NewWriteError(fmt.Sprintf("loan for book %d", bookID), err)
	}
	return nil
}

// LendBook records that a book is out on loan to the named borrower,
// replacing any previous loan.
func (s *Store) LendBook(ctx context.Context, bookID int64, loanee string) error {
	if strings.TrimSpace(loanee) == "" {
		return store.NewWriteError(fmt.Sprintf("loan for book %d", bookID),
			fmt.Errorf("loanee name is blank"))
	}
	return s.inWriteTx(ctx, func(ctx context.Context) error {
		return s.setLoanTx(ctx, bookID, loanee)
	})
}

// ReturnBook clears the loan record for a book, if any.
func (s *Store) ReturnBook(ctx context.Context, bookID int64) error {
	return s.inWriteTx(ctx, func(ctx context.Context) error {
		return s.setLoanTx(ctx, bookID, "")
	})
}

// GetLoanee returns the borrower a book is loaned to, or "" when the book
// is not on loan.
func (s *Store) GetLoanee(ctx context.Context, bookID int64) (string, error) {
	var loanee string
	err := s.withShared(ctx, func(ctx context.Context) error {
		st, err := s.stmts.Get("getLoanee", sqlGetLoanee)
		if err != nil {
			return err
		}
		v, err := st.QueryString(ctx, bookID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		loanee = v
		return nil
	})
	return loanee, err
}
