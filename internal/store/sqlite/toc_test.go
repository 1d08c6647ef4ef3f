package sqlite

import (
	"context"
	"testing"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
)

func TestTOCEntriesSharedAcrossBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := domain.TOCEntry{
		Title:  "The Call of Cthulhu",
		Author: domain.Author{FamilyName: "Lovecraft", GivenNames: "H. P."},
	}

	b1 := testBook(t, s, "Anthology One")
	b2 := testBook(t, s, "Anthology Two")
	if err := s.SetBookTOCEntries(ctx, b1, []domain.TOCEntry{entry}); err != nil {
		t.Fatalf("set toc b1: %v", err)
	}
	if err := s.SetBookTOCEntries(ctx, b2, []domain.TOCEntry{entry}); err != nil {
		t.Fatalf("set toc b2: %v", err)
	}

	e1, err := s.GetBookTOCEntries(ctx, b1)
	if err != nil {
		t.Fatalf("get toc b1: %v", err)
	}
	e2, err := s.GetBookTOCEntries(ctx, b2)
	if err != nil {
		t.Fatalf("get toc b2: %v", err)
	}
	if len(e1) != 1 || len(e2) != 1 || e1[0].ID != e2[0].ID {
		t.Fatalf("entries not shared: %+v vs %+v", e1, e2)
	}
}

func TestTOCEntryUpdatedInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := testBook(t, s, "Anthology One")
	b2 := testBook(t, s, "Anthology Two")

	author := domain.Author{FamilyName: "Lovecraft", GivenNames: "H. P."}
	if err := s.SetBookTOCEntries(ctx, b1, []domain.TOCEntry{
		{Title: "The Call of Cthulhu", Author: author},
	}); err != nil {
		t.Fatalf("set toc b1: %v", err)
	}
	if err := s.SetBookTOCEntries(ctx, b2, []domain.TOCEntry{
		{Title: "The Call of Cthulhu", Author: author},
	}); err != nil {
		t.Fatalf("set toc b2: %v", err)
	}

	// Writing the entry again with a publication date corrects the shared
	// row; the other book sees the correction.
	if err := s.SetBookTOCEntries(ctx, b1, []domain.TOCEntry{
		{Title: "The Call of Cthulhu", Author: author, FirstPublication: "1928"},
	}); err != nil {
		t.Fatalf("update toc: %v", err)
	}

	e2, err := s.GetBookTOCEntries(ctx, b2)
	if err != nil {
		t.Fatalf("get toc b2: %v", err)
	}
	if len(e2) != 1 || e2[0].FirstPublication != "1928" {
		t.Fatalf("shared entry not corrected: %+v", e2)
	}
}

func TestTOCRenameCollisionResolvesToExistingEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := testBook(t, s, "Collected Stories")
	author := domain.Author{FamilyName: "Lovecraft", GivenNames: "H. P."}

	if err := s.SetBookTOCEntries(ctx, b, []domain.TOCEntry{
		{Title: "Dagon", Author: author},
		{Title: "Dagon (draft)", Author: author},
	}); err != nil {
		t.Fatalf("set toc: %v", err)
	}
	entries, err := s.GetBookTOCEntries(ctx, b)
	if err != nil {
		t.Fatalf("get toc: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	draftID := entries[1].ID

	// Renaming the draft onto the first entry's title collides with its
	// unique (author, sort key); the write resolves to the surviving entry
	// instead of failing, and the duplicate link collapses.
	if err := s.SetBookTOCEntries(ctx, b, []domain.TOCEntry{
		{ID: entries[0].ID, Title: "Dagon", Author: author},
		{ID: draftID, Title: "Dagon", Author: author},
	}); err != nil {
		t.Fatalf("colliding rename: %v", err)
	}

	entries, err = s.GetBookTOCEntries(ctx, b)
	if err != nil {
		t.Fatalf("get toc after rename: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries after collision = %d, want 1", len(entries))
	}
	if entries[0].Title != "Dagon" {
		t.Fatalf("surviving title = %q, want Dagon", entries[0].Title)
	}
}

func TestTOCDuplicateInPayloadCollapses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := testBook(t, s, "Best Of")
	author := domain.Author{FamilyName: "Lovecraft", GivenNames: "H. P."}

	if err := s.SetBookTOCEntries(ctx, b, []domain.TOCEntry{
		{Title: "Dagon", Author: author},
		{Title: "The Outsider", Author: author},
		{Title: "Dagon", Author: author},
	}); err != nil {
		t.Fatalf("set toc: %v", err)
	}

	entries, err := s.GetBookTOCEntries(ctx, b)
	if err != nil {
		t.Fatalf("get toc: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Title != "Dagon" || entries[1].Title != "The Outsider" {
		t.Fatalf("order = [%s, %s], want [Dagon, The Outsider]", entries[0].Title, entries[1].Title)
	}
}
