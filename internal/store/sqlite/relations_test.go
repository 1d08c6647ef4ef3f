package sqlite

import (
	"context"
	"testing"

	"github.com/shelfmarkapp/shelfmark-server/internal/domain"
	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

func TestSeriesSameTitleDifferentNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := testBook(t, s, "Omnibus")
	// One series at two numbers is two distinct links; the literal duplicate
	// collapses.
	if err := s.SetBookSeries(ctx, id, []domain.SeriesRef{
		{Series: domain.Series{Title: "Discworld"}, Number: "1"},
		{Series: domain.Series{Title: "Discworld"}, Number: "2"},
		{Series: domain.Series{Title: "Discworld"}, Number: "1"},
	}); err != nil {
		t.Fatalf("set series: %v", err)
	}

	refs, err := s.GetBookSeries(ctx, id)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("series links = %d, want 2", len(refs))
	}
	if refs[0].Number != "1" || refs[1].Number != "2" {
		t.Fatalf("series numbers = %q, %q, want 1, 2", refs[0].Number, refs[1].Number)
	}
	if refs[0].ID != refs[1].ID {
		t.Fatalf("links resolved to distinct series entities %d and %d", refs[0].ID, refs[1].ID)
	}

	n, err := s.CountSeries(ctx)
	if err != nil {
		t.Fatalf("count series: %v", err)
	}
	if n != 1 {
		t.Fatalf("series entities = %d, want 1", n)
	}
}

func TestSeriesArticleVariantResolvesToSameEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := testBook(t, s, "First")
	b2 := testBook(t, s, "Second")

	if err := s.SetBookSeries(ctx, b1, []domain.SeriesRef{
		{Series: domain.Series{Title: "The Expanse"}, Number: "1"},
	}); err != nil {
		t.Fatalf("set series literal: %v", err)
	}
	// The reordered form matches the stored row through the variant key.
	if err := s.SetBookSeries(ctx, b2, []domain.SeriesRef{
		{Series: domain.Series{Title: "Expanse, The"}, Number: "2"},
	}); err != nil {
		t.Fatalf("set series variant: %v", err)
	}

	n, err := s.CountSeries(ctx)
	if err != nil {
		t.Fatalf("count series: %v", err)
	}
	if n != 1 {
		t.Fatalf("series entities = %d, want 1", n)
	}
}

func TestSeriesLiteralFormMatchesStoredReordered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := testBook(t, s, "First")
	b2 := testBook(t, s, "Second")

	// Stored under the reordered spelling first; the literal form must still
	// resolve to it.
	if err := s.SetBookSeries(ctx, b1, []domain.SeriesRef{
		{Series: domain.Series{Title: "Expanse, The"}, Number: "1"},
	}); err != nil {
		t.Fatalf("set series reordered: %v", err)
	}
	if err := s.SetBookSeries(ctx, b2, []domain.SeriesRef{
		{Series: domain.Series{Title: "The Expanse"}, Number: "2"},
	}); err != nil {
		t.Fatalf("set series literal: %v", err)
	}

	n, err := s.CountSeries(ctx)
	if err != nil {
		t.Fatalf("count series: %v", err)
	}
	if n != 1 {
		t.Fatalf("series entities = %d, want 1", n)
	}
}

func TestPublisherArticleVariantsResolveBothWays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := testBook(t, s, "First")
	b2 := testBook(t, s, "Second")

	if err := s.SetBookPublishers(ctx, b1, []domain.Publisher{
		{Name: "The Folio Society"},
	}); err != nil {
		t.Fatalf("set publisher literal: %v", err)
	}
	// The reordered spelling resolves to the row stored under the literal.
	if err := s.SetBookPublishers(ctx, b2, []domain.Publisher{
		{Name: "Folio Society, The"},
	}); err != nil {
		t.Fatalf("set publisher reordered: %v", err)
	}

	n, err := s.CountPublishers(ctx)
	if err != nil {
		t.Fatalf("count publishers: %v", err)
	}
	if n != 1 {
		t.Fatalf("publisher entities = %d, want 1", n)
	}
}

func TestSeriesBatchModeSkipsVariantLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := testBook(t, s, "First")
	if err := s.SetBookSeries(ctx, b1, []domain.SeriesRef{
		{Series: domain.Series{Title: "The Expanse"}},
	}); err != nil {
		t.Fatalf("set series: %v", err)
	}

	// In batch mode only the literal key is consulted, so the reordered
	// spelling creates a second entity. Bulk imports accept that trade.
	if _, err := s.WriteBook(ctx, &domain.BookInput{
		Title:   strPtr("Second"),
		Authors: []domain.Author{{FamilyName: "Tester"}},
		Series:  []domain.SeriesRef{{Series: domain.Series{Title: "Expanse, The"}}},
	}, domain.WriteOptions{BatchMode: true}); err != nil {
		t.Fatalf("batch write: %v", err)
	}

	n, err := s.CountSeries(ctx)
	if err != nil {
		t.Fatalf("count series: %v", err)
	}
	if n != 2 {
		t.Fatalf("series entities = %d, want 2", n)
	}
}

func TestShelvesMembershipAndPurge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := testBook(t, s, "Shelved")
	if err := s.SetBookShelves(ctx, id, []domain.Bookshelf{
		{Name: "To Read"}, {Name: "Favorites"}, {Name: "to read"},
	}); err != nil {
		t.Fatalf("set shelves: %v", err)
	}

	shelves, err := s.GetBookShelves(ctx, id)
	if err != nil {
		t.Fatalf("get shelves: %v", err)
	}
	if len(shelves) != 2 {
		t.Fatalf("memberships = %d, want 2", len(shelves))
	}

	// Dropping one membership leaves its shelf orphaned for the purge.
	if err := s.SetBookShelves(ctx, id, []domain.Bookshelf{{Name: "Favorites"}}); err != nil {
		t.Fatalf("reset shelves: %v", err)
	}
	removed, err := s.PurgeShelves(ctx)
	if err != nil {
		t.Fatalf("purge shelves: %v", err)
	}
	if removed != 1 {
		t.Fatalf("purged shelves = %d, want 1", removed)
	}
}

func TestPurgeAuthorsKeepsTOCReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := testBook(t, s, "Anthology", domain.Author{FamilyName: "Editor"})
	if err := s.SetBookTOCEntries(ctx, id, []domain.TOCEntry{
		{Title: "A Story", Author: domain.Author{FamilyName: "Contributor"}},
	}); err != nil {
		t.Fatalf("set toc: %v", err)
	}

	// Contributor is referenced only through the TOC entry and must survive.
	removed, err := s.PurgeAuthors(ctx)
	if err != nil {
		t.Fatalf("purge authors: %v", err)
	}
	if removed != 0 {
		t.Fatalf("purged authors = %d, want 0", removed)
	}

	// Clearing the TOC orphans the contributor.
	if err := s.SetBookTOCEntries(ctx, id, []domain.TOCEntry{}); err != nil {
		t.Fatalf("clear toc: %v", err)
	}
	if _, err := s.db.Exec(`DELETE FROM toc_entries`); err != nil {
		t.Fatalf("drop toc entries: %v", err)
	}
	removed, err = s.PurgeAuthors(ctx)
	if err != nil {
		t.Fatalf("purge authors: %v", err)
	}
	if removed != 1 {
		t.Fatalf("purged authors = %d, want 1", removed)
	}
}

func TestFindLinkedEntityID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := testBook(t, s, "Indexed", domain.Author{FamilyName: "Le Guin", GivenNames: "Ursula K."})

	a := domain.Author{FamilyName: "Le Guin", GivenNames: "Ursula K."}
	found, err := s.FindLinkedEntityID(ctx, store.KindAuthor, a.SortKey())
	if err != nil {
		t.Fatalf("find author: %v", err)
	}
	authors, err := s.GetBookAuthors(ctx, id)
	if err != nil {
		t.Fatalf("get authors: %v", err)
	}
	if found != authors[0].ID {
		t.Fatalf("found id %d, want %d", found, authors[0].ID)
	}

	if _, err := s.FindLinkedEntityID(ctx, store.KindSeries, "missing"); err == nil {
		t.Fatal("find missing series succeeded, want ErrNotFound")
	}
}

func TestEmptySliceClearsRelation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := testBook(t, s, "Cleared")
	if err := s.SetBookSeries(ctx, id, []domain.SeriesRef{
		{Series: domain.Series{Title: "Short Lived"}},
	}); err != nil {
		t.Fatalf("set series: %v", err)
	}

	if _, err := s.WriteBook(ctx, &domain.BookInput{
		ID:     id,
		Series: []domain.SeriesRef{},
	}, domain.WriteOptions{}); err != nil {
		t.Fatalf("clearing write: %v", err)
	}

	refs, err := s.GetBookSeries(ctx, id)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("series after clear = %v, want none", refs)
	}
}
