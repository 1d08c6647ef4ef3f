package store

// LinkedEntityKind names a secondary entity table for lookups by normalized
// sort key.
type LinkedEntityKind string

// Kinds of linked entities reachable through FindLinkedEntityID.
const (
	KindAuthor    LinkedEntityKind = "author"
	KindSeries    LinkedEntityKind = "series"
	KindPublisher LinkedEntityKind = "publisher"
	KindTOCEntry  LinkedEntityKind = "toc_entry"
	KindBookshelf LinkedEntityKind = "bookshelf"
)

// Valid reports whether k names a known linked-entity kind.
func (k LinkedEntityKind) Valid() bool {
	switch k {
	case KindAuthor, KindSeries, KindPublisher, KindTOCEntry, KindBookshelf:
		return true
	}
	return false
}
