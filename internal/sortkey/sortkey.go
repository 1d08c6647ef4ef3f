// Package sortkey derives locale-normalized sort keys from display strings.
//
// A sort key is the canonical form used for equality lookups on linked
// entities (authors, series, publishers, shelves, TOC entries): diacritics
// stripped, case folded, non-word characters removed. Two display forms that
// differ only in case or accents produce the same sort key.
package sortkey

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches runs of anything that is not a letter, digit, or space.
	nonWord = regexp.MustCompile(`[^a-z0-9 ]+`)
	// Matches runs of whitespace.
	multiSpace = regexp.MustCompile(`\s+`)
	// Leading articles moved to the end of a title for matching.
	leadingArticle = regexp.MustCompile(`(?i)^(the|a|an)\s+(.+)$`)
	// Articles already moved to the end, for the reverse transform.
	trailingArticle = regexp.MustCompile(`(?i)^(.+),\s*(the|a|an)$`)
)

// Normalize converts a display string to its sort key.
// "Émile Zola" -> "emile zola", "O'Brien, Seán" -> "obrien sean".
func Normalize(s string) string {
	// Decompose accented characters, then drop the combining marks and any
	// remaining non-ASCII runes.
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) || r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = nonWord.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// ReorderArticle moves a leading article to the end of a title:
// "The Hobbit" -> "Hobbit, The". Titles without a leading article are
// returned unchanged. Lookups try both the literal title and this variant
// so that "The Foo" and "Foo, The" resolve to the same entity.
func ReorderArticle(title string) string {
	m := leadingArticle.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return title
	}
	return m[2] + ", " + m[1]
}

// RestoreArticle is the inverse of ReorderArticle: "Hobbit, The" ->
// "The Hobbit". Titles without a trailing article are returned unchanged.
// Lookups need both directions because the stored row may hold either
// spelling.
func RestoreArticle(title string) string {
	m := trailingArticle.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return title
	}
	return m[2] + " " + m[1]
}

// Fold lowercases and ASCII-folds free text for the search index. Unlike
// Normalize it keeps punctuation-separated words apart and preserves digits
// and spacing suitable for substring matching.
func Fold(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(unicode.Mn, r) || r > unicode.MaxASCII:
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, s)
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}
