package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestBookInputValidateInsert(t *testing.T) {
	in := &BookInput{
		Title:   strptr("The Dispossessed"),
		Authors: []Author{{FamilyName: "Le Guin", GivenNames: "Ursula K."}},
	}
	require.NoError(t, in.Validate(WriteOptions{}))

	t.Run("missing title", func(t *testing.T) {
		in := &BookInput{Authors: []Author{{FamilyName: "Le Guin"}}}
		assert.ErrorIs(t, in.Validate(WriteOptions{}), ErrTitleRequired)
	})

	t.Run("missing authors", func(t *testing.T) {
		in := &BookInput{Title: strptr("Orphaned")}
		assert.ErrorIs(t, in.Validate(WriteOptions{}), ErrAuthorRequired)
	})

	t.Run("blank author", func(t *testing.T) {
		in := &BookInput{Title: strptr("X"), Authors: []Author{{FamilyName: "  "}}}
		assert.ErrorIs(t, in.Validate(WriteOptions{}), ErrBlankAuthor)
	})
}

func TestBookInputValidateUpdate(t *testing.T) {
	t.Run("partial update may omit everything relational", func(t *testing.T) {
		in := &BookInput{ID: 7, Notes: strptr("signed copy")}
		assert.NoError(t, in.Validate(WriteOptions{}))
	})

	t.Run("may not clear all authors", func(t *testing.T) {
		in := &BookInput{ID: 7, Authors: []Author{}}
		assert.ErrorIs(t, in.Validate(WriteOptions{}), ErrAuthorRequired)
	})

	t.Run("may not blank the title", func(t *testing.T) {
		in := &BookInput{ID: 7, Title: strptr("")}
		assert.ErrorIs(t, in.Validate(WriteOptions{}), ErrTitleRequired)
	})

	t.Run("preserve id behaves as insert", func(t *testing.T) {
		in := &BookInput{ID: 7, Notes: strptr("restored")}
		assert.ErrorIs(t, in.Validate(WriteOptions{PreserveID: true}), ErrTitleRequired)
	})
}

func TestAuthorDisplayAndSortKey(t *testing.T) {
	a := Author{FamilyName: "García Márquez", GivenNames: "Gabriel"}
	assert.Equal(t, "Gabriel García Márquez", a.DisplayName())
	assert.Equal(t, "garcia marquez gabriel", a.SortKey())

	solo := Author{FamilyName: "Homer"}
	assert.Equal(t, "Homer", solo.DisplayName())
	assert.Equal(t, "homer", solo.SortKey())
}
