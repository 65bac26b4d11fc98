package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdvanceToForwardOnly(t *testing.T) {
	art := Article{ID: "a1", Status: StatusGenerated}

	require.NoError(t, art.AdvanceTo(StatusUploaded))
	require.Equal(t, StatusUploaded, art.Status)

	require.NoError(t, art.AdvanceTo(StatusPublished))
	require.Equal(t, StatusPublished, art.Status)

	err := art.AdvanceTo(StatusGenerated)
	require.Error(t, err)
	require.Equal(t, StatusPublished, art.Status)
}

func TestAdvanceToSameStatus(t *testing.T) {
	art := Article{ID: "a1", Status: StatusUploaded}
	require.NoError(t, art.AdvanceTo(StatusUploaded))
}

func TestAdvanceToUnknownStatus(t *testing.T) {
	art := Article{ID: "a1", Status: StatusDraft}
	require.Error(t, art.AdvanceTo(Status("bogus")))
}

func TestResetContentPreservesIdentity(t *testing.T) {
	art := Article{
		ID:         "a1",
		Title:      "old",
		Content:    "<p>old</p>",
		FigureURLs: []string{"/tmp/x.png"},
		SourceNews: []string{"n1", "n2"},
		Status:     StatusGenerated,
	}

	art.ResetContent("new", "d", "<p>new</p>", "cover", []string{"p1"})

	require.Equal(t, "a1", art.ID)
	require.Equal(t, []string{"n1", "n2"}, art.SourceNews)
	require.Equal(t, StatusGenerated, art.Status)
	require.Equal(t, "new", art.Title)
	require.Empty(t, art.FigureURLs)
	require.Equal(t, []string{"p1"}, art.FigurePrompts)
}
