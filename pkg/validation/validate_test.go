package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ideaflow/pkg/models"
)

func TestValidateCreate(t *testing.T) {
	require.NoError(t, ValidateCreate(models.CreatePostRequest{Title: "buy milk"}))
	require.Error(t, ValidateCreate(models.CreatePostRequest{Title: "   "}))
	require.Error(t, ValidateCreate(models.CreatePostRequest{Title: strings.Repeat("x", 10000)}))
	require.Error(t, ValidateCreate(models.CreatePostRequest{Title: "ok", Status: "bogus"}))
	require.NoError(t, ValidateCreate(models.CreatePostRequest{Title: "ok", Status: "active", Tags: []string{"home"}}))
	require.Error(t, ValidateCreate(models.CreatePostRequest{Title: "ok", Tags: []string{""}}))
}

func TestValidatePatch(t *testing.T) {
	require.NoError(t, ValidatePatch(models.PatchPostRequest{}))
	blank := "  "
	require.Error(t, ValidatePatch(models.PatchPostRequest{Title: &blank}))
	good := "renamed"
	require.NoError(t, ValidatePatch(models.PatchPostRequest{Title: &good}))
	bad := "nope"
	require.Error(t, ValidatePatch(models.PatchPostRequest{Status: &bad}))
}

func TestValidateReorderShape(t *testing.T) {
	require.Error(t, ValidateReorder(models.ReorderRequest{}))
	require.Error(t, ValidateReorder(models.ReorderRequest{
		Order: []string{"a"},
		Moves: []models.SparseMove{{ID: "b", Index: 0}},
	}))
	require.NoError(t, ValidateReorder(models.ReorderRequest{Order: []string{"a", "b"}}))
	require.Error(t, ValidateReorder(models.ReorderRequest{Order: []string{"a", ""}}))
	require.Error(t, ValidateReorder(models.ReorderRequest{Moves: []models.SparseMove{{ID: "a", Index: -1}}}))
}

func TestValidateMove(t *testing.T) {
	require.NoError(t, ValidateMove(models.MoveRequest{ID: "a", After: "b"}))
	require.NoError(t, ValidateMove(models.MoveRequest{ID: "a"}))
	require.Error(t, ValidateMove(models.MoveRequest{After: "b"}))
	require.Error(t, ValidateMove(models.MoveRequest{ID: "a", After: "a"}))
	require.Error(t, ValidateMove(models.MoveRequest{ID: "a", After: "b", Before: "b"}))
}

func TestValidateCount(t *testing.T) {
	n, err := ValidateCount(0)
	require.NoError(t, err)
	require.Equal(t, MaxWindow(), n)

	n, err = ValidateCount(25)
	require.NoError(t, err)
	require.Equal(t, 25, n)

	_, err = ValidateCount(-1)
	require.Error(t, err)
	_, err = ValidateCount(MaxWindow() + 1)
	require.Error(t, err)
}
