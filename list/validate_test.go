package list_test

import (
	"testing"

	"github.com/flexilist/flexisync/list"
	"github.com/stretchr/testify/require"
)

func TestValidateDefinition(t *testing.T) {
	fields := []list.FieldSpec{
		{ID: "1", Name: "Name", Type: list.TypeText, Required: true},
	}

	require.NoError(t, list.ValidateDefinition("Groceries", fields))
	require.ErrorIs(t, list.ValidateDefinition("   ", fields), list.ErrTitleRequired)
	require.ErrorIs(t, list.ValidateDefinition("Groceries", nil), list.ErrNoFields)
}

func TestValidateDefinition_BadField(t *testing.T) {
	err := list.ValidateDefinition("Groceries", []list.FieldSpec{
		{ID: "1", Name: "", Type: list.TypeText},
	})
	var verr *list.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "1", verr.FieldID)

	err = list.ValidateDefinition("Groceries", []list.FieldSpec{
		{ID: "2", Name: "Age", Type: "decimal"},
	})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "2", verr.FieldID)
}

func TestRemoveField_LastFieldRejected(t *testing.T) {
	fields := []list.FieldSpec{
		{ID: "1", Name: "Name", Type: list.TypeText, Required: true},
	}

	_, err := list.RemoveField(fields, "1")
	require.ErrorIs(t, err, list.ErrLastField)
}

func TestRemoveField(t *testing.T) {
	fields := []list.FieldSpec{
		{ID: "1", Name: "Name", Type: list.TypeText, Required: true},
		{ID: "2", Name: "Qty", Type: list.TypeNumber},
	}

	remaining, err := list.RemoveField(fields, "2")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "1", remaining[0].ID)

	// Removing an unknown field leaves the set untouched.
	same, err := list.RemoveField(fields, "nope")
	require.NoError(t, err)
	require.Len(t, same, 2)
}

func TestFromDocument_RoundTrip(t *testing.T) {
	l := list.FromDocument(docFixture())
	require.Equal(t, "l1", l.ID)
	require.Equal(t, "user1", l.OwnerID)
	require.Equal(t, "Groceries", l.Title)
	require.Len(t, l.Fields, 2)
	require.Equal(t, list.TypeNumber, l.Fields[1].Type)
	require.True(t, l.Fields[0].Required)
	require.EqualValues(t, 100, l.CreatedAt)
	require.True(t, l.HasPendingWrites)
}
