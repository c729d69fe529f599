package client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexilist/flexisync/client"
	"github.com/flexilist/flexisync/item"
	"github.com/flexilist/flexisync/list"
	"github.com/flexilist/flexisync/store"
)

func testFields() []list.FieldSpec {
	return []list.FieldSpec{
		{ID: "1", Name: "Name", Type: list.TypeText, Required: true},
		{ID: "2", Name: "Amount", Type: list.TypeNumber},
	}
}

func TestCreateList_RequiresOwner(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())

	_, err := g.CreateList(context.Background(), "", "Groceries", "", testFields())
	require.ErrorIs(t, err, client.ErrNotSignedIn)
	require.Zero(t, st.createCalls.Load())
}

func TestCreateList_ValidatesBeforeWriting(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())
	ctx := context.Background()

	_, err := g.CreateList(ctx, "u1", "  ", "", testFields())
	require.ErrorIs(t, err, list.ErrTitleRequired)

	_, err = g.CreateList(ctx, "u1", "Groceries", "", nil)
	require.ErrorIs(t, err, list.ErrNoFields)

	_, err = g.CreateList(ctx, "u1", "Groceries", "", []list.FieldSpec{
		{ID: "1", Name: "", Type: list.TypeText},
	})
	var verr *list.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "1", verr.FieldID)

	require.Zero(t, st.createCalls.Load())
}

func TestCreateList_StampsTimestamps(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())
	ctx := context.Background()

	id, err := g.CreateList(ctx, "u1", "Groceries", "weekly run", testFields())
	require.NoError(t, err)

	doc, err := st.Get(ctx, store.DocPath("lists", id))
	require.NoError(t, err)
	require.Equal(t, "u1", doc.Data["ownerId"])
	require.Equal(t, "Groceries", doc.Data["title"])

	createdAt := store.Int64(doc.Data["createdAt"])
	require.Positive(t, createdAt)
	require.Equal(t, createdAt, store.Int64(doc.Data["updatedAt"]))
}

func TestCreateItem_RejectsMissingRequiredField(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())
	parent := list.List{ID: "l1", Fields: testFields()}

	_, err := g.CreateItem(context.Background(), parent, map[string]any{"2": float64(3)})

	var verr *item.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "1", verr.FieldID)
	require.Equal(t, "Name", verr.FieldName)
	require.Zero(t, st.createCalls.Load())
}

func TestCreateItem_TouchesParent(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())
	ctx := context.Background()

	listID, err := g.CreateList(ctx, "u1", "Groceries", "", testFields())
	require.NoError(t, err)
	parent := list.List{ID: listID, Fields: testFields()}

	itemID, err := g.CreateItem(ctx, parent, map[string]any{"1": "Milk"})
	require.NoError(t, err)

	doc, err := st.Get(ctx, store.DocPath("lists/"+listID+"/items", itemID))
	require.NoError(t, err)
	require.Equal(t, false, doc.Data["completed"])

	parentDoc, err := st.Get(ctx, store.DocPath("lists", listID))
	require.NoError(t, err)
	require.GreaterOrEqual(t,
		store.Int64(parentDoc.Data["updatedAt"]),
		store.Int64(doc.Data["createdAt"]))
}

func TestCreateItem_SucceedsWhenParentTouchFails(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())
	ctx := context.Background()

	listID, err := g.CreateList(ctx, "u1", "Groceries", "", testFields())
	require.NoError(t, err)

	// The item create itself uses Create; only the parent touch goes
	// through Set, so failing Set exercises the touch path alone.
	st.setErr = errors.New("store unavailable")
	itemID, err := g.CreateItem(ctx, list.List{ID: listID, Fields: testFields()}, map[string]any{"1": "Milk"})
	require.NoError(t, err)
	require.NotEmpty(t, itemID)
}

func TestSetCompleted(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())
	ctx := context.Background()

	listID, err := g.CreateList(ctx, "u1", "Groceries", "", testFields())
	require.NoError(t, err)
	itemID, err := g.CreateItem(ctx, list.List{ID: listID, Fields: testFields()}, map[string]any{"1": "Milk"})
	require.NoError(t, err)

	require.NoError(t, g.SetCompleted(ctx, listID, itemID, true))

	doc, err := st.Get(ctx, store.DocPath("lists/"+listID+"/items", itemID))
	require.NoError(t, err)
	require.Equal(t, true, doc.Data["completed"])
	require.Equal(t, "Milk", store.Map(doc.Data["data"])["1"])
}

func TestDeleteList_CascadesItemsFirst(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())
	ctx := context.Background()

	listID, err := g.CreateList(ctx, "u1", "Groceries", "", testFields())
	require.NoError(t, err)
	parent := list.List{ID: listID, Fields: testFields()}
	for _, name := range []string{"Milk", "Eggs"} {
		_, err := g.CreateItem(ctx, parent, map[string]any{"1": name})
		require.NoError(t, err)
	}

	require.NoError(t, g.DeleteList(ctx, listID))

	items, err := st.List(ctx, store.Query{Path: "lists/" + listID + "/items"})
	require.NoError(t, err)
	require.Empty(t, items)
	_, err = st.Get(ctx, store.DocPath("lists", listID))
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting again is a no-op, so a retry after partial failure is safe.
	require.NoError(t, g.DeleteList(ctx, listID))
}

func TestDeleteItem_UnknownIsNoop(t *testing.T) {
	st := newSpyStore()
	g := client.NewGateway(st, discardLogger())
	require.NoError(t, g.DeleteItem(context.Background(), "l1", "ghost"))
}
