// Package item defines the Item entity: a record conforming to its parent
// list's field schema, with a completion flag toggled independently of the
// field data.
package item

import (
	"github.com/flexilist/flexisync/store"
)

// Item is a single entry in a list. Data is keyed by FieldSpec.ID; keys for
// fields that were later removed from the list are tolerated as stale.
// Timestamps are unix milliseconds.
type Item struct {
	ID        string         `json:"id"`
	ListID    string         `json:"listId"`
	Data      map[string]any `json:"data"`
	Completed bool           `json:"completed"`
	CreatedAt int64          `json:"createdAt"`
	UpdatedAt int64          `json:"updatedAt"`
}

// FromDocument decodes an item from its store document.
func FromDocument(listID string, doc store.Document) Item {
	return Item{
		ID:        doc.ID,
		ListID:    listID,
		Data:      store.Map(doc.Data["data"]),
		Completed: store.Bool(doc.Data["completed"]),
		CreatedAt: store.Int64(doc.Data["createdAt"]),
		UpdatedAt: store.Int64(doc.Data["updatedAt"]),
	}
}
