package list_test

import (
	"github.com/flexilist/flexisync/store"
)

func docFixture() store.Document {
	return store.Document{
		ID:               "l1",
		HasPendingWrites: true,
		Data: map[string]any{
			"ownerId":   "user1",
			"title":     "Groceries",
			"createdAt": float64(100), // JSON decoding yields float64
			"updatedAt": int64(200),
			"fields": []any{
				map[string]any{"id": "1", "name": "Name", "type": "text", "required": true},
				map[string]any{"id": "2", "name": "Qty", "type": "number", "required": false},
			},
		},
	}
}
