// Package list defines the Collection entity of FlexiList: a user-owned,
// user-defined schema (an ordered set of typed fields) plus its metadata.
package list

import (
	"github.com/flexilist/flexisync/store"
)

// FieldType enumerates the value types a field can hold.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
)

// ValidType reports whether t is a known field type.
func ValidType(t FieldType) bool {
	switch t {
	case TypeText, TypeNumber, TypeBoolean, TypeDate:
		return true
	}
	return false
}

// FieldSpec is a named, typed, optionally-required column definition.
// The ID is stable for the life of the list; item data is keyed by it, so
// editing a field must preserve the id.
type FieldSpec struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// List is a collection definition owned by a single user.
// Timestamps are unix milliseconds.
type List struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"ownerId"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldSpec `json:"fields"`
	CreatedAt   int64       `json:"createdAt"`
	UpdatedAt   int64       `json:"updatedAt"`

	// HasPendingWrites is carried over from the backing document while a
	// local create has not been acknowledged by the store. Subscriptions
	// keyed to this list's id must be suppressed while it is set.
	HasPendingWrites bool `json:"-"`
}

// Field returns the field with the given id, if present.
func (l *List) Field(fieldID string) (FieldSpec, bool) {
	for _, f := range l.Fields {
		if f.ID == fieldID {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FromDocument decodes a list from its store document.
func FromDocument(doc store.Document) List {
	l := List{
		ID:               doc.ID,
		OwnerID:          store.String(doc.Data["ownerId"]),
		Title:            store.String(doc.Data["title"]),
		Description:      store.String(doc.Data["description"]),
		CreatedAt:        store.Int64(doc.Data["createdAt"]),
		UpdatedAt:        store.Int64(doc.Data["updatedAt"]),
		HasPendingWrites: doc.HasPendingWrites,
	}
	if raw, ok := doc.Data["fields"].([]any); ok {
		l.Fields = make([]FieldSpec, 0, len(raw))
		for _, entry := range raw {
			m := store.Map(entry)
			if m == nil {
				continue
			}
			l.Fields = append(l.Fields, FieldSpec{
				ID:       store.String(m["id"]),
				Name:     store.String(m["name"]),
				Type:     FieldType(store.String(m["type"])),
				Required: store.Bool(m["required"]),
			})
		}
	} else if typed, ok := doc.Data["fields"].([]FieldSpec); ok {
		l.Fields = append(l.Fields, typed...)
	}
	return l
}

// FieldsData encodes a field set for storage.
func FieldsData(fields []FieldSpec) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]any{
			"id":       f.ID,
			"name":     f.Name,
			"type":     string(f.Type),
			"required": f.Required,
		})
	}
	return out
}
