// Package client is the reactive synchronizer between the remote document
// store and local application state: session lifecycle, live collection
// subscriptions, validated mutations with denormalized parent touches,
// derived count aggregation, and per-user preferences.
package client

import (
	"fmt"

	"github.com/flexilist/flexisync/store"
)

// Collection paths used by FlexiList.
const (
	listsCollection = "lists"
	prefsCollection = "userPreferences"
)

func itemsCollection(listID string) string {
	return listsCollection + "/" + listID + "/items"
}

func listPath(listID string) string {
	return store.DocPath(listsCollection, listID)
}

func itemPath(listID, itemID string) string {
	return store.DocPath(itemsCollection(listID), itemID)
}

func prefsPath(ownerID string) string {
	return store.DocPath(prefsCollection, ownerID)
}

// Scope identifies which subset of the store a subscription targets: the
// lists owned by a user, or the items of one list. The zero Scope is
// suppressed: subscribing to it never contacts the store and yields an
// immediately-empty, loading=false view. Consumers use the zero scope to
// park a subscription while its real scope key is unknown or unconfirmed
// (a pending parent write).
type Scope struct {
	query store.Query
	valid bool
}

// ListsScope targets the lists owned by ownerID, newest first. An empty
// ownerID yields the suppressed scope.
func ListsScope(ownerID string) Scope {
	if ownerID == "" {
		return Scope{}
	}
	return Scope{
		valid: true,
		query: store.Query{
			Path:       listsCollection,
			Where:      &store.Filter{Field: "ownerId", Equals: ownerID},
			OrderBy:    "createdAt",
			Descending: true,
		},
	}
}

// ItemsScope targets the items of listID, newest first. An empty listID
// yields the suppressed scope.
func ItemsScope(listID string) Scope {
	if listID == "" {
		return Scope{}
	}
	return Scope{
		valid: true,
		query: store.Query{
			Path:       itemsCollection(listID),
			OrderBy:    "createdAt",
			Descending: true,
		},
	}
}

// IsZero reports whether the scope is the suppressed scope.
func (s Scope) IsZero() bool {
	return !s.valid
}

// key is the canonical identity used for subscription sharing.
func (s Scope) key() string {
	q := s.query
	where := ""
	if q.Where != nil {
		where = fmt.Sprintf("%s=%v", q.Where.Field, q.Where.Equals)
	}
	return fmt.Sprintf("%s|%s|%s|%v", q.Path, where, q.OrderBy, q.Descending)
}
