// Package server exposes a store.Store over a WebSocket sync protocol:
// request/response frames for document CRUD and one-shot queries, plus
// server-pushed snapshot frames for live subscriptions.
package server

import "github.com/flexilist/flexisync/store"

// Request ops.
const (
	OpGet         = "get"
	OpCreate      = "create"
	OpSet         = "set"
	OpDelete      = "delete"
	OpList        = "list"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// Push frame ops.
const (
	OpResult   = "result"
	OpSnapshot = "snapshot"
)

// Error codes carried in ErrorInfo.Code.
const (
	CodeNotFound   = "not_found"
	CodeBadRequest = "bad_request"
	CodeInternal   = "internal"
)

// Request is a client-to-server frame. ID correlates the response.
type Request struct {
	ID    int64          `json:"id"`
	Op    string         `json:"op"`
	Path  string         `json:"path,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	Merge bool           `json:"merge,omitempty"`
	Query *WireQuery     `json:"query,omitempty"`
	Sub   string         `json:"sub,omitempty"`
}

// WireQuery is the serializable form of store.Query.
type WireQuery struct {
	Path        string `json:"path"`
	WhereField  string `json:"whereField,omitempty"`
	WhereEquals any    `json:"whereEquals,omitempty"`
	OrderBy     string `json:"orderBy,omitempty"`
	Descending  bool   `json:"descending,omitempty"`
}

// ToQuery converts the wire form into a store query.
func (q *WireQuery) ToQuery() store.Query {
	out := store.Query{
		Path:       q.Path,
		OrderBy:    q.OrderBy,
		Descending: q.Descending,
	}
	if q.WhereField != "" {
		out.Where = &store.Filter{Field: q.WhereField, Equals: q.WhereEquals}
	}
	return out
}

// FromQuery converts a store query into its wire form.
func FromQuery(q store.Query) *WireQuery {
	out := &WireQuery{
		Path:       q.Path,
		OrderBy:    q.OrderBy,
		Descending: q.Descending,
	}
	if q.Where != nil {
		out.WhereField = q.Where.Field
		out.WhereEquals = q.Where.Equals
	}
	return out
}

// WireDoc is the serializable form of store.Document.
type WireDoc struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame is a server-to-client message: either a result correlated by ID or
// a pushed snapshot correlated by Sub.
type Frame struct {
	ID    int64      `json:"id,omitempty"`
	Op    string     `json:"op"`
	OK    bool       `json:"ok,omitempty"`
	DocID string     `json:"docId,omitempty"`
	Sub   string     `json:"sub,omitempty"`
	Doc   *WireDoc   `json:"doc,omitempty"`
	Docs  []WireDoc  `json:"docs,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// WireDocs converts store documents into wire documents.
func WireDocs(docs []store.Document) []WireDoc {
	out := make([]WireDoc, 0, len(docs))
	for _, d := range docs {
		out = append(out, WireDoc{ID: d.ID, Data: d.Data})
	}
	return out
}
