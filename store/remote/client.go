// Package remote implements store.Store over the flexisyncd WebSocket sync
// protocol. Creates are echoed into active watches optimistically, marked
// with HasPendingWrites until the server-confirmed snapshot arrives; the
// pending flag is what downstream consumers use to suppress subscriptions
// against not-yet-confirmed paths.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flexilist/flexisync/internal/server"
	"github.com/flexilist/flexisync/store"
)

// Client is a connected sync-protocol client.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	calls   map[int64]chan server.Frame
	watches map[string]*watcher
	echoes  map[string]map[string]store.Document // collection path -> id -> echo
	closed  bool
}

// Dial connects to a flexisyncd endpoint, e.g. "ws://host:port/v1/sync".
// token may be empty when the server runs without auth.
func Dial(ctx context.Context, endpoint, token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if token != "" {
		endpoint += "?token=" + token
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing sync endpoint: %w", err)
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		calls:   make(map[int64]chan server.Frame),
		watches: make(map[string]*watcher),
		echoes:  make(map[string]map[string]store.Document),
	}
	go c.readLoop()
	return c, nil
}

// Close shuts the connection down and fails every in-flight call.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	calls := c.calls
	c.calls = make(map[int64]chan server.Frame)
	watches := c.watches
	c.watches = make(map[string]*watcher)
	c.mu.Unlock()

	for _, ch := range calls {
		close(ch)
	}
	for _, w := range watches {
		w.shutdown()
	}
	return c.conn.Close()
}

// Get returns a document by path.
func (c *Client) Get(ctx context.Context, path string) (store.Document, error) {
	frame, err := c.call(ctx, server.Request{Op: server.OpGet, Path: path})
	if err != nil {
		return store.Document{}, err
	}
	if frame.Doc == nil {
		return store.Document{}, fmt.Errorf("get response missing document")
	}
	return store.Document{ID: frame.Doc.ID, Data: frame.Doc.Data}, nil
}

// Create adds a document with a client-assigned id so the optimistic echo
// and the confirmed document are the same entity. The echo is removed, with
// a warning, if the server rejects the write; a subscription keyed to the
// rejected id simply never activates.
func (c *Client) Create(ctx context.Context, collectionPath string, data map[string]any) (string, error) {
	id := uuid.NewString()
	c.addEcho(collectionPath, store.Document{ID: id, Data: data, HasPendingWrites: true})

	_, err := c.call(ctx, server.Request{
		Op:   server.OpSet,
		Path: store.DocPath(collectionPath, id),
		Data: data,
	})
	if err != nil {
		c.removeEcho(collectionPath, id)
		c.logger.Warn("create rejected, discarding optimistic entry", "path", collectionPath, "id", id, "error", err)
		return "", err
	}
	return id, nil
}

// Set writes a document.
func (c *Client) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	_, err := c.call(ctx, server.Request{Op: server.OpSet, Path: path, Data: data, Merge: merge})
	return err
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.call(ctx, server.Request{Op: server.OpDelete, Path: path})
	return err
}

// List runs a one-shot query.
func (c *Client) List(ctx context.Context, q store.Query) ([]store.Document, error) {
	frame, err := c.call(ctx, server.Request{Op: server.OpList, Query: server.FromQuery(q)})
	if err != nil {
		return nil, err
	}
	return fromWireDocs(frame.Docs), nil
}

// Watch opens a live query.
func (c *Client) Watch(ctx context.Context, q store.Query) (store.Watcher, error) {
	frame, err := c.call(ctx, server.Request{Op: server.OpSubscribe, Query: server.FromQuery(q)})
	if err != nil {
		return nil, err
	}
	if frame.Sub == "" {
		return nil, fmt.Errorf("subscribe response missing subscription id")
	}

	w := &watcher{
		client: c,
		subID:  frame.Sub,
		query:  q,
		ch:     make(chan store.Snapshot, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, store.ErrClosed
	}
	c.watches[frame.Sub] = w
	c.mu.Unlock()
	return w, nil
}

func (c *Client) call(ctx context.Context, req server.Request) (server.Frame, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return server.Frame{}, store.ErrClosed
	}
	c.nextID++
	req.ID = c.nextID
	ch := make(chan server.Frame, 1)
	c.calls[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.dropCall(req.ID)
		return server.Frame{}, fmt.Errorf("sending %s: %w", req.Op, err)
	}

	select {
	case <-ctx.Done():
		c.dropCall(req.ID)
		return server.Frame{}, ctx.Err()
	case frame, ok := <-ch:
		if !ok {
			return server.Frame{}, store.ErrClosed
		}
		if frame.Error != nil {
			return server.Frame{}, frameError(frame.Error)
		}
		return frame, nil
	}
}

func (c *Client) dropCall(id int64) {
	c.mu.Lock()
	delete(c.calls, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	for {
		var frame server.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if !c.isClosed() {
				c.logger.Warn("sync connection lost", "error", err)
			}
			c.Close()
			return
		}

		switch frame.Op {
		case server.OpResult:
			c.mu.Lock()
			ch := c.calls[frame.ID]
			delete(c.calls, frame.ID)
			c.mu.Unlock()
			if ch != nil {
				ch <- frame
			}

		case server.OpSnapshot:
			c.mu.Lock()
			w := c.watches[frame.Sub]
			c.mu.Unlock()
			if w == nil {
				continue
			}
			if frame.Error != nil {
				w.deliver(store.Snapshot{Err: errors.New(frame.Error.Message)})
				continue
			}
			docs := fromWireDocs(frame.Docs)
			c.confirmEchoes(w.query.Path, docs)
			w.deliverServer(docs)
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// addEcho records an optimistic local document and re-delivers merged
// snapshots to every watch the echo is visible in.
func (c *Client) addEcho(collectionPath string, doc store.Document) {
	c.mu.Lock()
	byID := c.echoes[collectionPath]
	if byID == nil {
		byID = make(map[string]store.Document)
		c.echoes[collectionPath] = byID
	}
	byID[doc.ID] = doc
	affected := c.watchersOnLocked(collectionPath)
	c.mu.Unlock()

	for _, w := range affected {
		w.redeliverWithEchoes()
	}
}

func (c *Client) removeEcho(collectionPath, id string) {
	c.mu.Lock()
	delete(c.echoes[collectionPath], id)
	affected := c.watchersOnLocked(collectionPath)
	c.mu.Unlock()

	for _, w := range affected {
		w.redeliverWithEchoes()
	}
}

// confirmEchoes drops echoes that appear in a server snapshot: the write
// has been acknowledged and the confirmed document supersedes the echo.
func (c *Client) confirmEchoes(collectionPath string, serverDocs []store.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byID := c.echoes[collectionPath]
	if len(byID) == 0 {
		return
	}
	for _, doc := range serverDocs {
		delete(byID, doc.ID)
	}
}

// mergeEchoes prepends unconfirmed echoes matching the query to a server
// snapshot. Echoes are always newer than anything the server has confirmed,
// so the block as a whole sits in front of the snapshot; within the block
// the echoes are sorted by the query's order field.
func (c *Client) mergeEchoes(q store.Query, serverDocs []store.Document) []store.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := c.echoes[q.Path]
	if len(byID) == 0 {
		return serverDocs
	}

	confirmed := make(map[string]bool, len(serverDocs))
	for _, doc := range serverDocs {
		confirmed[doc.ID] = true
	}

	var merged []store.Document
	for _, echo := range byID {
		if confirmed[echo.ID] {
			continue
		}
		if q.Where != nil && !matchFilter(echo.Data[q.Where.Field], q.Where.Equals) {
			continue
		}
		merged = append(merged, echo)
	}
	if q.OrderBy != "" {
		sort.SliceStable(merged, func(i, j int) bool {
			a := merged[i].Data[q.OrderBy]
			b := merged[j].Data[q.OrderBy]
			if q.Descending {
				return lessFieldValue(b, a)
			}
			return lessFieldValue(a, b)
		})
	}
	return append(merged, serverDocs...)
}

func lessFieldValue(a, b any) bool {
	if af, aok := store.Float64(a); aok {
		if bf, bok := store.Float64(b); bok {
			return af < bf
		}
	}
	return store.String(a) < store.String(b)
}

func (c *Client) watchersOnLocked(collectionPath string) []*watcher {
	var out []*watcher
	for _, w := range c.watches {
		if w.query.Path == collectionPath {
			out = append(out, w)
		}
	}
	return out
}

func (c *Client) unsubscribe(subID string) {
	c.mu.Lock()
	delete(c.watches, subID)
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	// Best-effort; the server also reaps subscriptions on disconnect.
	go func() {
		ctx, cancel := contextWithDialTimeout()
		defer cancel()
		if _, err := c.call(ctx, server.Request{Op: server.OpUnsubscribe, Sub: subID}); err != nil {
			c.logger.Debug("unsubscribe failed", "sub", subID, "error", err)
		}
	}()
}

func matchFilter(value, want any) bool {
	if vf, ok := store.Float64(value); ok {
		if wf, wok := store.Float64(want); wok {
			return vf == wf
		}
		return false
	}
	return value == want
}

func fromWireDocs(docs []server.WireDoc) []store.Document {
	out := make([]store.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, store.Document{ID: d.ID, Data: d.Data})
	}
	return out
}

func frameError(info *server.ErrorInfo) error {
	switch info.Code {
	case server.CodeNotFound:
		return store.ErrNotFound
	case server.CodeBadRequest:
		return fmt.Errorf("%s: %w", info.Message, store.ErrInvalidQuery)
	default:
		return errors.New(info.Message)
	}
}
