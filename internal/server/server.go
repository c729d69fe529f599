package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/flexilist/flexisync/store"
)

// Server serves a store.Store over the sync protocol.
type Server struct {
	backend  store.Store
	token    string
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server around the given backend. When token is non-empty,
// connections must present it via the "token" query parameter or the
// X-Sync-Token header.
func New(backend store.Store, token string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		backend: backend,
		token:   token,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP handler for the sync endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sync", s.handleSync)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &connection{
		server:   s,
		conn:     conn,
		outbound: make(chan Frame, 64),
		subs:     make(map[string]store.Watcher),
		logger:   s.logger.With("remote", conn.RemoteAddr().String()),
	}
	c.run(r.Context())
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	presented := r.URL.Query().Get("token")
	if presented == "" {
		presented = r.Header.Get("X-Sync-Token")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) == 1
}

// connection owns one WebSocket client: a read pump dispatching requests
// and a write pump serializing outbound frames.
type connection struct {
	server   *Server
	conn     *websocket.Conn
	outbound chan Frame
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[string]store.Watcher
	closed bool
}

func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(ctx) })
	g.Go(func() error { return c.writePump(ctx) })

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Debug("connection ended", "error", err)
	}

	c.teardown()
	c.conn.Close()
}

func (c *connection) readPump(ctx context.Context) error {
	for {
		var req Request
		if err := c.conn.ReadJSON(&req); err != nil {
			return err
		}
		c.dispatch(ctx, req)
	}
}

func (c *connection) writePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-c.outbound:
			if err := c.conn.WriteJSON(frame); err != nil {
				return err
			}
		}
	}
}

func (c *connection) dispatch(ctx context.Context, req Request) {
	switch req.Op {
	case OpGet:
		doc, err := c.server.backend.Get(ctx, req.Path)
		if err != nil {
			c.fail(ctx, req.ID, err)
			return
		}
		c.reply(ctx, Frame{ID: req.ID, Op: OpResult, OK: true, Doc: &WireDoc{ID: doc.ID, Data: doc.Data}})

	case OpCreate:
		id, err := c.server.backend.Create(ctx, req.Path, req.Data)
		if err != nil {
			c.fail(ctx, req.ID, err)
			return
		}
		c.reply(ctx, Frame{ID: req.ID, Op: OpResult, OK: true, DocID: id})

	case OpSet:
		if err := c.server.backend.Set(ctx, req.Path, req.Data, req.Merge); err != nil {
			c.fail(ctx, req.ID, err)
			return
		}
		c.reply(ctx, Frame{ID: req.ID, Op: OpResult, OK: true})

	case OpDelete:
		if err := c.server.backend.Delete(ctx, req.Path); err != nil {
			c.fail(ctx, req.ID, err)
			return
		}
		c.reply(ctx, Frame{ID: req.ID, Op: OpResult, OK: true})

	case OpList:
		if req.Query == nil {
			c.reply(ctx, Frame{ID: req.ID, Op: OpResult, Error: &ErrorInfo{Code: CodeBadRequest, Message: "missing query"}})
			return
		}
		docs, err := c.server.backend.List(ctx, req.Query.ToQuery())
		if err != nil {
			c.fail(ctx, req.ID, err)
			return
		}
		c.reply(ctx, Frame{ID: req.ID, Op: OpResult, OK: true, Docs: WireDocs(docs)})

	case OpSubscribe:
		c.subscribe(ctx, req)

	case OpUnsubscribe:
		c.unsubscribe(req.Sub)
		c.reply(ctx, Frame{ID: req.ID, Op: OpResult, OK: true})

	default:
		c.reply(ctx, Frame{ID: req.ID, Op: OpResult, Error: &ErrorInfo{Code: CodeBadRequest, Message: "unknown op " + req.Op}})
	}
}

func (c *connection) subscribe(ctx context.Context, req Request) {
	if req.Query == nil {
		c.reply(ctx, Frame{ID: req.ID, Op: OpResult, Error: &ErrorInfo{Code: CodeBadRequest, Message: "missing query"}})
		return
	}

	watcher, err := c.server.backend.Watch(ctx, req.Query.ToQuery())
	if err != nil {
		c.fail(ctx, req.ID, err)
		return
	}

	subID := uuid.NewString()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		watcher.Close()
		return
	}
	c.subs[subID] = watcher
	c.mu.Unlock()

	c.reply(ctx, Frame{ID: req.ID, Op: OpResult, OK: true, Sub: subID})

	go func() {
		for snap := range watcher.Snapshots() {
			if snap.Err != nil {
				c.send(Frame{Op: OpSnapshot, Sub: subID, Error: &ErrorInfo{Code: CodeInternal, Message: snap.Err.Error()}})
				continue
			}
			c.send(Frame{Op: OpSnapshot, Sub: subID, Docs: WireDocs(snap.Docs)})
		}
	}()
}

func (c *connection) unsubscribe(subID string) {
	c.mu.Lock()
	watcher := c.subs[subID]
	delete(c.subs, subID)
	c.mu.Unlock()
	if watcher != nil {
		watcher.Close()
	}
}

func (c *connection) teardown() {
	c.mu.Lock()
	c.closed = true
	watchers := make([]store.Watcher, 0, len(c.subs))
	for _, w := range c.subs {
		watchers = append(watchers, w)
	}
	c.subs = make(map[string]store.Watcher)
	c.mu.Unlock()

	for _, w := range watchers {
		w.Close()
	}
}

func (c *connection) fail(ctx context.Context, id int64, err error) {
	code := CodeInternal
	if errors.Is(err, store.ErrNotFound) {
		code = CodeNotFound
	}
	c.reply(ctx, Frame{ID: id, Op: OpResult, Error: &ErrorInfo{Code: code, Message: err.Error()}})
}

// send queues a snapshot frame, dropping it when the client is slow.
// Snapshots carry whole state, so the next delivery supersedes a dropped
// one. Result frames never go through here.
func (c *connection) send(frame Frame) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.outbound <- frame:
	default:
		c.logger.Warn("outbound buffer full, dropping snapshot", "sub", frame.Sub)
	}
}

// reply queues a result frame, blocking until there is room. A result is
// correlated to an in-flight client call; dropping it would strand the
// caller. ctx is the connection context, so a dead peer still unwinds.
func (c *connection) reply(ctx context.Context, frame Frame) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.outbound <- frame:
	case <-ctx.Done():
	}
}
