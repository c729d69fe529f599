package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flexilist/flexisync/item"
	"github.com/flexilist/flexisync/list"
	"github.com/flexilist/flexisync/store"
)

// Gateway issues validated create/update/delete operations against the
// remote store, stamping client-observed timestamps and touching the
// denormalized updatedAt on a parent list whenever one of its items
// changes. It performs no conflict resolution of its own; concurrent
// writes are last-writer-wins at the store.
type Gateway struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewGateway creates a mutation gateway.
func NewGateway(st store.Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: st, logger: logger, now: time.Now}
}

func (g *Gateway) nowMillis() int64 {
	return g.now().UnixMilli()
}

// CreateList creates a list owned by ownerID and returns its id. The
// definition is validated before any remote call.
func (g *Gateway) CreateList(ctx context.Context, ownerID, title, description string, fields []list.FieldSpec) (string, error) {
	if ownerID == "" {
		return "", ErrNotSignedIn
	}
	if err := list.ValidateDefinition(title, fields); err != nil {
		return "", err
	}

	now := g.nowMillis()
	id, err := g.store.Create(ctx, listsCollection, map[string]any{
		"ownerId":     ownerID,
		"title":       title,
		"description": description,
		"fields":      list.FieldsData(fields),
		"createdAt":   now,
		"updatedAt":   now,
	})
	if err != nil {
		return "", fmt.Errorf("creating list: %w", err)
	}
	return id, nil
}

// UpdateList replaces a list's title, description and field set. Field ids
// must be preserved by the caller so existing item data stays addressable.
func (g *Gateway) UpdateList(ctx context.Context, listID, title, description string, fields []list.FieldSpec) error {
	if err := list.ValidateDefinition(title, fields); err != nil {
		return err
	}

	err := g.store.Set(ctx, listPath(listID), map[string]any{
		"title":       title,
		"description": description,
		"fields":      list.FieldsData(fields),
		"updatedAt":   g.nowMillis(),
	}, true)
	if err != nil {
		return fmt.Errorf("updating list: %w", err)
	}
	return nil
}

// DeleteList destroys a list and all of its items. The cascade is
// sequential and ordered children-first so a failure cannot orphan items
// behind a deleted parent; every step is idempotent, so a retry after a
// partial failure finishes the job.
func (g *Gateway) DeleteList(ctx context.Context, listID string) error {
	items, err := g.store.List(ctx, store.Query{Path: itemsCollection(listID)})
	if err != nil {
		return fmt.Errorf("enumerating items for delete: %w", err)
	}
	for _, doc := range items {
		if err := g.store.Delete(ctx, itemPath(listID, doc.ID)); err != nil {
			return fmt.Errorf("deleting item %s: %w", doc.ID, err)
		}
	}

	if err := g.store.Delete(ctx, listPath(listID)); err != nil {
		return fmt.Errorf("deleting list: %w", err)
	}
	return nil
}

// CreateItem adds an item to parent, validating its data against the
// parent's current field schema, and touches the parent.
func (g *Gateway) CreateItem(ctx context.Context, parent list.List, data map[string]any) (string, error) {
	if parent.ID == "" {
		return "", fmt.Errorf("creating item: %w", list.ErrListNotFound)
	}
	if err := item.ValidateData(parent.Fields, data); err != nil {
		return "", err
	}

	now := g.nowMillis()
	id, err := g.store.Create(ctx, itemsCollection(parent.ID), map[string]any{
		"data":      data,
		"completed": false,
		"createdAt": now,
		"updatedAt": now,
	})
	if err != nil {
		return "", fmt.Errorf("creating item: %w", err)
	}

	g.touchParent(ctx, parent.ID)
	return id, nil
}

// UpdateItemData replaces an item's field data after validating it against
// the parent's schema, and touches the parent.
func (g *Gateway) UpdateItemData(ctx context.Context, parent list.List, itemID string, data map[string]any) error {
	if err := item.ValidateData(parent.Fields, data); err != nil {
		return err
	}

	err := g.store.Set(ctx, itemPath(parent.ID, itemID), map[string]any{
		"data":      data,
		"updatedAt": g.nowMillis(),
	}, true)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	g.touchParent(ctx, parent.ID)
	return nil
}

// SetCompleted toggles an item's completion flag independently of its
// field data, and touches the parent.
func (g *Gateway) SetCompleted(ctx context.Context, listID, itemID string, completed bool) error {
	err := g.store.Set(ctx, itemPath(listID, itemID), map[string]any{
		"completed": completed,
		"updatedAt": g.nowMillis(),
	}, true)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	g.touchParent(ctx, listID)
	return nil
}

// DeleteItem removes a single item and touches the parent.
func (g *Gateway) DeleteItem(ctx context.Context, listID, itemID string) error {
	if err := g.store.Delete(ctx, itemPath(listID, itemID)); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	g.touchParent(ctx, listID)
	return nil
}

// touchParent refreshes the parent list's denormalized updatedAt. The
// marker only feeds "recently modified" ordering, so a failure is logged
// and never propagated to the primary mutation's caller.
func (g *Gateway) touchParent(ctx context.Context, listID string) {
	err := g.store.Set(ctx, listPath(listID), map[string]any{
		"updatedAt": g.nowMillis(),
	}, true)
	if err != nil {
		g.logger.Warn("failed to touch parent list", "list", listID, "error", err)
	}
}
