package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flexilist/flexisync/store"
)

// ListPreference holds per-list display toggles.
type ListPreference struct {
	HideCompleted *bool
}

// Preferences is the per-user key-value side-table: last route and per-list
// toggles. It is merged read-modify-write, never overwritten wholesale.
type Preferences struct {
	LastRoute       string
	LastVisitedAt   int64
	ListPreferences map[string]ListPreference
}

// PreferenceStore reads and merges one user's preference record. Writes
// update the in-memory cache optimistically before the remote
// acknowledgement; a remote failure is logged, never rolled back.
type PreferenceStore struct {
	store   store.Store
	logger  *slog.Logger
	ownerID string
	now     func() time.Time

	mu     sync.Mutex
	cached Preferences
	loaded bool
}

// NewPreferenceStore creates a preference store for ownerID.
func NewPreferenceStore(st store.Store, ownerID string, logger *slog.Logger) *PreferenceStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceStore{
		store:   st,
		logger:  logger,
		ownerID: ownerID,
		now:     time.Now,
	}
}

// Load fetches the remote record. A missing record is the first-use case,
// equivalent to an all-empty record, not an error.
func (p *PreferenceStore) Load(ctx context.Context) (Preferences, error) {
	doc, err := p.store.Get(ctx, prefsPath(p.ownerID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.mu.Lock()
			p.cached = Preferences{}
			p.loaded = true
			p.mu.Unlock()
			return Preferences{}, nil
		}
		return Preferences{}, fmt.Errorf("loading preferences: %w", err)
	}

	prefs := decodePreferences(doc.Data)
	p.mu.Lock()
	p.cached = prefs
	p.loaded = true
	p.mu.Unlock()
	return prefs, nil
}

// Current returns the cached record.
func (p *PreferenceStore) Current() Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached
}

// LastRoute returns the cached last visited route, or "".
func (p *PreferenceStore) LastRoute() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached.LastRoute
}

// SaveLastRoute records the last visited route. The cache is updated
// before the remote write; a write failure is logged only.
func (p *PreferenceStore) SaveLastRoute(ctx context.Context, route string) {
	visitedAt := p.now().UnixMilli()

	p.mu.Lock()
	p.cached.LastRoute = route
	p.cached.LastVisitedAt = visitedAt
	p.mu.Unlock()

	err := p.store.Set(ctx, prefsPath(p.ownerID), map[string]any{
		"lastRoute":     route,
		"lastVisitedAt": visitedAt,
	}, true)
	if err != nil {
		p.logger.Warn("failed to save last route", "error", err)
	}
}

// ListPreference returns the cached preference for a list, or the zero
// value.
func (p *PreferenceStore) ListPreference(listID string) ListPreference {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached.ListPreferences[listID]
}

// SaveListPreference merges pref into the preference for listID. The merge
// is one level deep: only the fields set on pref change, and sibling list
// entries are preserved. The remote record is loaded first if it has not
// been yet, since the write carries the whole listPreferences map and must
// not clobber entries this store has never seen. Write failures are logged
// only.
func (p *PreferenceStore) SaveListPreference(ctx context.Context, listID string, pref ListPreference) {
	p.ensureLoaded(ctx)

	p.mu.Lock()
	if p.cached.ListPreferences == nil {
		p.cached.ListPreferences = make(map[string]ListPreference)
	}
	entry := p.cached.ListPreferences[listID]
	if pref.HideCompleted != nil {
		entry.HideCompleted = pref.HideCompleted
	}
	p.cached.ListPreferences[listID] = entry
	encoded := encodeListPreferences(p.cached.ListPreferences)
	p.mu.Unlock()

	err := p.store.Set(ctx, prefsPath(p.ownerID), map[string]any{
		"listPreferences": encoded,
	}, true)
	if err != nil {
		p.logger.Warn("failed to save list preference", "list", listID, "error", err)
	}
}

// ensureLoaded fetches the remote record once before the first whole-map
// write, filling the cache underneath any optimistic local writes already
// made. A fetch failure is logged; the save proceeds on the cache it has.
func (p *PreferenceStore) ensureLoaded(ctx context.Context) {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if loaded {
		return
	}

	doc, err := p.store.Get(ctx, prefsPath(p.ownerID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.mu.Lock()
			p.loaded = true
			p.mu.Unlock()
		} else {
			p.logger.Warn("failed to load preferences before save", "error", err)
		}
		return
	}

	fetched := decodePreferences(doc.Data)
	p.mu.Lock()
	// Local writes made before this fetch win over the remote record.
	if p.cached.LastRoute == "" {
		p.cached.LastRoute = fetched.LastRoute
		p.cached.LastVisitedAt = fetched.LastVisitedAt
	}
	for listID, entry := range fetched.ListPreferences {
		if _, ok := p.cached.ListPreferences[listID]; ok {
			continue
		}
		if p.cached.ListPreferences == nil {
			p.cached.ListPreferences = make(map[string]ListPreference)
		}
		p.cached.ListPreferences[listID] = entry
	}
	p.loaded = true
	p.mu.Unlock()
}

func decodePreferences(data map[string]any) Preferences {
	prefs := Preferences{
		LastRoute:     store.String(data["lastRoute"]),
		LastVisitedAt: store.Int64(data["lastVisitedAt"]),
	}
	if raw := store.Map(data["listPreferences"]); raw != nil {
		prefs.ListPreferences = make(map[string]ListPreference, len(raw))
		for listID, entry := range raw {
			m := store.Map(entry)
			if m == nil {
				continue
			}
			var lp ListPreference
			if v, ok := m["hideCompleted"].(bool); ok {
				hide := v
				lp.HideCompleted = &hide
			}
			prefs.ListPreferences[listID] = lp
		}
	}
	return prefs
}

func encodeListPreferences(prefs map[string]ListPreference) map[string]any {
	out := make(map[string]any, len(prefs))
	for listID, lp := range prefs {
		entry := map[string]any{}
		if lp.HideCompleted != nil {
			entry["hideCompleted"] = *lp.HideCompleted
		}
		out[listID] = entry
	}
	return out
}
