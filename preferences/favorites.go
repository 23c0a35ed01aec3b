// Package preferences holds the user's favorites and theme choice. Both are
// constructed explicitly with a key-value store and loaded once at startup.
package preferences

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/interfaces"
	"github.com/dosesegura/dose-segura/logging"
)

// Compile-time check to ensure Favorites implements FavoritesStore
var _ interfaces.FavoritesStore = (*Favorites)(nil)

// Favorites is the ordered set of favorite medication identifiers
type Favorites struct {
	store interfaces.KeyValueStore

	mu      sync.RWMutex
	ids     []string
	index   map[string]struct{}
	loading bool
}

// NewFavorites creates an empty favorite set that reports loading until Load
func NewFavorites(store interfaces.KeyValueStore) *Favorites {
	return &Favorites{
		store:   store,
		ids:     []string{},
		index:   make(map[string]struct{}),
		loading: true,
	}
}

// Load reads the persisted list. A missing key, unreadable store or malformed
// value leaves the set empty; failures are logged.
func (f *Favorites) Load(ctx context.Context) {
	ids := f.read(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = f.ids[:0]
	f.index = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := f.index[id]; dup {
			continue
		}
		f.index[id] = struct{}{}
		f.ids = append(f.ids, id)
	}
	f.loading = false
}

func (f *Favorites) read(ctx context.Context) []string {
	raw, ok, err := f.store.Get(ctx, entities.FavoritesKey)
	if err != nil {
		logging.Error("Failed to load favorites", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		logging.Error("Failed to decode favorites", "error", err)
		return nil
	}
	return ids
}

// Toggle removes id when present, appends it otherwise, persists the new list
// and returns it. A failed write is logged and the in-memory list is kept.
func (f *Favorites) Toggle(ctx context.Context, id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.index[id]; ok {
		delete(f.index, id)
		next := make([]string, 0, len(f.ids))
		for _, existing := range f.ids {
			if existing != id {
				next = append(next, existing)
			}
		}
		f.ids = next
	} else {
		f.index[id] = struct{}{}
		f.ids = append(f.ids, id)
	}

	body, err := json.Marshal(f.ids)
	if err != nil {
		logging.Error("Failed to encode favorites", "error", err)
	} else if err := f.store.Set(ctx, entities.FavoritesKey, string(body)); err != nil {
		logging.Error("Failed to save favorites", "error", err)
	}

	return f.copyIDs()
}

// IsFavorite reports whether id is in the set
func (f *Favorites) IsFavorite(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.index[id]
	return ok
}

// List returns the identifiers in insertion order
func (f *Favorites) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.copyIDs()
}

// IsLoading reports whether Load has not completed yet
func (f *Favorites) IsLoading() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loading
}

func (f *Favorites) copyIDs() []string {
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}
