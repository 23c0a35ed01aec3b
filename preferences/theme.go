package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/interfaces"
	"github.com/dosesegura/dose-segura/logging"
)

// ErrInvalidThemeMode is returned for modes other than light, dark and system
var ErrInvalidThemeMode = errors.New("invalid theme mode")

// Compile-time check to ensure Theme implements ThemeStore
var _ interfaces.ThemeStore = (*Theme)(nil)

// Theme holds the theme preference, defaulting to system
type Theme struct {
	store interfaces.KeyValueStore

	mu     sync.RWMutex
	mode   entities.ThemeMode
	loaded bool
}

// NewTheme creates a theme preference set to system until Load completes
func NewTheme(store interfaces.KeyValueStore) *Theme {
	return &Theme{
		store: store,
		mode:  entities.ThemeSystem,
	}
}

// Load reads the stored mode. Unknown values are ignored and failures logged.
func (t *Theme) Load(ctx context.Context) {
	raw, ok, err := t.store.Get(ctx, entities.ThemeKey)
	if err != nil {
		logging.Error("Failed to load theme preference", "error", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		if mode := entities.ThemeMode(raw); mode.Valid() {
			t.mode = mode
		} else {
			logging.Warn("Ignoring stored theme preference", "value", raw)
		}
	}
	t.loaded = true
}

// Mode returns the current preference
func (t *Theme) Mode() entities.ThemeMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// SetMode changes the preference immediately and persists it. A failed write
// is logged; the new mode stays in effect.
func (t *Theme) SetMode(ctx context.Context, mode entities.ThemeMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidThemeMode, mode)
	}

	t.mu.Lock()
	t.mode = mode
	t.mu.Unlock()

	if err := t.store.Set(ctx, entities.ThemeKey, string(mode)); err != nil {
		logging.Error("Failed to save theme preference", "error", err)
	}
	return nil
}

// Resolve returns the effective light or dark theme. system follows the
// device theme and falls back to light when the device reports none.
func (t *Theme) Resolve(system entities.ThemeMode) entities.ThemeMode {
	mode := t.Mode()
	if mode != entities.ThemeSystem {
		return mode
	}
	if system == entities.ThemeDark || system == entities.ThemeLight {
		return system
	}
	return entities.ThemeLight
}

// IsLoaded reports whether Load has completed
func (t *Theme) IsLoaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}
