package entities

// ThemeMode is the stored theme preference.
type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

// Valid reports whether m is one of the three accepted modes.
func (m ThemeMode) Valid() bool {
	switch m {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Storage keys shared with the mobile client.
const (
	FavoritesKey = "@dose_segura_favorites"
	ThemeKey     = "dose_segura_theme_preference"
)
