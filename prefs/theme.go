// Package prefs persists user interface preferences.
package prefs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// ThemeKey is the persisted-state key for the theme.
const ThemeKey = "theme"

// Theme is the color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", fmt.Errorf("unknown theme %q (want light or dark)", s)
}

// Dark reports whether t is the dark theme.
func (t Theme) Dark() bool { return t == ThemeDark }

// Opposite returns the other theme.
func (t Theme) Opposite() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Store is the persistence the theme needs.
type Store interface {
	Get(key string) (gjson.Result, error)
	SetString(key, value string) error
}

// Themes loads, toggles and persists the theme.
type Themes struct {
	mu      sync.Mutex
	store   Store
	current Theme
	detect  func() bool
	log     zerolog.Logger
}

// Option configures Themes.
type Option func(*Themes)

// WithDetector overrides terminal background detection.
func WithDetector(detect func() bool) Option {
	return func(t *Themes) {
		t.detect = detect
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Themes) {
		t.log = l
	}
}

// NewThemes creates a theme preference backed by store, which may be nil.
func NewThemes(store Store, opts ...Option) *Themes {
	t := &Themes{
		store:  store,
		detect: lipgloss.HasDarkBackground,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load reads the persisted theme. A missing or invalid value falls back to
// the terminal's background.
func (t *Themes) Load() Theme {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = t.detected()
	if t.store == nil {
		return t.current
	}

	res, err := t.store.Get(ThemeKey)
	if err != nil {
		t.log.Error().Err(err).Msg("failed to load theme")
		return t.current
	}
	if !res.Exists() {
		return t.current
	}
	if theme, err := ParseTheme(res.String()); err == nil {
		t.current = theme
	} else {
		t.log.Warn().Str("value", res.Raw).Msg("ignoring invalid persisted theme")
	}
	return t.current
}

// Current returns the active theme.
func (t *Themes) Current() Theme {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == "" {
		t.current = t.detected()
	}
	return t.current
}

// Toggle switches to the other theme and persists it.
func (t *Themes) Toggle() Theme {
	t.mu.Lock()
	if t.current == "" {
		t.current = t.detected()
	}
	next := t.current.Opposite()
	t.mu.Unlock()

	t.Set(next)
	return next
}

// Set changes the theme and persists it. A persistence failure is logged and
// does not undo the change.
func (t *Themes) Set(theme Theme) {
	t.mu.Lock()
	t.current = theme
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	if err := t.store.SetString(ThemeKey, string(theme)); err != nil {
		t.log.Error().Err(err).Msg("failed to save theme")
	}
}

// Apply makes lipgloss adaptive colors follow theme.
func Apply(theme Theme) {
	lipgloss.SetHasDarkBackground(theme.Dark())
}

func (t *Themes) detected() Theme {
	if t.detect != nil && t.detect() {
		return ThemeDark
	}
	return ThemeLight
}
