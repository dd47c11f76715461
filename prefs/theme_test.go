package prefs

import (
	"path/filepath"
	"testing"

	"audioscribe/localstore"
)

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(filepath.Join(t.TempDir(), localstore.FileName))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return s
}

func TestThemes_LoadDefaultsToDetected(t *testing.T) {
	tests := []struct {
		name string
		dark bool
		want Theme
	}{
		{"dark terminal", true, ThemeDark},
		{"light terminal", false, ThemeLight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			themes := NewThemes(openStore(t), WithDetector(func() bool { return tt.dark }))
			if got := themes.Load(); got != tt.want {
				t.Errorf("Load() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThemes_LoadPersisted(t *testing.T) {
	store := openStore(t)
	_ = store.SetString(ThemeKey, "dark")

	themes := NewThemes(store, WithDetector(func() bool { return false }))
	if got := themes.Load(); got != ThemeDark {
		t.Errorf("Load() = %q, want dark", got)
	}
}

func TestThemes_LoadInvalidFallsBack(t *testing.T) {
	store := openStore(t)
	_ = store.SetString(ThemeKey, "purple")

	themes := NewThemes(store, WithDetector(func() bool { return true }))
	if got := themes.Load(); got != ThemeDark {
		t.Errorf("Load() = %q, want detected dark", got)
	}
}

func TestThemes_TogglePersists(t *testing.T) {
	store := openStore(t)
	themes := NewThemes(store, WithDetector(func() bool { return false }))
	themes.Load()

	if got := themes.Toggle(); got != ThemeDark {
		t.Fatalf("Toggle() = %q, want dark", got)
	}
	res, _ := store.Get(ThemeKey)
	if res.String() != "dark" {
		t.Errorf("persisted theme = %q, want dark", res.String())
	}

	reloaded := NewThemes(store, WithDetector(func() bool { return false }))
	if got := reloaded.Load(); got != ThemeDark {
		t.Errorf("reloaded theme = %q, want dark", got)
	}

	if got := themes.Toggle(); got != ThemeLight {
		t.Errorf("second Toggle() = %q, want light", got)
	}
}

func TestThemes_NilStore(t *testing.T) {
	themes := NewThemes(nil, WithDetector(func() bool { return true }))
	if themes.Current() != ThemeDark {
		t.Errorf("Current() = %q, want dark", themes.Current())
	}
	themes.Set(ThemeLight)
	if themes.Current() != ThemeLight {
		t.Errorf("Current() = %q, want light", themes.Current())
	}
}

func TestParseTheme(t *testing.T) {
	for _, in := range []string{"light", "Dark", " dark "} {
		if _, err := ParseTheme(in); err != nil {
			t.Errorf("ParseTheme(%q) failed: %v", in, err)
		}
	}
	if _, err := ParseTheme("system"); err == nil {
		t.Error("ParseTheme(system) should fail")
	}
}
