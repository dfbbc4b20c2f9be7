package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDir_Override(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("IMGSTUDIO_CONFIG_DIR", tmpDir)

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if dir != tmpDir {
		t.Errorf("Dir() = %q, want %q", dir, tmpDir)
	}
}

func TestNormalizeTheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dark", ThemeDark},
		{"light", ThemeLight},
		{"", ThemeDark},
		{"sepia", ThemeDark},
	}

	for _, tt := range tests {
		if got := NormalizeTheme(tt.in); got != tt.want {
			t.Errorf("NormalizeTheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSettings_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	s := Settings{Theme: ThemeLight}
	if err := s.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := LoadSettings(dir)
	if got.Theme != ThemeLight {
		t.Errorf("LoadSettings() Theme = %q, want %q", got.Theme, ThemeLight)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	got := LoadSettings(t.TempDir())
	if got.Theme != ThemeDark {
		t.Errorf("LoadSettings() Theme = %q, want default %q", got.Theme, ThemeDark)
	}
}

func TestLoadSettings_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	got := LoadSettings(dir)
	if got.Theme != ThemeDark {
		t.Errorf("LoadSettings() Theme = %q, want default %q", got.Theme, ThemeDark)
	}
}

func TestLoadSettings_UnknownTheme(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(`{"theme":"solarized"}`), 0644); err != nil {
		t.Fatal(err)
	}

	got := LoadSettings(dir)
	if got.Theme != ThemeDark {
		t.Errorf("LoadSettings() Theme = %q, want fallback %q", got.Theme, ThemeDark)
	}
}
