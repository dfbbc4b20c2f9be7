package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

const (
	// APIKeyEnv is the environment variable consulted when no key is
	// stored or passed explicitly.
	APIKeyEnv = "GEMINI_API_KEY"

	settingsFile = "settings.json"
)

// LoadEnv reads a .env file from the working directory into the process
// environment. A missing file is not an error.
func LoadEnv() {
	_ = godotenv.Load()
}

// Dir returns the platform-specific config directory for imgstudio.
func Dir() (string, error) {
	// Allow override for testing
	if testDir := os.Getenv("IMGSTUDIO_CONFIG_DIR"); testDir != "" {
		return testDir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "imgstudio"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "imgstudio"), nil
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "imgstudio"), nil
	}
}

// DataDir returns the directory where generated images and the gallery
// database live.
func DataDir() (string, error) {
	if testDir := os.Getenv("IMGSTUDIO_DATA_DIR"); testDir != "" {
		return testDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".imgstudio"), nil
}

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Settings holds persisted UI preferences.
type Settings struct {
	Theme string `json:"theme"`
}

// NormalizeTheme maps any unrecognized value to the dark default.
func NormalizeTheme(theme string) string {
	if theme == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// LoadSettings reads settings from dir, degrading to defaults when the
// file is missing or unreadable.
func LoadSettings(dir string) Settings {
	s := Settings{Theme: ThemeDark}

	data, err := os.ReadFile(filepath.Join(dir, settingsFile))
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{Theme: ThemeDark}
	}

	s.Theme = NormalizeTheme(s.Theme)
	return s
}

// Save writes settings to dir, creating it if needed.
func (s Settings) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, settingsFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", settingsFile, err)
	}
	return nil
}
