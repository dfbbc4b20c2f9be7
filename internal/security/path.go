package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrAbsolutePath  = errors.New("absolute paths are not allowed")
	ErrReservedName  = errors.New("reserved filename not allowed")
)

var windowsReservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidateSavePath rejects download destinations that would escape the
// working tree or collide with device names.
func ValidateSavePath(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	if filepath.IsAbs(path) {
		return ErrAbsolutePath
	}

	if strings.Contains(path, "..") || strings.HasPrefix(filepath.Clean(path), "..") {
		return ErrPathTraversal
	}

	base := filepath.Base(filepath.Clean(path))
	stem := strings.TrimSuffix(strings.ToLower(base), filepath.Ext(base))
	if windowsReservedNames[stem] {
		return ErrReservedName
	}
	if strings.HasPrefix(base, "-") {
		return fmt.Errorf("filename cannot start with hyphen")
	}

	return nil
}

// PromptFilename derives a filesystem-safe filename stem from a prompt,
// keeping letters, digits, hyphens and underscores.
func PromptFilename(prompt string, maxLen int) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(prompt))

	mapped = strings.Trim(mapped, "_-")
	if maxLen > 0 && len(mapped) > maxLen {
		mapped = mapped[:maxLen]
	}

	stem := strings.ToLower(strings.TrimSuffix(mapped, filepath.Ext(mapped)))
	if mapped == "" || windowsReservedNames[stem] {
		return "image"
	}
	return mapped
}
