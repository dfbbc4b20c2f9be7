package security

import (
	"errors"
	"testing"
)

func TestValidateSavePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"simple filename", "fox.png", nil},
		{"subdirectory", "out/fox.png", nil},
		{"empty", "", errors.New("empty path")},
		{"absolute", "/etc/passwd", ErrAbsolutePath},
		{"traversal", "../secrets.png", ErrPathTraversal},
		{"embedded traversal", "out/../../x.png", ErrPathTraversal},
		{"windows device", "con.png", ErrReservedName},
		{"windows device upper", "NUL.png", ErrReservedName},
		{"leading hyphen", "-rf.png", errors.New("hyphen")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSavePath(tt.path)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSavePath(%q) error = %v, want nil", tt.path, err)
				}
				return
			}
			if err == nil {
				t.Errorf("ValidateSavePath(%q) error = nil, want error", tt.path)
			}
		})
	}
}

func TestValidateSavePath_Sentinels(t *testing.T) {
	if err := ValidateSavePath("/abs.png"); !errors.Is(err, ErrAbsolutePath) {
		t.Errorf("error = %v, want %v", err, ErrAbsolutePath)
	}
	if err := ValidateSavePath("../x.png"); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("error = %v, want %v", err, ErrPathTraversal)
	}
	if err := ValidateSavePath("aux.png"); !errors.Is(err, ErrReservedName) {
		t.Errorf("error = %v, want %v", err, ErrReservedName)
	}
}

func TestPromptFilename(t *testing.T) {
	tests := []struct {
		prompt string
		maxLen int
		want   string
	}{
		{"a red fox", 50, "a_red_fox"},
		{"  spaces  ", 50, "spaces"},
		{"slash/and\\colon:", 50, "slash_and_colon"},
		{"", 50, "image"},
		{"!!!", 50, "image"},
		{"con", 50, "image"},
		{"abcdefghij", 4, "abcd"},
	}

	for _, tt := range tests {
		if got := PromptFilename(tt.prompt, tt.maxLen); got != tt.want {
			t.Errorf("PromptFilename(%q, %d) = %q, want %q", tt.prompt, tt.maxLen, got, tt.want)
		}
	}
}
