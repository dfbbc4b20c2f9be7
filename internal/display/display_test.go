package display

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/imgstudio/imgstudio/pkg/models"
)

func TestKittyEncoder_Empty(t *testing.T) {
	var buf bytes.Buffer
	enc := NewKittyEncoder(&buf)
	if err := enc.Encode(nil); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Encode(nil) wrote %d bytes, want 0", buf.Len())
	}
}

func TestKittyEncoder_Single(t *testing.T) {
	var buf bytes.Buffer
	enc := NewKittyEncoder(&buf)
	if err := enc.Encode([]byte("small image")); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, escapeStart+"a=T,f=100,q=2;") {
		t.Errorf("output missing transmit header: %q", out)
	}
	if !strings.HasSuffix(out, escapeEnd) {
		t.Errorf("output missing terminator: %q", out)
	}
	if strings.Contains(out, "m=1") {
		t.Error("small payload should not be chunked")
	}
}

func TestKittyEncoder_Chunked(t *testing.T) {
	var buf bytes.Buffer
	enc := NewKittyEncoder(&buf)

	// Base64 expansion pushes this well past one chunk.
	data := bytes.Repeat([]byte{0xAB}, chunkSize)
	if err := enc.Encode(data); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "a=T,f=100,q=2,m=1") {
		t.Errorf("first chunk missing continuation header: %q", out[:64])
	}
	if !strings.Contains(out, "m=0") {
		t.Error("final chunk missing m=0")
	}
	if strings.Count(out, escapeStart) < 2 {
		t.Errorf("expected multiple escape sequences, got %d", strings.Count(out, escapeStart))
	}
}

func TestDisplayer_InlineData(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf)

	img := &models.GeneratedImage{Data: []byte("pixels")}
	if err := d.Display(img); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Display() wrote nothing")
	}
}

func TestDisplayer_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	if err := os.WriteFile(path, []byte("on-disk"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var buf bytes.Buffer
	d := New(&buf)
	img := &models.GeneratedImage{Filename: path}
	if err := d.Display(img); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Display() wrote nothing")
	}
}

func TestDisplayer_NoDataOrFile(t *testing.T) {
	d := New(&bytes.Buffer{})
	if err := d.Display(&models.GeneratedImage{}); err == nil {
		t.Error("Display() with no data or file should return error")
	}
}

func TestIsTerminalSupported(t *testing.T) {
	t.Setenv("TERM_PROGRAM", "")
	t.Setenv("KITTY_WINDOW_ID", "")
	t.Setenv("ITERM_SESSION_ID", "")
	t.Setenv("TERM", "xterm-256color")
	if IsTerminalSupported() {
		t.Error("plain xterm should not be reported as supported")
	}

	t.Setenv("TERM_PROGRAM", "ghostty")
	if !IsTerminalSupported() {
		t.Error("ghostty should be reported as supported")
	}
}
