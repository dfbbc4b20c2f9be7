package image

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/imgstudio/imgstudio/pkg/models"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestSaver_Save(t *testing.T) {
	saver := NewSaver()
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "test.png")

	img := &models.GeneratedImage{Data: []byte("fake-png-data"), MimeType: "image/png"}
	if err := saver.Save(context.Background(), img, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "fake-png-data" {
		t.Errorf("saved data = %q, want %q", data, "fake-png-data")
	}
	if img.Filename != path {
		t.Errorf("Filename = %q, want %q", img.Filename, path)
	}
}

func TestSaver_Save_NoData(t *testing.T) {
	saver := NewSaver()
	img := &models.GeneratedImage{}
	if err := saver.Save(context.Background(), img, filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("Save() with empty data should return error")
	}
}

func TestSaver_SaveAll(t *testing.T) {
	saver := NewSaver()
	dir := t.TempDir()

	resp := &models.Response{
		Images: []models.GeneratedImage{
			{Data: []byte("one"), MimeType: "image/png"},
			{Data: []byte("two"), MimeType: "image/png"},
		},
	}

	paths, err := saver.SaveAll(context.Background(), resp, filepath.Join(dir, "cat.png"), models.FormatPNG)
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("SaveAll() returned %d paths, want 2", len(paths))
	}
	if !strings.HasSuffix(paths[0], "cat-1.png") || !strings.HasSuffix(paths[1], "cat-2.png") {
		t.Errorf("paths = %v, want numbered suffixes", paths)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Stat(%q) error = %v", p, err)
		}
	}
}

func TestSaver_SaveAll_SingleKeepsPath(t *testing.T) {
	saver := NewSaver()
	path := filepath.Join(t.TempDir(), "exact.png")

	resp := &models.Response{
		Images: []models.GeneratedImage{{Data: []byte("only"), MimeType: "image/png"}},
	}
	paths, err := saver.SaveAll(context.Background(), resp, path, models.FormatPNG)
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if len(paths) != 1 || paths[0] != path {
		t.Errorf("paths = %v, want [%q]", paths, path)
	}
}

func TestSaver_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	saver := NewSaver()
	data, err := saver.Download(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("Download() = %q, want %q", data, "image-bytes")
	}
}

func TestSaver_Download_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	saver := NewSaver()
	if _, err := saver.Download(context.Background(), server.URL); err == nil {
		t.Error("Download() of 404 should return error")
	}
}

func TestGenerateFilename(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	got := GenerateFilenameWithTime("a red fox", 0, models.FormatPNG, ts)
	want := "a_red_fox-20260314-150926.png"
	if got != want {
		t.Errorf("GenerateFilenameWithTime() = %q, want %q", got, want)
	}

	got = GenerateFilenameWithTime("a red fox", 2, models.FormatJPEG, ts)
	want = "a_red_fox-20260314-150926-3.jpeg"
	if got != want {
		t.Errorf("GenerateFilenameWithTime() index 2 = %q, want %q", got, want)
	}
}

func TestDimensions(t *testing.T) {
	data := encodePNG(t, 320, 180)
	w, h, err := Dimensions(data)
	if err != nil {
		t.Fatalf("Dimensions() error = %v", err)
	}
	if w != 320 || h != 180 {
		t.Errorf("Dimensions() = %dx%d, want 320x180", w, h)
	}
}

func TestDimensions_Invalid(t *testing.T) {
	if _, _, err := Dimensions([]byte("not an image")); err == nil {
		t.Error("Dimensions() of garbage should return error")
	}
}
