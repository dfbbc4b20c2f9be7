package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/imgstudio/imgstudio/internal/image"
	"github.com/imgstudio/imgstudio/internal/provider"
	"github.com/imgstudio/imgstudio/pkg/models"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	generateFunc func(ctx context.Context, req *models.Request) (*models.Response, error)
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return &models.Response{
		Images: []models.GeneratedImage{
			{Data: []byte("test image data"), MimeType: "image/png", SourcePrompt: req.Prompt},
		},
	}, nil
}

func (m *mockProvider) Upscale(_ context.Context, _ *models.UpscaleRequest) (*models.Response, error) {
	return nil, provider.ErrUpscaleFailed
}

func (m *mockProvider) ListModels() []string {
	return []string{models.DefaultModel}
}

// resetFlags resets all global flags to their default values.
func resetFlags() {
	flagModel = models.DefaultModel
	flagAspect = "1:1"
	flagResolution = ""
	flagQuality = ""
	flagCount = 1
	flagOutput = ""
	flagFormat = "png"
	flagAPIKey = ""
	flagVerbose = false
	flagNoDisplay = false
}

func newTestApp(out *bytes.Buffer) *App {
	return &App{
		Out:      out,
		Err:      out,
		Registry: models.DefaultRegistry(),
		GetEnv: func(key string) string {
			return ""
		},
		NewProvider: func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error) {
			return &mockProvider{}, nil
		},
		NewSaver: image.NewSaver,
	}
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("IMGSTUDIO_CONFIG_DIR", t.TempDir())
	t.Setenv("IMGSTUDIO_DATA_DIR", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
}

func TestRunGenerate_SavesImage(t *testing.T) {
	resetFlags()
	isolateConfig(t)

	var out bytes.Buffer
	app := newTestApp(&out)
	output := filepath.Join(t.TempDir(), "fox.png")

	cmd := newRootCmd(app)
	cmd.SetArgs([]string{"a red fox", "--api-key", "test-key", "-o", output, "--no-display"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(out.String(), "Saved: "+output) {
		t.Errorf("output missing save line: %q", out.String())
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "test image data" {
		t.Errorf("saved data = %q", data)
	}
}

func TestRunGenerate_InvalidFormat(t *testing.T) {
	resetFlags()
	isolateConfig(t)

	var out bytes.Buffer
	cmd := newRootCmd(newTestApp(&out))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"a fox", "--api-key", "test-key", "-f", "bmp"})
	if err := cmd.Execute(); err == nil {
		t.Error("Execute() with invalid format should return error")
	}
}

func TestRunGenerate_UnknownModel(t *testing.T) {
	resetFlags()
	isolateConfig(t)

	var out bytes.Buffer
	cmd := newRootCmd(newTestApp(&out))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"a fox", "--api-key", "test-key", "-m", "no-such-model"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("Execute() with unknown model should return error")
	}
	if !strings.Contains(err.Error(), "no-such-model") {
		t.Errorf("error %v should name the model", err)
	}
}

func TestRunGenerate_MissingKey(t *testing.T) {
	resetFlags()
	isolateConfig(t)

	var out bytes.Buffer
	cmd := newRootCmd(newTestApp(&out))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"a fox"})
	if err := cmd.Execute(); err == nil {
		t.Error("Execute() without any key should return error")
	}
}

func TestRunGenerate_ProviderFailure(t *testing.T) {
	resetFlags()
	isolateConfig(t)

	var out bytes.Buffer
	app := newTestApp(&out)
	app.NewProvider = func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error) {
		return &mockProvider{
			generateFunc: func(context.Context, *models.Request) (*models.Response, error) {
				return nil, errors.New("upstream error")
			},
		}, nil
	}

	cmd := newRootCmd(app)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"a fox", "--api-key", "test-key"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "generation failed") {
		t.Errorf("Execute() error = %v, want generation failure", err)
	}
}

func TestKeysShow_NoKey(t *testing.T) {
	resetFlags()
	isolateConfig(t)

	var out bytes.Buffer
	cmd := newRootCmd(newTestApp(&out))
	cmd.SetArgs([]string{"keys", "show"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "No API key configured") {
		t.Errorf("output = %q, want instructional message", out.String())
	}
}

func TestHistoryListAndClear(t *testing.T) {
	resetFlags()
	isolateConfig(t)

	var out bytes.Buffer
	cmd := newRootCmd(newTestApp(&out))
	cmd.SetArgs([]string{"history", "list"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "No prompt history") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	cmd = newRootCmd(newTestApp(&out))
	cmd.SetArgs([]string{"history", "clear"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "History cleared") {
		t.Errorf("output = %q", out.String())
	}
}

func TestGalleryList_Empty(t *testing.T) {
	resetFlags()
	isolateConfig(t)

	var out bytes.Buffer
	cmd := newRootCmd(newTestApp(&out))
	cmd.SetArgs([]string{"gallery"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "Gallery is empty") {
		t.Errorf("output = %q", out.String())
	}
}
