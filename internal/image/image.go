package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/imgstudio/imgstudio/internal/security"
	"github.com/imgstudio/imgstudio/pkg/models"
)

// Saver writes generated images to disk, downloading from a URL when the
// bytes are not inline.
type Saver struct {
	httpClient *http.Client
}

func NewSaver() *Saver {
	return &Saver{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (s *Saver) Save(ctx context.Context, img *models.GeneratedImage, path string) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("no image data available")
	}
	_ = ctx

	if err := ensureDir(path); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	img.Filename = path
	return nil
}

func (s *Saver) SaveAll(ctx context.Context, resp *models.Response, basePath string, format models.OutputFormat) ([]string, error) {
	paths := make([]string, 0, len(resp.Images))

	for i := range resp.Images {
		path := generatePath(basePath, &resp.Images[i], i, len(resp.Images), format)
		if err := s.Save(ctx, &resp.Images[i], path); err != nil {
			return paths, fmt.Errorf("failed to save image %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// Download fetches image bytes from a URL.
func (s *Saver) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func generatePath(basePath string, img *models.GeneratedImage, index, total int, format models.OutputFormat) string {
	if basePath != "" {
		if total == 1 {
			return basePath
		}
		ext := filepath.Ext(basePath)
		base := basePath[:len(basePath)-len(ext)]
		return fmt.Sprintf("%s-%d%s", base, index+1, ext)
	}
	return GenerateFilename(img.SourcePrompt, index, format)
}

// GenerateFilename builds "<prompt-stem>-<timestamp>[-<n>].<ext>" for a
// card's download action.
func GenerateFilename(prompt string, index int, format models.OutputFormat) string {
	return GenerateFilenameWithTime(prompt, index, format, time.Now())
}

func GenerateFilenameWithTime(prompt string, index int, format models.OutputFormat, t time.Time) string {
	stem := security.PromptFilename(prompt, 50)
	timestamp := t.Format("20060102-150405")
	if index > 0 {
		return fmt.Sprintf("%s-%s-%d.%s", stem, timestamp, index+1, format)
	}
	return fmt.Sprintf("%s-%s.%s", stem, timestamp, format)
}

// Dimensions probes the pixel size of an encoded image (png, jpeg or
// webp) without decoding the full bitmap.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
