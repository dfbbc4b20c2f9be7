package gallery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/imgstudio/imgstudio/pkg/models"
)

// Manager persists image bytes to the data directory and records a card
// for each one in the store.
type Manager struct {
	store    *Store
	imageDir string
}

func NewManager(store *Store, dataDir string) *Manager {
	return &Manager{
		store:    store,
		imageDir: filepath.Join(dataDir, "images"),
	}
}

func (m *Manager) RecordGeneration(ctx context.Context, img *models.GeneratedImage, model string) (*Card, error) {
	return m.record(ctx, img, model, "", OperationGenerate, img.SourcePrompt)
}

func (m *Manager) RecordUpscale(ctx context.Context, img *models.GeneratedImage, model, parentID, prompt string) (*Card, error) {
	return m.record(ctx, img, model, parentID, OperationUpscale, prompt)
}

func (m *Manager) record(ctx context.Context, img *models.GeneratedImage, model, parentID, operation, prompt string) (*Card, error) {
	if len(img.Data) == 0 {
		return nil, models.ErrNoImageData
	}

	if err := os.MkdirAll(m.imageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	id := uuid.NewString()
	format := models.FormatFromMime(img.MimeType)
	path := filepath.Join(m.imageDir, fmt.Sprintf("%s.%s", id, format))

	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	card := &Card{
		ID:        id,
		Prompt:    prompt,
		Model:     model,
		ImagePath: path,
		MimeType:  img.MimeType,
		ParentID:  parentID,
		Operation: operation,
		CreatedAt: time.Now().UTC(),
	}

	if err := m.store.AddCard(ctx, card); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to record card: %w", err)
	}

	return card, nil
}

// LoadImage reads a card's image bytes back from disk.
func (m *Manager) LoadImage(card *Card) ([]byte, error) {
	return os.ReadFile(card.ImagePath)
}

// DeleteCard removes the card row and its image file.
func (m *Manager) DeleteCard(ctx context.Context, card *Card) error {
	if err := m.store.DeleteCard(ctx, card.ID); err != nil {
		return err
	}
	if err := os.Remove(card.ImagePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
