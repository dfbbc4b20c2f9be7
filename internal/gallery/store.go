package gallery

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    prompt TEXT NOT NULL,
    model TEXT NOT NULL,
    image_path TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    parent_id TEXT,
    operation TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (parent_id) REFERENCES cards(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_created_at ON cards(created_at);
CREATE INDEX IF NOT EXISTS idx_cards_parent_id ON cards(parent_id);
`

// Card is a persisted gallery entry: one generated or upscaled image
// together with the prompt that produced it.
type Card struct {
	ID        string
	Prompt    string
	Model     string
	ImagePath string
	MimeType  string
	ParentID  string
	Operation string
	CreatedAt time.Time
}

const (
	OperationGenerate = "generate"
	OperationUpscale  = "upscale"
)

type Store struct {
	db *sql.DB
}

func NewStoreWithPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AddCard(ctx context.Context, card *Card) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cards (id, prompt, model, image_path, mime_type, parent_id, operation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.Prompt, card.Model, card.ImagePath, card.MimeType,
		nullString(card.ParentID), card.Operation, card.CreatedAt)
	return err
}

func (s *Store) GetCard(ctx context.Context, id string) (*Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, model, image_path, mime_type, parent_id, operation, created_at
		 FROM cards WHERE id = ?`, id)

	card := &Card{}
	var parentID sql.NullString
	err := row.Scan(&card.ID, &card.Prompt, &card.Model, &card.ImagePath,
		&card.MimeType, &parentID, &card.Operation, &card.CreatedAt)
	if err != nil {
		return nil, err
	}
	card.ParentID = parentID.String
	return card, nil
}

// ListCards returns cards newest first.
func (s *Store) ListCards(ctx context.Context, limit int) ([]*Card, error) {
	query := `SELECT id, prompt, model, image_path, mime_type, parent_id, operation, created_at
		 FROM cards ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*Card
	for rows.Next() {
		card := &Card{}
		var parentID sql.NullString
		if err := rows.Scan(&card.ID, &card.Prompt, &card.Model, &card.ImagePath,
			&card.MimeType, &parentID, &card.Operation, &card.CreatedAt); err != nil {
			return nil, err
		}
		card.ParentID = parentID.String
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (s *Store) CountCards(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&count)
	return count, err
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
