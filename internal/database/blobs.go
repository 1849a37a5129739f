package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"neuroforge-backend/internal/gallery"
)

// BlobStore keeps gallery blobs in the gallery_blobs table.
type BlobStore struct {
	db *sql.DB
}

func NewBlobStore(db *sql.DB) *BlobStore {
	return &BlobStore{db: db}
}

func (b *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := b.db.QueryRowContext(ctx, "SELECT data FROM gallery_blobs WHERE key = $1", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gallery.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery blob: %w", err)
	}
	return []byte(data), nil
}

func (b *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO gallery_blobs (key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("failed to save gallery blob: %w", err)
	}
	return nil
}

func (b *BlobStore) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM gallery_blobs WHERE key = $1", key); err != nil {
		return fmt.Errorf("failed to delete gallery blob: %w", err)
	}
	return nil
}

func (b *BlobStore) Close() error {
	return b.db.Close()
}
