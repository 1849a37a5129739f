package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
	"neuroforge-backend/internal/gallery"
)

type Client struct {
	Supabase *supabase.Client
}

// NewClient uses the service key; gallery rows and uploads are written server side only.
func NewClient(supabaseURL, serviceKey string) (*Client, error) {
	client, err := supabase.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{Supabase: client}, nil
}

type blobRow struct {
	Key       string `json:"key"`
	Data      string `json:"data"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// BlobTable stores gallery blobs in a PostgREST table with key and data columns.
type BlobTable struct {
	client *Client
	table  string
}

func NewBlobTable(client *Client, table string) *BlobTable {
	return &BlobTable{client: client, table: table}
}

func (b *BlobTable) Load(_ context.Context, key string) ([]byte, error) {
	var rows []blobRow
	_, err := b.client.Supabase.From(b.table).
		Select("key,data", "", false).
		Eq("key", key).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery row: %w", err)
	}
	if len(rows) == 0 {
		return nil, gallery.ErrNotFound
	}
	return []byte(rows[0].Data), nil
}

func (b *BlobTable) Save(_ context.Context, key string, data []byte) error {
	row := blobRow{Key: key, Data: string(data), UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	_, _, err := b.client.Supabase.From(b.table).
		Upsert(row, "key", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to save gallery row: %w", err)
	}
	return nil
}

func (b *BlobTable) Delete(_ context.Context, key string) error {
	_, _, err := b.client.Supabase.From(b.table).
		Delete("minimal", "").
		Eq("key", key).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete gallery row: %w", err)
	}
	return nil
}
