package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"neuroforge-backend/internal/assets"
	"neuroforge-backend/internal/config"
	"neuroforge-backend/internal/database"
	"neuroforge-backend/internal/gallery"
	"neuroforge-backend/internal/supabase"
)

// newPersister returns the gallery persister selected by GALLERY_BACKEND and a func releasing it.
func newPersister(ctx context.Context, cfg *config.Config, log zerolog.Logger) (gallery.Persister, func(), error) {
	noop := func() {}

	switch cfg.GalleryBackend {
	case "memory":
		return gallery.NewMemoryPersister(), noop, nil

	case "file":
		p, err := gallery.NewFilePersister(cfg.GalleryFileDir)
		if err != nil {
			return nil, noop, err
		}
		return p, noop, nil

	case "redis":
		p, err := gallery.NewRedisPersister(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return p, func() { p.Close() }, nil

	case "postgres":
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := database.NewMigrator(db, log).Run(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
		}
		store := database.NewBlobStore(db)
		return store, func() { store.Close() }, nil

	case "supabase":
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, noop, err
		}
		return supabase.NewBlobTable(client, cfg.SupabaseGalleryTable), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown gallery backend %q", cfg.GalleryBackend)
	}
}

func newAssetStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (assets.Store, error) {
	switch cfg.AssetBackend {
	case "inline":
		return assets.Inline{}, nil
	case "supabase":
		return supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket), nil
	case "minio":
		return assets.NewMinioStore(ctx,
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioUseSSL,
			cfg.MinioPublicURL,
			log,
		)
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.AssetBackend)
	}
}
