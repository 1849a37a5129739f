package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"neuroforge-backend/internal/gallery"
	"neuroforge-backend/internal/models"
)

// GalleryKey is the persistence key for owner's gallery. The default owner uses baseKey as is.
func GalleryKey(baseKey, owner string) string {
	if owner == "" || owner == models.DefaultOwner {
		return baseKey
	}
	return baseKey + ":" + owner
}

// Galleries hands out one lazily loaded gallery.Store per owner.
type Galleries struct {
	persister gallery.Persister
	baseKey   string
	window    time.Duration
	log       zerolog.Logger

	mu     sync.Mutex
	stores map[string]*gallery.Store
}

func NewGalleries(persister gallery.Persister, baseKey string, window time.Duration, log zerolog.Logger) *Galleries {
	if baseKey == "" {
		baseKey = gallery.DefaultKey
	}
	return &Galleries{
		persister: persister,
		baseKey:   baseKey,
		window:    window,
		log:       log,
		stores:    make(map[string]*gallery.Store),
	}
}

// For returns owner's store, loading it from the persister on first use. A failed load is
// logged and yields an empty store that refuses to save; it is not cached, so the next call
// retries the read.
func (g *Galleries) For(ctx context.Context, owner string) *gallery.Store {
	g.mu.Lock()
	defer g.mu.Unlock()

	if store, ok := g.stores[owner]; ok {
		return store
	}

	store := gallery.NewStore(g.persister, gallery.Options{
		Key:           GalleryKey(g.baseKey, owner),
		ConfirmWindow: g.window,
		Logger:        g.log,
	})
	if err := store.Load(ctx); err != nil {
		g.log.Warn().Err(err).Str("owner", owner).Msg("continuing with empty gallery")
		return store
	}
	g.stores[owner] = store
	return store
}

func (g *Galleries) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, store := range g.stores {
		store.Close()
	}
}
