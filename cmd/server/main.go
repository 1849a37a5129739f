// @title           NeuroForge Backend API
// @version         1.0.0
// @description     Text-to-image backend. Relays provider calls with server-held credentials and keeps a persisted gallery of generated images.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"neuroforge-backend/internal/config"
	"neuroforge-backend/internal/handlers"
	"neuroforge-backend/internal/imagegen"
	"neuroforge-backend/internal/logger"
	"neuroforge-backend/internal/relay"
	"neuroforge-backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persister, closePersister, err := newPersister(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.GalleryBackend).Msg("initialize gallery persistence")
	}
	defer closePersister()

	assetStore, err := newAssetStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.AssetBackend).Msg("initialize asset storage")
	}

	creds := cfg.ProviderCredentials()
	rel := relay.New(relay.Options{
		AllowedOrigins:   cfg.RelayAllowedOrigins,
		Credentials:      creds,
		Timeout:          cfg.RelayTimeout,
		MaxResponseBytes: cfg.RelayMaxResponseBytes,
		Logger:           log,
	})
	for _, origin := range cfg.RelayAllowedOrigins {
		if _, ok := creds[origin]; !ok {
			log.Warn().Str("origin", origin).Msg("no credential configured, requests are relayed unauthenticated")
		}
	}

	provider, err := imagegen.NewProvider(cfg.ImageProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize image provider")
	}
	client := imagegen.NewClient(rel, provider, log)

	galleries := services.NewGalleries(persister, cfg.GalleryStorageKey, cfg.DeleteConfirmWindow, log)
	defer galleries.Close()
	generation := services.NewGenerationService(client, assetStore, galleries, log)

	router := handlers.NewRouter(handlers.RouterOptions{
		Relay:      rel,
		Generation: generation,
		AuthSecret: cfg.AuthJWTSecret,
		Logger:     log,
	})

	server := newHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("provider", provider.Name()).
			Str("gallery_backend", cfg.GalleryBackend).
			Str("asset_backend", cfg.AssetBackend).
			Bool("auth", cfg.AuthEnabled()).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server stopped with error")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}
