package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"neuroforge-backend/internal/assets"
	"neuroforge-backend/internal/gallery"
	"neuroforge-backend/internal/imagegen"
	"neuroforge-backend/internal/metrics"
	"neuroforge-backend/internal/models"
)

var (
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	ErrAssetStorage         = errors.New("failed to store generated image")
)

// Generator is satisfied by *imagegen.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string, settings models.ImageSettings) (*imagegen.Image, error)
	ProviderName() string
}

type GenerationService struct {
	generator Generator
	assets    assets.Store
	galleries *Galleries
	log       zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGenerationService(generator Generator, assetStore assets.Store, galleries *Galleries, log zerolog.Logger) *GenerationService {
	if assetStore == nil {
		assetStore = assets.Inline{}
	}
	return &GenerationService{
		generator: generator,
		assets:    assetStore,
		galleries: galleries,
		log:       log.With().Str("component", "generation").Logger(),
		now:       time.Now,
		inFlight:  make(map[string]struct{}),
	}
}

func (s *GenerationService) Galleries() *Galleries {
	return s.galleries
}

// Generate runs one generation for owner. On success the image is appended to the owner's
// gallery and becomes current; on failure the gallery is unchanged.
func (s *GenerationService) Generate(ctx context.Context, owner, prompt string, settings models.ImageSettings) (*models.GeneratedImage, error) {
	provider := s.generator.ProviderName()
	settings = settings.WithDefaults()

	if strings.TrimSpace(prompt) == "" {
		metrics.RecordGeneration(provider, "invalid")
		return nil, imagegen.ErrEmptyPrompt
	}
	if err := settings.Validate(); err != nil {
		metrics.RecordGeneration(provider, "invalid")
		return nil, fmt.Errorf("%w: %v", imagegen.ErrInvalidSettings, err)
	}

	if !s.begin(owner) {
		metrics.RecordGeneration(provider, "in_progress")
		return nil, ErrGenerationInProgress
	}
	defer s.end(owner)

	result, err := s.generator.Generate(ctx, prompt, settings)
	if err != nil {
		metrics.RecordGeneration(provider, "failed")
		return nil, err
	}

	completed := s.now()
	img := models.GeneratedImage{
		ID:        models.NewImageID(completed),
		Prompt:    prompt,
		Timestamp: models.FormatTimestamp(completed),
		Settings:  settings,
		Provider:  provider,
	}

	img.URL, img.AssetKey, err = s.canonicalize(ctx, img.ID, result)
	if err != nil {
		metrics.RecordGeneration(provider, "failed")
		return nil, err
	}

	store := s.galleries.For(ctx, owner)
	if err := store.Add(ctx, img); err != nil {
		s.log.Error().Err(err).Str("owner", owner).Str("image_id", img.ID).Msg("image kept in memory only")
	}

	metrics.RecordGeneration(provider, "success")
	s.log.Info().Str("owner", owner).Str("image_id", img.ID).Msg("image generated")
	return &img, nil
}

// canonicalize turns the provider result into a URL. Inline base64 is decoded and handed to the
// asset store; remote URLs are kept as returned.
func (s *GenerationService) canonicalize(ctx context.Context, id string, result *imagegen.Image) (string, string, error) {
	var (
		payload *assets.Payload
		err     error
	)
	switch {
	case result.B64JSON != "":
		payload, err = assets.DecodeBase64(result.B64JSON)
	case assets.IsDataURL(result.URL):
		payload, err = assets.ParseDataURL(result.URL)
	default:
		return result.URL, "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", imagegen.ErrFormat, err)
	}

	key := "images/" + id + payload.Extension
	url, err := s.assets.Put(ctx, key, payload.Data, payload.ContentType)
	if err != nil {
		s.log.Error().Err(err).Str("asset_key", key).Msg("failed to store image asset")
		return "", "", fmt.Errorf("%w: %w", ErrAssetStorage, err)
	}
	if assets.IsDataURL(url) {
		return url, "", nil
	}
	return url, key, nil
}

// Remove forwards to the owner's two step delete and drops the uploaded asset once confirmed.
func (s *GenerationService) Remove(ctx context.Context, owner, id string) (gallery.RemoveResult, error) {
	res, err := s.galleries.For(ctx, owner).RequestRemove(ctx, id)
	if errors.Is(err, gallery.ErrImageNotFound) {
		return res, err
	}
	if err != nil {
		s.log.Error().Err(err).Str("owner", owner).Str("image_id", id).Msg("removal not persisted")
	}

	if res.Status == gallery.RemoveDone && res.Removed != nil && res.Removed.AssetKey != "" {
		if err := s.assets.Delete(ctx, res.Removed.AssetKey); err != nil {
			s.log.Warn().Err(err).Str("asset_key", res.Removed.AssetKey).Msg("failed to delete image asset")
		}
	}
	return res, nil
}

func (s *GenerationService) begin(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[owner]; busy {
		return false
	}
	s.inFlight[owner] = struct{}{}
	return true
}

func (s *GenerationService) end(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, owner)
}

// InProgress reports whether owner has a generation outstanding.
func (s *GenerationService) InProgress(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, busy := s.inFlight[owner]
	return busy
}
