package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"neuroforge-backend/internal/models"
)

const (
	DefaultKey           = "imageGallery"
	DefaultConfirmWindow = 3 * time.Second
)

var (
	ErrImageNotFound = errors.New("image not found")
	// ErrNotLoaded is returned by mutations after Load failed to read the persisted gallery.
	ErrNotLoaded = errors.New("gallery was not loaded")
)

type RemoveStatus int

const (
	// RemovePending means the id is armed and a second request within the window removes it.
	RemovePending RemoveStatus = iota
	RemoveDone
)

func (s RemoveStatus) String() string {
	if s == RemoveDone {
		return "deleted"
	}
	return "pending"
}

type RemoveResult struct {
	Status    RemoveStatus
	Removed   *models.GeneratedImage
	ExpiresIn time.Duration
}

type Options struct {
	Key           string
	ConfirmWindow time.Duration
	Logger        zerolog.Logger
}

type pendingDelete struct {
	id       string
	deadline time.Time
	timer    *time.Timer
}

// Store holds the current image and the ordered gallery. Every change to the list rewrites the
// whole blob through the persister.
type Store struct {
	mu        sync.Mutex
	persister Persister
	key       string
	window    time.Duration
	log       zerolog.Logger

	images  []models.GeneratedImage
	current *models.GeneratedImage
	pending *pendingDelete
	// unreadable is set while the persisted blob could not be read. Saving then would
	// overwrite it with a partial list.
	unreadable bool
}

func NewStore(persister Persister, opts Options) *Store {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	window := opts.ConfirmWindow
	if window <= 0 {
		window = DefaultConfirmWindow
	}

	return &Store{
		persister: persister,
		key:       key,
		window:    window,
		log:       opts.Logger.With().Str("component", "gallery").Str("key", key).Logger(),
		images:    []models.GeneratedImage{},
	}
}

func (s *Store) Key() string {
	return s.key
}

// Load replaces the in-memory list with the persisted one. Data that is not a JSON array of
// images is discarded and the key deleted. A read failure leaves the gallery empty and blocks
// saves until a later Load succeeds.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = []models.GeneratedImage{}
	s.current = nil

	data, err := s.persister.Load(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		s.unreadable = false
		return nil
	}
	if err != nil {
		s.unreadable = true
		s.log.Error().Err(err).Msg("failed to load gallery, starting empty")
		return fmt.Errorf("failed to load gallery: %w", err)
	}
	s.unreadable = false

	images, err := decodeImages(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("saved gallery is not an array, resetting")
		if delErr := s.persister.Delete(ctx, s.key); delErr != nil {
			s.log.Error().Err(delErr).Msg("failed to clear corrupt gallery")
		}
		return nil
	}

	s.images = images
	s.log.Debug().Int("images", len(images)).Msg("gallery loaded")
	return nil
}

func decodeImages(data []byte) ([]models.GeneratedImage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("persisted value is not a JSON array")
	}

	var images []models.GeneratedImage
	if err := json.Unmarshal(trimmed, &images); err != nil {
		return nil, err
	}
	if images == nil {
		images = []models.GeneratedImage{}
	}
	return images, nil
}

// save must be called with mu held.
func (s *Store) save(ctx context.Context) error {
	if s.unreadable {
		s.log.Warn().Int("images", len(s.images)).Msg("not saving over a gallery that failed to load")
		return fmt.Errorf("failed to save gallery: %w", ErrNotLoaded)
	}
	data, err := json.Marshal(s.images)
	if err != nil {
		return fmt.Errorf("failed to encode gallery: %w", err)
	}
	if err := s.persister.Save(ctx, s.key, data); err != nil {
		s.log.Error().Err(err).Msg("failed to save gallery")
		return fmt.Errorf("failed to save gallery: %w", err)
	}
	return nil
}

// Add appends img, makes it current and persists. On a save error the image stays in memory.
func (s *Store) Add(ctx context.Context, img models.GeneratedImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = append(s.images, img)
	current := img
	s.current = &current
	return s.save(ctx)
}

// RequestRemove implements the two step delete. The first call for an id arms it; a second call
// for the same id inside the confirm window removes it. Arming another id replaces the arm.
func (s *Store) RequestRemove(ctx context.Context, id string) (RemoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return RemoveResult{}, ErrImageNotFound
	}

	if p := s.pending; p != nil && p.id == id && time.Now().Before(p.deadline) {
		p.timer.Stop()
		s.pending = nil

		removed := s.images[idx]
		images := make([]models.GeneratedImage, 0, len(s.images)-1)
		images = append(images, s.images[:idx]...)
		s.images = append(images, s.images[idx+1:]...)
		if s.current != nil && s.current.ID == id {
			s.current = nil
		}

		return RemoveResult{Status: RemoveDone, Removed: &removed}, s.save(ctx)
	}

	if s.pending != nil {
		s.pending.timer.Stop()
	}
	p := &pendingDelete{id: id, deadline: time.Now().Add(s.window)}
	p.timer = time.AfterFunc(s.window, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pending == p {
			s.pending = nil
		}
	})
	s.pending = p

	return RemoveResult{Status: RemovePending, ExpiresIn: s.window}, nil
}

// Pending returns the armed id, if any.
func (s *Store) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return "", false
	}
	return s.pending.id, true
}

// Select makes an existing image current again.
func (s *Store) Select(id string) (models.GeneratedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.GeneratedImage{}, ErrImageNotFound
	}
	current := s.images[idx]
	s.current = &current
	return current, nil
}

func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
}

func (s *Store) Current() *models.GeneratedImage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	current := *s.current
	return &current
}

func (s *Store) Images() []models.GeneratedImage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.GeneratedImage{}, s.images...)
}

func (s *Store) Get(id string) (models.GeneratedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.GeneratedImage{}, ErrImageNotFound
	}
	return s.images[idx], nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.images)
}

// Close stops a pending confirm timer.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending.timer.Stop()
		s.pending = nil
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.images {
		if s.images[i].ID == id {
			return i
		}
	}
	return -1
}
