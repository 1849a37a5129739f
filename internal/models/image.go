package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultOwner owns the gallery when requests are not authenticated.
const DefaultOwner = "default"

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

type Size string

const (
	SizeSquare    Size = "1024x1024"
	SizePortrait  Size = "1024x1536"
	SizeLandscape Size = "1536x1024"
)

// TimestampLayout matches the ISO form produced by browsers' Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ImageSettings is attached to every generated image and never changes afterwards.
type ImageSettings struct {
	Quality Quality `json:"quality"`
	Size    Size    `json:"size"`
}

func DefaultSettings() ImageSettings {
	return ImageSettings{Quality: QualityMedium, Size: SizeSquare}
}

func (s ImageSettings) Validate() error {
	switch s.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("invalid quality %q: must be one of low, medium, high", s.Quality)
	}
	switch s.Size {
	case SizeSquare, SizePortrait, SizeLandscape:
	default:
		return fmt.Errorf("invalid size %q: must be one of 1024x1024, 1024x1536, 1536x1024", s.Size)
	}
	return nil
}

// WithDefaults fills empty fields from DefaultSettings.
func (s ImageSettings) WithDefaults() ImageSettings {
	d := DefaultSettings()
	if s.Quality == "" {
		s.Quality = d.Quality
	}
	if s.Size == "" {
		s.Size = d.Size
	}
	return s
}

type GeneratedImage struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Prompt    string        `json:"prompt"`
	Timestamp string        `json:"timestamp"`
	Settings  ImageSettings `json:"settings"`
	Provider  string        `json:"provider,omitempty"`
	AssetKey  string        `json:"asset_key,omitempty"`
}

// NewImageID returns an identifier of the form img_<unix-ms>_<9 chars>.
func NewImageID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("img_%d_%s", now.UnixMilli(), suffix)
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
