package models_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"neuroforge-backend/internal/models"
)

func TestNewImageID(t *testing.T) {
	now := time.UnixMilli(1718000000123)

	id := models.NewImageID(now)

	assert.Regexp(t, regexp.MustCompile(`^img_1718000000123_[0-9a-f]{9}$`), id)
	assert.NotEqual(t, id, models.NewImageID(now))
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("CET", 3600))

	assert.Equal(t, "2025-01-02T02:04:05.006Z", models.FormatTimestamp(ts))
}

func TestImageSettings(t *testing.T) {
	assert.NoError(t, models.DefaultSettings().Validate())
	assert.Equal(t, models.ImageSettings{Quality: models.QualityMedium, Size: models.SizeSquare}, models.ImageSettings{}.WithDefaults())
	assert.Error(t, models.ImageSettings{Quality: models.QualityLow, Size: "512x512"}.Validate())
	assert.Error(t, models.ImageSettings{Quality: "ultra", Size: models.SizeSquare}.Validate())

	kept := models.ImageSettings{Quality: models.QualityHigh}.WithDefaults()
	assert.Equal(t, models.QualityHigh, kept.Quality)
	assert.Equal(t, models.SizeSquare, kept.Size)
}
