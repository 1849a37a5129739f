package imagegen

import (
	"encoding/json"
	"fmt"

	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/relay"
)

const falUltraPath = "/fal-ai/flux-pro/v1.1-ultra"

type FALProvider struct {
	Protocol string
	Origin   string
	Path     string
}

func NewFALProvider() *FALProvider {
	return &FALProvider{
		Protocol: "https",
		Origin:   "fal.run",
		Path:     falUltraPath,
	}
}

func (p *FALProvider) Name() string {
	return "fal"
}

type falGenerationRequest struct {
	Prompt       string `json:"prompt"`
	Raw          bool   `json:"raw"`
	AspectRatio  string `json:"aspect_ratio"`
	OutputFormat string `json:"output_format"`
	SyncMode     bool   `json:"sync_mode"`
}

type falImage struct {
	URL string `json:"url"`
}

type falGenerationResponse struct {
	Images []falImage `json:"images"`
	// Some gateways wrap the payload in a data object.
	Data struct {
		Images []falImage `json:"images"`
	} `json:"data"`
}

// AspectRatio maps an image size onto FAL's aspect_ratio values.
func AspectRatio(size models.Size) string {
	switch size {
	case models.SizeSquare:
		return "1:1"
	case models.SizePortrait:
		return "2:3"
	default:
		return "3:2"
	}
}

func (p *FALProvider) BuildEnvelope(prompt string, settings models.ImageSettings) (relay.Envelope, error) {
	body, err := relay.JSONBody(falGenerationRequest{
		Prompt:       prompt,
		Raw:          settings.Quality == models.QualityLow,
		AspectRatio:  AspectRatio(settings.Size),
		OutputFormat: "jpeg",
		SyncMode:     true,
	})
	if err != nil {
		return relay.Envelope{}, err
	}

	return relay.Envelope{
		Protocol: p.Protocol,
		Origin:   p.Origin,
		Path:     p.Path,
		Method:   "POST",
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     body,
	}, nil
}

func (p *FALProvider) ExtractImage(body []byte) (Image, error) {
	var result falGenerationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	images := result.Images
	if len(images) == 0 {
		images = result.Data.Images
	}
	if len(images) == 0 || images[0].URL == "" {
		return Image{}, fmt.Errorf("%w: images[0].url is missing", ErrFormat)
	}

	return Image{URL: images[0].URL}, nil
}
