package imagegen

import (
	"fmt"

	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/relay"
)

// Image is what a provider returned: a URL (possibly a data: URL) or raw base64.
type Image struct {
	URL     string
	B64JSON string
}

// Provider encodes one upstream API's request and response contract.
type Provider interface {
	Name() string
	BuildEnvelope(prompt string, settings models.ImageSettings) (relay.Envelope, error)
	ExtractImage(body []byte) (Image, error)
}

func NewProvider(name string) (Provider, error) {
	switch name {
	case "fal", "":
		return NewFALProvider(), nil
	case "openai":
		return NewOpenAIProvider(ModelGPTImage1), nil
	case "dalle":
		return NewOpenAIProvider(ModelDallE3), nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", name)
	}
}
