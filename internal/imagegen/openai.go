package imagegen

import (
	"encoding/json"
	"fmt"

	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/relay"
)

const (
	ModelGPTImage1 = "gpt-image-1"
	ModelDallE3    = "dall-e-3"
)

// OpenAIProvider talks to the Images API. gpt-image-1 answers with b64_json, dall-e-3 with url.
type OpenAIProvider struct {
	Model    string
	Protocol string
	Origin   string
}

func NewOpenAIProvider(model string) *OpenAIProvider {
	return &OpenAIProvider{
		Model:    model,
		Protocol: "https",
		Origin:   "api.openai.com",
	}
}

func (p *OpenAIProvider) Name() string {
	if p.Model == ModelDallE3 {
		return "dalle"
	}
	return "openai"
}

type openAIGenerationRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Quality models.Quality `json:"quality"`
	Size    models.Size    `json:"size"`
	N       int            `json:"n"`
}

type openAIGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

func (p *OpenAIProvider) BuildEnvelope(prompt string, settings models.ImageSettings) (relay.Envelope, error) {
	body, err := relay.JSONBody(openAIGenerationRequest{
		Model:   p.Model,
		Prompt:  prompt,
		Quality: settings.Quality,
		Size:    settings.Size,
		N:       1,
	})
	if err != nil {
		return relay.Envelope{}, err
	}

	return relay.Envelope{
		Protocol: p.Protocol,
		Origin:   p.Origin,
		Path:     "/v1/images/generations",
		Method:   "POST",
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     body,
	}, nil
}

func (p *OpenAIProvider) ExtractImage(body []byte) (Image, error) {
	var result openAIGenerationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(result.Data) == 0 {
		return Image{}, fmt.Errorf("%w: data is empty", ErrFormat)
	}

	first := result.Data[0]
	switch {
	case first.B64JSON != "":
		return Image{B64JSON: first.B64JSON}, nil
	case first.URL != "":
		return Image{URL: first.URL}, nil
	default:
		return Image{}, fmt.Errorf("%w: data[0] has neither b64_json nor url", ErrFormat)
	}
}
