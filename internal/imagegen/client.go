package imagegen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/relay"
)

// Forwarder is satisfied by the in-process *relay.Relay and by *relay.RemoteClient.
type Forwarder interface {
	Forward(ctx context.Context, env relay.Envelope) (*relay.Response, error)
}

type Client struct {
	forwarder Forwarder
	provider  Provider
	log       zerolog.Logger
}

func NewClient(forwarder Forwarder, provider Provider, log zerolog.Logger) *Client {
	return &Client{
		forwarder: forwarder,
		provider:  provider,
		log:       log.With().Str("component", "imagegen").Str("provider", provider.Name()).Logger(),
	}
}

func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Generate sends one generation request through the relay and returns the image reference.
// No retry is attempted.
func (c *Client) Generate(ctx context.Context, prompt string, settings models.ImageSettings) (*Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	env, err := c.provider.BuildEnvelope(prompt, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	c.log.Info().
		Str("quality", string(settings.Quality)).
		Str("size", string(settings.Size)).
		Int("prompt_length", len(prompt)).
		Msg("generating image")

	resp, err := c.forwarder.Forward(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if !resp.OK() {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: upstreamMessage(resp)}
		c.log.Error().Int("status", resp.StatusCode).Str("message", statusErr.Message).Msg("provider returned error status")
		return nil, statusErr
	}

	if !resp.IsJSON() {
		c.log.Error().Str("content_type", resp.ContentType).Msg("provider did not return JSON")
		return nil, fmt.Errorf("%w: API did not return JSON (content-type %s)", ErrFormat, resp.ContentType)
	}

	img, err := c.provider.ExtractImage(resp.Body)
	if err != nil {
		c.log.Error().Err(err).Msg("unexpected provider response shape")
		return nil, err
	}

	return &img, nil
}

// upstreamMessage pulls a human readable reason out of an error response.
func upstreamMessage(resp *relay.Response) string {
	if resp.IsJSON() {
		var body struct {
			Error   json.RawMessage `json:"error"`
			Message string          `json:"message"`
			Detail  json.RawMessage `json:"detail"`
		}
		if err := json.Unmarshal(resp.Body, &body); err == nil {
			if msg := messageFrom(body.Error); msg != "" {
				return msg
			}
			if body.Message != "" {
				return body.Message
			}
			if msg := messageFrom(body.Detail); msg != "" {
				return msg
			}
		}
	}

	text := strings.TrimSpace(string(resp.Body))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// messageFrom accepts "text", {"message": "text"} or a list whose first element has msg/message.
func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Msg
	}

	var list []struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		if list[0].Message != "" {
			return list[0].Message
		}
		return list[0].Msg
	}

	return ""
}
