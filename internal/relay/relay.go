package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"neuroforge-backend/internal/metrics"
)

const (
	defaultTimeout          = 120 * time.Second
	defaultMaxResponseBytes = 32 << 20
	maxRedirects            = 10
)

// Response is what the upstream returned. ContentType is application/json when Body was
// validated as JSON, otherwise the upstream value (text/plain when absent).
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (r *Response) IsJSON() bool {
	return isJSONContentType(r.ContentType)
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Options struct {
	AllowedOrigins []string
	// Credentials maps an origin to the Authorization header value injected for it.
	Credentials      map[string]string
	Timeout          time.Duration
	MaxResponseBytes int64
	HTTPClient       *http.Client
	Logger           zerolog.Logger
}

// Relay forwards envelopes to allow-listed origins, injecting server-held credentials.
type Relay struct {
	allowed     map[string]struct{}
	credentials map[string]string
	timeout     time.Duration
	maxBytes    int64
	httpClient  *http.Client
	log         zerolog.Logger
}

func New(opts Options) *Relay {
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
	}

	creds := make(map[string]string, len(opts.Credentials))
	for origin, value := range opts.Credentials {
		creds[strings.ToLower(origin)] = value
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	r := &Relay{
		allowed:     allowed,
		credentials: creds,
		timeout:     timeout,
		maxBytes:    maxBytes,
		log:         opts.Logger.With().Str("component", "relay").Logger(),
	}

	// Copy the caller's client so the redirect policy does not leak into it.
	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		httpClient = &c
	}
	next := httpClient.CheckRedirect
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !r.Allowed(req.URL.Host) {
			r.log.Warn().Str("origin", req.URL.Host).Msg("refusing redirect off the allow-list")
			return fmt.Errorf("%w: %s", ErrRedirectNotAllowed, req.URL.Host)
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	r.httpClient = httpClient

	return r
}

func (r *Relay) Allowed(origin string) bool {
	_, ok := r.allowed[strings.ToLower(strings.TrimSpace(origin))]
	return ok
}

// Forward performs the call described by env. A non-2xx upstream status is not an error.
func (r *Relay) Forward(ctx context.Context, env Envelope) (*Response, error) {
	target, err := env.URL()
	if err != nil {
		return nil, err
	}
	origin := target.Host
	if !r.Allowed(origin) {
		r.log.Warn().Str("origin", origin).Msg("rejected relay to origin outside allow-list")
		metrics.RecordRelay(origin, "rejected", 0)
		return nil, fmt.Errorf("%w: %s", ErrOriginNotAllowed, origin)
	}

	body, err := env.BodyBytes()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, env.methodOrDefault(), target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	headerNames := make([]string, 0, len(env.Headers))
	for name, value := range env.Headers {
		req.Header.Set(name, value)
		headerNames = append(headerNames, http.CanonicalHeaderKey(name))
	}
	_, injected := r.credentials[origin]
	if injected {
		req.Header.Set("Authorization", r.credentials[origin])
	}

	r.log.Debug().
		Str("method", req.Method).
		Str("url", target.String()).
		Strs("headers", headerNames).
		Bool("credential_injected", injected).
		Int("body_bytes", len(body)).
		Msg("relaying request")

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		metrics.RecordRelay(origin, "error", time.Since(start).Seconds())
		r.log.Error().Err(err).Str("url", target.String()).Msg("relay request failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		metrics.RecordRelay(origin, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUpstream, err)
	}
	if int64(len(data)) > r.maxBytes {
		metrics.RecordRelay(origin, "too_large", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, r.maxBytes)
	}
	metrics.RecordRelay(origin, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	contentType := resp.Header.Get("Content-Type")
	if isJSONContentType(contentType) {
		if !json.Valid(data) {
			r.log.Error().Int("status", resp.StatusCode).Str("url", target.String()).Msg("upstream sent malformed JSON")
			return nil, fmt.Errorf("%w: status %d", ErrInvalidJSON, resp.StatusCode)
		}
		r.log.Info().
			Int("status", resp.StatusCode).
			Str("url", target.String()).
			Int("bytes", len(data)).
			Msg("relayed JSON response")
		return &Response{StatusCode: resp.StatusCode, ContentType: "application/json", Body: data}, nil
	}

	if contentType == "" {
		contentType = "text/plain"
	}
	r.log.Warn().
		Int("status", resp.StatusCode).
		Str("url", target.String()).
		Str("content_type", contentType).
		Str("excerpt", excerpt(data, 200)).
		Msg("relayed non-JSON response")

	return &Response{StatusCode: resp.StatusCode, ContentType: contentType, Body: data}, nil
}

func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "application/json")
}

func excerpt(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
