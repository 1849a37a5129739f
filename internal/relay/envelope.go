package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidEnvelope  = errors.New("invalid relay envelope")
	ErrOriginNotAllowed = errors.New("origin is not allowed")
	ErrUpstream         = errors.New("upstream request failed")
	ErrInvalidJSON      = errors.New("upstream returned invalid JSON")
	ErrResponseTooLarge = errors.New("upstream response too large")

	// ErrRedirectNotAllowed is wrapped in ErrUpstream when the upstream redirects off the allow-list.
	ErrRedirectNotAllowed = errors.New("upstream redirected to an origin that is not allowed")
)

// Envelope describes one outbound HTTP call. Body is either a JSON string, forwarded as its
// contents, or any other JSON value, forwarded as its encoding.
type Envelope struct {
	Protocol string            `json:"protocol"`
	Origin   string            `json:"origin"`
	Path     string            `json:"path"`
	Headers  map[string]string `json:"headers,omitempty"`
	Method   string            `json:"method"`
	Body     json.RawMessage   `json:"body,omitempty"`
}

// JSONBody encodes v for use as an envelope body.
func JSONBody(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	return data, nil
}

func (e Envelope) methodOrDefault() string {
	m := strings.ToUpper(strings.TrimSpace(e.Method))
	if m == "" {
		return "GET"
	}
	return m
}

// URL validates the envelope and returns the target URL.
func (e Envelope) URL() (*url.URL, error) {
	protocol := strings.ToLower(strings.TrimSpace(e.Protocol))
	if protocol != "http" && protocol != "https" {
		return nil, fmt.Errorf("%w: protocol must be http or https, got %q", ErrInvalidEnvelope, e.Protocol)
	}

	origin := strings.ToLower(strings.TrimSpace(e.Origin))
	if origin == "" {
		return nil, fmt.Errorf("%w: origin is required", ErrInvalidEnvelope)
	}
	if strings.ContainsAny(origin, "/\\@?# \t") {
		return nil, fmt.Errorf("%w: origin must be a bare host, got %q", ErrInvalidEnvelope, e.Origin)
	}

	if e.Path != "" && !strings.HasPrefix(e.Path, "/") {
		return nil, fmt.Errorf("%w: path must start with /", ErrInvalidEnvelope)
	}

	u, err := url.Parse(protocol + "://" + origin + e.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if u.Host != origin {
		return nil, fmt.Errorf("%w: origin %q does not resolve to a single host", ErrInvalidEnvelope, e.Origin)
	}

	return u, nil
}

// BodyBytes returns the bytes to send upstream, nil when there is no body.
func (e Envelope) BodyBytes() ([]byte, error) {
	raw := bytes.TrimSpace(e.Body)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: body: %v", ErrInvalidEnvelope, err)
		}
		return []byte(s), nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrInvalidEnvelope, err)
	}
	return buf.Bytes(), nil
}
