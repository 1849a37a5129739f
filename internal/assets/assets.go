package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var ErrNotInline = errors.New("not an inline image")

// Store keeps image bytes somewhere addressable and returns the URL to reach them.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Payload is a decoded inline image.
type Payload struct {
	Data        []byte
	ContentType string
	Extension   string
}

func IsDataURL(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "data:")
}

// DecodeBase64 decodes a bare base64 image, as returned in b64_json fields.
func DecodeBase64(b64 string) (*Payload, error) {
	data, err := decode(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return sniff(data, ""), nil
}

// ParseDataURL decodes a data:<mediatype>;base64,<data> URL.
func ParseDataURL(u string) (*Payload, error) {
	if !IsDataURL(u) {
		return nil, ErrNotInline
	}

	meta, encoded, found := strings.Cut(u[len("data:"):], ",")
	if !found {
		return nil, fmt.Errorf("malformed data URL: missing comma")
	}
	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return nil, fmt.Errorf("malformed data URL: only base64 payloads are supported")
	}

	data, err := decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return sniff(data, params[0]), nil
}

// Sniff wraps raw image bytes, detecting their content type.
func Sniff(data []byte) *Payload {
	return sniff(data, "")
}

// DataURL re-encodes a payload as a data URL.
func DataURL(p *Payload) string {
	return "data:" + p.ContentType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// DownloadName is the file name an image is saved under: cyberpunk-ai-<unix ms><ext>.
// Unknown extensions fall back to .png.
func DownloadName(at time.Time, ext string) string {
	if ext == "" || ext == ".bin" {
		ext = ".png"
	}
	return fmt.Sprintf("cyberpunk-ai-%d%s", at.UnixMilli(), ext)
}

func decode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

func sniff(data []byte, declared string) *Payload {
	mt := mimetype.Detect(data)
	contentType, ext := mt.String(), mt.Extension()
	if mt.Is("application/octet-stream") && declared != "" {
		contentType = declared
		ext = ""
	}
	if ext == "" {
		ext = ".bin"
	}
	return &Payload{Data: data, ContentType: contentType, Extension: ext}
}

// Inline keeps images inside the gallery record as data URLs.
type Inline struct{}

func (Inline) Put(_ context.Context, _ string, data []byte, contentType string) (string, error) {
	return DataURL(&Payload{Data: data, ContentType: contentType}), nil
}

func (Inline) Delete(context.Context, string) error {
	return nil
}
