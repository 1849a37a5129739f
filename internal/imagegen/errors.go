package imagegen

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt     = errors.New("please enter a prompt")
	ErrInvalidSettings = errors.New("invalid image settings")
	ErrTransport       = errors.New("relay request failed")
	ErrUpstreamStatus  = errors.New("upstream returned an error status")
	ErrFormat          = errors.New("invalid response format from API")
)

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamStatus
}

// IsValidation reports whether err was raised before anything was sent upstream.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyPrompt) || errors.Is(err, ErrInvalidSettings)
}
