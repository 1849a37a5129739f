package main

import (
	"net/http"
	"time"

	"neuroforge-backend/internal/config"
)

const defaultReadHeaderTimeout = 10 * time.Second

// newHTTPServer bounds header reads and idle keep-alives. Responses are not bounded; a
// generation may take the whole relay timeout.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	readHeader := cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = defaultReadHeaderTimeout
	}
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
