package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/relay"
)

// Forwarder performs a relayed call. *relay.Relay implements it.
type Forwarder interface {
	Forward(ctx context.Context, env relay.Envelope) (*relay.Response, error)
}

type ProxyHandler struct {
	relay Forwarder
	log   zerolog.Logger
}

func NewProxyHandler(fwd Forwarder, log zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{relay: fwd, log: log.With().Str("handler", "proxy").Logger()}
}

// Relay godoc
// @Summary     Relay a provider call
// @Description Performs the outbound HTTP call described by the envelope and returns the upstream status and body. JSON bodies are returned as JSON, anything else as raw text.
// @Tags        relay
// @Accept      json
// @Produce     json
// @Param       request body relay.Envelope true "Outbound call"
// @Success     200 {object} object
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     405 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /api/proxy [post]
func (h *ProxyHandler) Relay(c *gin.Context) {
	if h.relay == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "relay not available"})
		return
	}

	var env relay.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid relay envelope",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.relay.Forward(c.Request.Context(), env)
	if err != nil {
		status := relayErrorStatus(err)
		h.log.Error().Err(err).Int("status", status).Str("origin", env.Origin).Msg("relay failed")
		c.JSON(status, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}

func relayErrorStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrInvalidEnvelope):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrOriginNotAllowed):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}
