package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"neuroforge-backend/internal/imagegen"
	"neuroforge-backend/internal/middleware"
	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/services"
)

type GenerateHandler struct {
	service *services.GenerationService
}

func NewGenerateHandler(service *services.GenerationService) *GenerateHandler {
	return &GenerateHandler{service: service}
}

// Generate godoc
// @Summary     Generate an image
// @Description Sends the prompt to the configured provider through the relay and appends the result to the gallery
// @Tags        generate
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateRequest true "Prompt and settings"
// @Success     201 {object} models.GeneratedImage
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /api/v1/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "generation not available"})
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	img, err := h.service.Generate(c.Request.Context(), middleware.Owner(c), req.Prompt, req.Settings)
	if err != nil {
		c.Error(err)
		c.JSON(generationErrorStatus(err), generationErrorResponse(err))
		return
	}

	c.JSON(http.StatusCreated, img)
}

func generationErrorStatus(err error) int {
	var statusErr *imagegen.StatusError
	switch {
	case imagegen.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.As(err, &statusErr),
		errors.Is(err, imagegen.ErrFormat),
		errors.Is(err, imagegen.ErrTransport),
		errors.Is(err, services.ErrAssetStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func generationErrorResponse(err error) models.ErrorResponse {
	switch {
	case errors.Is(err, imagegen.ErrEmptyPrompt):
		return models.ErrorResponse{Error: imagegen.ErrEmptyPrompt.Error()}
	case errors.Is(err, imagegen.ErrInvalidSettings):
		return models.ErrorResponse{Error: "invalid settings", Message: err.Error()}
	case errors.Is(err, services.ErrGenerationInProgress):
		return models.ErrorResponse{Error: err.Error()}
	default:
		return models.ErrorResponse{Error: "failed to generate image", Message: err.Error()}
	}
}
