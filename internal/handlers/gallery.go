package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"neuroforge-backend/internal/assets"
	"neuroforge-backend/internal/gallery"
	"neuroforge-backend/internal/middleware"
	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/services"
)

type GalleryHandler struct {
	service *services.GenerationService
}

func NewGalleryHandler(service *services.GenerationService) *GalleryHandler {
	return &GalleryHandler{service: service}
}

func (h *GalleryHandler) store(c *gin.Context) *gallery.Store {
	return h.service.Galleries().For(c.Request.Context(), middleware.Owner(c))
}

// ListImages godoc
// @Summary     List gallery
// @Description Returns all generated images in creation order and the current image
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.GalleryResponse
// @Router      /api/v1/gallery [get]
func (h *GalleryHandler) ListImages(c *gin.Context) {
	store := h.store(c)
	c.JSON(http.StatusOK, models.GalleryResponse{
		Images:  store.Images(),
		Current: store.Current(),
	})
}

// GetImage godoc
// @Summary     Get image
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Image ID"
// @Success     200 {object} models.GeneratedImage
// @Failure     404 {object} models.ErrorResponse
// @Router      /api/v1/gallery/{id} [get]
func (h *GalleryHandler) GetImage(c *gin.Context) {
	img, err := h.store(c).Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, img)
}

// DownloadImage godoc
// @Summary     Download image
// @Description Inline images are returned as an attachment; remote images redirect to their URL
// @Tags        gallery
// @Produce     octet-stream
// @Security    Bearer
// @Param       id path string true "Image ID"
// @Success     200
// @Success     302
// @Failure     404 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Router      /api/v1/gallery/{id}/download [get]
func (h *GalleryHandler) DownloadImage(c *gin.Context) {
	img, err := h.store(c).Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		return
	}

	if assets.IsDataURL(img.URL) {
		payload, err := assets.ParseDataURL(img.URL)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "failed to decode image", Message: err.Error()})
			return
		}
		name := assets.DownloadName(time.Now(), payload.Extension)
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
		c.Data(http.StatusOK, payload.ContentType, payload.Data)
		return
	}

	u, err := url.Parse(img.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "image has no downloadable source"})
		return
	}
	c.Redirect(http.StatusFound, u.String())
}

// SelectImage godoc
// @Summary     Select image
// @Description Makes the image current so its prompt and settings can be reused
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Image ID"
// @Success     200 {object} models.GeneratedImage
// @Failure     404 {object} models.ErrorResponse
// @Router      /api/v1/gallery/{id}/select [post]
func (h *GalleryHandler) SelectImage(c *gin.Context) {
	img, err := h.store(c).Select(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, img)
}

// DeleteImage godoc
// @Summary     Delete image
// @Description The first request arms the delete; repeating it within the confirm window removes the image
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Image ID"
// @Success     200 {object} models.DeleteResponse
// @Success     202 {object} models.DeleteResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /api/v1/gallery/{id} [delete]
func (h *GalleryHandler) DeleteImage(c *gin.Context) {
	id := c.Param("id")
	res, err := h.service.Remove(c.Request.Context(), middleware.Owner(c), id)
	if errors.Is(err, gallery.ErrImageNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete image", Message: err.Error()})
		return
	}

	if res.Status == gallery.RemovePending {
		c.JSON(http.StatusAccepted, models.DeleteResponse{
			ID:          id,
			Status:      res.Status.String(),
			ExpiresInMS: res.ExpiresIn.Milliseconds(),
		})
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{ID: id, Status: res.Status.String()})
}

// GetCurrent godoc
// @Summary     Current image
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.GeneratedImage
// @Failure     404 {object} models.ErrorResponse
// @Router      /api/v1/current [get]
func (h *GalleryHandler) GetCurrent(c *gin.Context) {
	current := h.store(c).Current()
	if current == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no current image"})
		return
	}
	c.JSON(http.StatusOK, current)
}

// ClearCurrent godoc
// @Summary     Clear current image
// @Tags        gallery
// @Security    Bearer
// @Success     204
// @Router      /api/v1/current [delete]
func (h *GalleryHandler) ClearCurrent(c *gin.Context) {
	h.store(c).ClearCurrent()
	c.Status(http.StatusNoContent)
}
