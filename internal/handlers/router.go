package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"neuroforge-backend/internal/middleware"
	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/services"
)

type RouterOptions struct {
	Relay      Forwarder
	Generation *services.GenerationService
	// AuthSecret enables bearer authentication on /api routes when set.
	AuthSecret string
	Logger     zerolog.Logger
}

func NewRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), middleware.RequestLogger(opts.Logger))

	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method not allowed"})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
	})

	router.GET("/health", HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	if opts.AuthSecret != "" {
		api.Use(middleware.AuthMiddleware(opts.AuthSecret))
	}

	proxyHandler := NewProxyHandler(opts.Relay, opts.Logger)
	api.POST("/proxy", proxyHandler.Relay)

	if opts.Generation != nil {
		generateHandler := NewGenerateHandler(opts.Generation)
		galleryHandler := NewGalleryHandler(opts.Generation)

		v1 := api.Group("/v1")
		{
			v1.POST("/generate", generateHandler.Generate)

			v1.GET("/gallery", galleryHandler.ListImages)
			v1.GET("/gallery/:id", galleryHandler.GetImage)
			v1.GET("/gallery/:id/download", galleryHandler.DownloadImage)
			v1.POST("/gallery/:id/select", galleryHandler.SelectImage)
			v1.DELETE("/gallery/:id", galleryHandler.DeleteImage)

			v1.GET("/current", galleryHandler.GetCurrent)
			v1.DELETE("/current", galleryHandler.ClearCurrent)
		}
	}

	return router
}
