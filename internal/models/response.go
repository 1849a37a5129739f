package models

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type GalleryResponse struct {
	Images  []GeneratedImage `json:"images"`
	Current *GeneratedImage  `json:"current"`
}

type DeleteResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ExpiresInMS int64  `json:"expires_in_ms,omitempty"`
}
