package handlers_test

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"neuroforge-backend/internal/gallery"
	"neuroforge-backend/internal/handlers"
	"neuroforge-backend/internal/imagegen"
	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/relay"
	"neuroforge-backend/internal/services"
)

type fakeFAL struct {
	srv    *httptest.Server
	host   string
	status int32
	calls  int32
	// imageURL replaces the default remote result when set.
	imageURL string
}

func newFakeFAL(t *testing.T) *fakeFAL {
	t.Helper()
	f := &fakeFAL{status: http.StatusOK}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		switch r.URL.Path {
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "maintenance")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		status := int(atomic.LoadInt32(&f.status))
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"detail":"model overloaded"}`)
			return
		}
		imageURL := "https://fal.media/files/cat.jpg"
		if f.imageURL != "" {
			imageURL = f.imageURL
		}
		_, _ = io.WriteString(w, `{"images":[{"url":"`+imageURL+`"}]}`)
	}))
	t.Cleanup(f.srv.Close)

	u, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	f.host = u.Host
	return f
}

type testAPI struct {
	router *gin.Engine
	fal    *fakeFAL
}

func newTestAPI(t *testing.T, authSecret string) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fal := newFakeFAL(t)

	rel := relay.New(relay.Options{
		AllowedOrigins: []string{fal.host},
		Credentials:    map[string]string{fal.host: "Key test"},
		Timeout:        5 * time.Second,
		Logger:         zerolog.Nop(),
	})
	provider := imagegen.NewFALProvider()
	provider.Protocol = "http"
	provider.Origin = fal.host

	client := imagegen.NewClient(rel, provider, zerolog.Nop())
	galleries := services.NewGalleries(gallery.NewMemoryPersister(), gallery.DefaultKey, time.Second, zerolog.Nop())
	t.Cleanup(galleries.Close)
	svc := services.NewGenerationService(client, nil, galleries, zerolog.Nop())

	router := handlers.NewRouter(handlers.RouterOptions{
		Relay:      rel,
		Generation: svc,
		AuthSecret: authSecret,
		Logger:     zerolog.Nop(),
	})
	return &testAPI{router: router, fal: fal}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) generate(t *testing.T, prompt string) models.GeneratedImage {
	t.Helper()
	w := a.do("POST", "/api/v1/generate", `{"prompt":"`+prompt+`","settings":{"quality":"high","size":"1024x1536"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var img models.GeneratedImage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &img))
	return img
}

func TestProxy_RelaysJSON(t *testing.T) {
	api := newTestAPI(t, "")
	env := `{"protocol":"http","origin":"` + api.fal.host + `","path":"/fal-ai/flux","method":"POST","body":{"prompt":"cat"}}`

	w := api.do("POST", "/api/proxy", env)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"images":[{"url":"https://fal.media/files/cat.jpg"}]}`, w.Body.String())
}

func TestProxy_ReturnsNonJSONAsText(t *testing.T) {
	api := newTestAPI(t, "")
	env := `{"protocol":"http","origin":"` + api.fal.host + `","path":"/text"}`

	w := api.do("POST", "/api/proxy", env)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "maintenance", w.Body.String())
}

func TestProxy_RejectsOtherMethods(t *testing.T) {
	api := newTestAPI(t, "")

	for _, method := range []string{"GET", "PUT", "DELETE"} {
		w := api.do(method, "/api/proxy", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())
	}
}

func TestProxy_ForbidsUnknownOrigin(t *testing.T) {
	api := newTestAPI(t, "")

	w := api.do("POST", "/api/proxy", `{"protocol":"https","origin":"evil.example","path":"/"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&api.fal.calls))
}

func TestProxy_BadEnvelope(t *testing.T) {
	api := newTestAPI(t, "")

	w := api.do("POST", "/api/proxy", `{"protocol":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do("POST", "/api/proxy", `{"protocol":"gopher","origin":"fal.run"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_CreatesImageInGallery(t *testing.T) {
	api := newTestAPI(t, "")

	img := api.generate(t, "a cat")
	assert.Equal(t, "https://fal.media/files/cat.jpg", img.URL)
	assert.Equal(t, "a cat", img.Prompt)
	assert.Equal(t, models.QualityHigh, img.Settings.Quality)
	assert.Equal(t, models.SizePortrait, img.Settings.Size)

	w := api.do("GET", "/api/v1/gallery", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.GalleryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Images, 1)
	assert.Equal(t, img.ID, resp.Images[0].ID)
	require.NotNil(t, resp.Current)
	assert.Equal(t, img.ID, resp.Current.ID)
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	api := newTestAPI(t, "")

	w := api.do("POST", "/api/v1/generate", `{"prompt":"  "}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"please enter a prompt"}`, w.Body.String())
	assert.Equal(t, int32(0), atomic.LoadInt32(&api.fal.calls))
}

func TestGenerate_InvalidSettings(t *testing.T) {
	api := newTestAPI(t, "")

	w := api.do("POST", "/api/v1/generate", `{"prompt":"cat","settings":{"quality":"ultra","size":"1024x1024"}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_UpstreamErrorIsBadGateway(t *testing.T) {
	api := newTestAPI(t, "")
	atomic.StoreInt32(&api.fal.status, http.StatusInternalServerError)

	w := api.do("POST", "/api/v1/generate", `{"prompt":"cat"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "model overloaded")

	w = api.do("GET", "/api/v1/gallery", "")
	assert.JSONEq(t, `{"images":[],"current":null}`, w.Body.String())
}

func TestGallery_SelectAndCurrent(t *testing.T) {
	api := newTestAPI(t, "")
	first := api.generate(t, "first")
	second := api.generate(t, "second")

	w := api.do("GET", "/api/v1/current", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), second.ID)

	w = api.do("POST", "/api/v1/gallery/"+first.ID+"/select", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"prompt":"first"`)

	w = api.do("GET", "/api/v1/gallery/"+first.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do("DELETE", "/api/v1/current", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do("GET", "/api/v1/current", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do("POST", "/api/v1/gallery/img_missing/select", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGallery_TwoStepDelete(t *testing.T) {
	api := newTestAPI(t, "")
	img := api.generate(t, "a cat")

	w := api.do("DELETE", "/api/v1/gallery/"+img.ID, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	var pending models.DeleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Equal(t, "pending", pending.Status)
	assert.Equal(t, int64(1000), pending.ExpiresInMS)

	w = api.do("GET", "/api/v1/gallery/"+img.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do("DELETE", "/api/v1/gallery/"+img.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+img.ID+`","status":"deleted"}`, w.Body.String())

	w = api.do("GET", "/api/v1/gallery/"+img.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do("GET", "/api/v1/current", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do("DELETE", "/api/v1/gallery/"+img.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGallery_DownloadInlineImageAsAttachment(t *testing.T) {
	api := newTestAPI(t, "")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	api.fal.imageURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	img := api.generate(t, "neon city")
	require.True(t, strings.HasPrefix(img.URL, "data:image/png;base64,"))

	w := api.do("GET", "/api/v1/gallery/"+img.ID+"/download", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename="cyberpunk-ai-\d{13}\.png"$`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, png, w.Body.Bytes())
}

func TestGallery_DownloadRemoteImageRedirects(t *testing.T) {
	api := newTestAPI(t, "")
	img := api.generate(t, "neon city")

	w := api.do("GET", "/api/v1/gallery/"+img.ID+"/download", "")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://fal.media/files/cat.jpg", w.Header().Get("Location"))
}

func TestGallery_DownloadUnknownImage(t *testing.T) {
	api := newTestAPI(t, "")

	w := api.do("GET", "/api/v1/gallery/img_missing/download", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AuthRequiredWhenSecretSet(t *testing.T) {
	api := newTestAPI(t, "router-secret")

	w := api.do("GET", "/api/v1/gallery", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	api := newTestAPI(t, "")
	api.do("GET", "/health", "")

	w := api.do("GET", "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "neuroforge_http_requests_total")
}
