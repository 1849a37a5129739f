package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"neuroforge-backend/internal/relay"
)

type captured struct {
	method string
	path   string
	auth   string
	body   string
}

func newUpstream(t *testing.T, status int, contentType, body string) (*httptest.Server, *captured, *int32) {
	t.Helper()
	got := &captured{}
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		data, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		got.body = string(data)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		} else {
			w.Header()["Content-Type"] = nil
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got, &calls
}

func hostOf(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Host
}

func newRelay(allowed []string, creds map[string]string) *relay.Relay {
	return relay.New(relay.Options{
		AllowedOrigins: allowed,
		Credentials:    creds,
		Timeout:        5 * time.Second,
		Logger:         zerolog.Nop(),
	})
}

func TestForward_JSONPreservesStatus(t *testing.T) {
	srv, got, _ := newUpstream(t, http.StatusCreated, "application/json; charset=utf-8", `{"images":[{"url":"https://x/y.jpg"}]}`)
	host := hostOf(t, srv)
	r := newRelay([]string{host}, nil)

	resp, err := r.Forward(context.Background(), relay.Envelope{
		Protocol: "http",
		Origin:   host,
		Path:     "/fal-ai/flux",
		Method:   "post",
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     json.RawMessage(`"{\"prompt\":\"cat\"}"`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.True(t, resp.IsJSON())
	assert.JSONEq(t, `{"images":[{"url":"https://x/y.jpg"}]}`, string(resp.Body))
	assert.Equal(t, "POST", got.method)
	assert.Equal(t, "/fal-ai/flux", got.path)
	assert.Equal(t, `{"prompt":"cat"}`, got.body)
}

func TestForward_NonJSONReturnedRaw(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusServiceUnavailable, "text/html", "<h1>down</h1>")
	host := hostOf(t, srv)
	r := newRelay([]string{host}, nil)

	resp, err := r.Forward(context.Background(), relay.Envelope{Protocol: "http", Origin: host, Path: "/", Method: "GET"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.False(t, resp.IsJSON())
	assert.Equal(t, "<h1>down</h1>", string(resp.Body))
}

func TestForward_MissingContentTypeDefaultsToTextPlain(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusOK, "", "plain words")
	host := hostOf(t, srv)
	r := newRelay([]string{host}, nil)

	resp, err := r.Forward(context.Background(), relay.Envelope{Protocol: "http", Origin: host})
	require.NoError(t, err)

	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, "plain words", string(resp.Body))
}

func TestForward_InjectsCredentialOverridingCaller(t *testing.T) {
	srv, got, _ := newUpstream(t, http.StatusOK, "application/json", `{}`)
	host := hostOf(t, srv)
	r := newRelay([]string{host}, map[string]string{host: "Key server-secret"})

	_, err := r.Forward(context.Background(), relay.Envelope{
		Protocol: "http",
		Origin:   host,
		Path:     "/",
		Method:   "POST",
		Headers:  map[string]string{"authorization": "Key caller-supplied"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Key server-secret", got.auth)
}

func TestForward_NoInjectionForHostWithoutCredential(t *testing.T) {
	srv, got, _ := newUpstream(t, http.StatusOK, "application/json", `{}`)
	host := hostOf(t, srv)
	r := newRelay([]string{host}, map[string]string{"fal.run": "Key server-secret"})

	_, err := r.Forward(context.Background(), relay.Envelope{
		Protocol: "http",
		Origin:   host,
		Headers:  map[string]string{"Authorization": "Bearer caller"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer caller", got.auth)
}

func TestForward_RejectsOriginOutsideAllowList(t *testing.T) {
	srv, _, calls := newUpstream(t, http.StatusOK, "application/json", `{}`)
	host := hostOf(t, srv)
	r := newRelay([]string{"fal.run"}, nil)

	_, err := r.Forward(context.Background(), relay.Envelope{Protocol: "http", Origin: host, Method: "GET"})

	assert.ErrorIs(t, err, relay.ErrOriginNotAllowed)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func redirectTo(t *testing.T, target string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target+r.URL.Path, http.StatusFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestForward_RefusesRedirectOffAllowList(t *testing.T) {
	internal, _, calls := newUpstream(t, http.StatusOK, "text/plain", "internal secret metadata")
	front := redirectTo(t, internal.URL)
	host := hostOf(t, front)

	client := &http.Client{}
	r := relay.New(relay.Options{
		AllowedOrigins: []string{host},
		HTTPClient:     client,
		Logger:         zerolog.Nop(),
	})

	resp, err := r.Forward(context.Background(), relay.Envelope{Protocol: "http", Origin: host, Path: "/latest/meta-data", Method: "GET"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, relay.ErrUpstream)
	assert.ErrorIs(t, err, relay.ErrRedirectNotAllowed)
	assert.NotContains(t, err.Error(), "internal secret metadata")
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
	assert.Nil(t, client.CheckRedirect)
}

func TestForward_FollowsRedirectWithinAllowList(t *testing.T) {
	target, got, calls := newUpstream(t, http.StatusOK, "application/json", `{"ok":true}`)
	front := redirectTo(t, target.URL)
	r := newRelay([]string{hostOf(t, front), hostOf(t, target)}, nil)

	resp, err := r.Forward(context.Background(), relay.Envelope{Protocol: "http", Origin: hostOf(t, front), Path: "/moved", Method: "GET"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "/moved", got.path)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestForward_InvalidEnvelope(t *testing.T) {
	r := newRelay([]string{"fal.run"}, nil)

	cases := map[string]relay.Envelope{
		"bad protocol": {Protocol: "ftp", Origin: "fal.run"},
		"no origin":    {Protocol: "https"},
		"userinfo":     {Protocol: "https", Origin: "fal.run@evil.example"},
		"origin path":  {Protocol: "https", Origin: "fal.run/evil"},
		"bad path":     {Protocol: "https", Origin: "fal.run", Path: "evil"},
		"bad method":   {Protocol: "https", Origin: "fal.run", Method: "BAD METHOD"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Forward(context.Background(), env)
			assert.ErrorIs(t, err, relay.ErrInvalidEnvelope)
		})
	}
}

func TestForward_MalformedJSON(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusOK, "application/json", `{"broken":`)
	host := hostOf(t, srv)
	r := newRelay([]string{host}, nil)

	_, err := r.Forward(context.Background(), relay.Envelope{Protocol: "http", Origin: host})

	assert.ErrorIs(t, err, relay.ErrInvalidJSON)
}

func TestForward_ResponseTooLarge(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusOK, "text/plain", strings.Repeat("a", 64))
	host := hostOf(t, srv)
	r := relay.New(relay.Options{AllowedOrigins: []string{host}, MaxResponseBytes: 16, Logger: zerolog.Nop()})

	_, err := r.Forward(context.Background(), relay.Envelope{Protocol: "http", Origin: host})

	assert.ErrorIs(t, err, relay.ErrResponseTooLarge)
}

func TestForward_UnreachableUpstream(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusOK, "text/plain", "")
	host := hostOf(t, srv)
	srv.Close()
	r := newRelay([]string{host}, nil)

	_, err := r.Forward(context.Background(), relay.Envelope{Protocol: "http", Origin: host})

	assert.ErrorIs(t, err, relay.ErrUpstream)
}

func TestEnvelope_BodyBytes(t *testing.T) {
	env := relay.Envelope{Body: json.RawMessage(`{ "a" : 1 }`)}
	data, err := env.BodyBytes()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	env = relay.Envelope{Body: json.RawMessage(`null`)}
	data, err = env.BodyBytes()
	require.NoError(t, err)
	assert.Nil(t, data)

	env = relay.Envelope{Body: json.RawMessage(`"raw text"`)}
	data, err = env.BodyBytes()
	require.NoError(t, err)
	assert.Equal(t, "raw text", string(data))
}

func TestRemoteClient_ReturnsRelayAnswerVerbatim(t *testing.T) {
	var gotAuth string
	var gotEnv relay.Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotEnv)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))
	defer srv.Close()

	client := relay.NewRemoteClient(srv.URL+"/api/proxy", "token-1", 5*time.Second)
	resp, err := client.Forward(context.Background(), relay.Envelope{Protocol: "https", Origin: "fal.run", Path: "/x", Method: "POST"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, "short and stout", string(resp.Body))
	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "fal.run", gotEnv.Origin)
	assert.Equal(t, "/x", gotEnv.Path)
}
