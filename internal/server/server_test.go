package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/typhoon/internal/chat"
	"github.com/normanking/typhoon/internal/config"
	"github.com/normanking/typhoon/internal/llm"
)

type stubResponder struct {
	reply string
	err   error

	gotPrompt string
}

func (s *stubResponder) Respond(ctx context.Context, prompt string) (string, error) {
	s.gotPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", chat.ErrEmptyPrompt
	}
	return s.reply, nil
}

func newTestServer(responder *stubResponder) *Server {
	return New(config.Default(), responder, nil)
}

func postChat(t *testing.T, handler http.Handler, body string) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chatbot", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestChatEndpoint(t *testing.T) {
	responder := &stubResponder{reply: "The Typhoon entered service in 2003."}
	srv := newTestServer(responder)

	rec, resp := postChat(t, srv.Handler(), `{"prompt":"When did the Typhoon enter service?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "The Typhoon entered service in 2003.", resp.Response)
	assert.Equal(t, "When did the Typhoon enter service?", responder.gotPrompt)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestChatEndpointEmptyPrompt(t *testing.T) {
	srv := newTestServer(&stubResponder{})

	rec, resp := postChat(t, srv.Handler(), `{"prompt":"   "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please type a message for Typhoon.", resp.Response)
}

func TestChatEndpointInvalidBody(t *testing.T) {
	srv := newTestServer(&stubResponder{})

	rec, resp := postChat(t, srv.Handler(), `{"prompt": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", resp.Response)
}

func TestChatEndpointMissingCredential(t *testing.T) {
	srv := newTestServer(&stubResponder{err: fmt.Errorf("%w: no key", llm.ErrMissingCredential)})

	rec, resp := postChat(t, srv.Handler(), `{"prompt":"Hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, resp.Response, "API key is missing")
}

func TestChatEndpointBackendError(t *testing.T) {
	srv := newTestServer(&stubResponder{err: fmt.Errorf("%w: status 502", llm.ErrBackendUnavailable)})

	rec, resp := postChat(t, srv.Handler(), `{"prompt":"Hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, resp.Response, "Typhoon error calling the model backend")
}

func TestChatEndpointMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubResponder{})

	req := httptest.NewRequest(http.MethodGet, "/chatbot", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChatEndpointBodyTooLarge(t *testing.T) {
	srv := newTestServer(&stubResponder{reply: "ok"})

	big := strings.Repeat("a", maxBodySize+1)
	rec, _ := postChat(t, srv.Handler(), `{"prompt":"`+big+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubResponder{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
}

func TestStaticIndex(t *testing.T) {
	srv := newTestServer(&stubResponder{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Typhoon")
}

func TestStaticScript(t *testing.T) {
	srv := newTestServer(&stubResponder{})

	req := httptest.NewRequest(http.MethodGet, "/static/script.js", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/chatbot")
}

func TestStaticUnknownPath(t *testing.T) {
	srv := newTestServer(&stubResponder{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSLocalhostDefault(t *testing.T) {
	srv := newTestServer(&stubResponder{reply: "hi"})

	req := httptest.NewRequest(http.MethodOptions, "/chatbot", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	srv := newTestServer(&stubResponder{reply: "hi"})

	req := httptest.NewRequest(http.MethodOptions, "/chatbot", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfiguredOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.Server.CORSOrigin = "https://chat.example.com"
	srv := New(cfg, &stubResponder{reply: "hi"}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chatbot", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://chat.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
