// Package server exposes the chat engine over HTTP: the /chatbot API,
// a health endpoint, and the embedded web UI.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/normanking/typhoon/internal/chat"
	"github.com/normanking/typhoon/internal/config"
	"github.com/normanking/typhoon/internal/llm"
)

//go:embed static/*
var staticFiles embed.FS

// maxBodySize bounds incoming request bodies.
const maxBodySize = 1 * 1024 * 1024 // 1MB

// Responder runs one chat exchange. Satisfied by *chat.Engine.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// Server handles the HTTP API and the embedded web UI.
type Server struct {
	cfg        *config.Config
	engine     Responder
	provider   *llm.MetricsProvider
	httpServer *http.Server
}

// chatRequest is the /chatbot request body.
type chatRequest struct {
	Prompt string `json:"prompt"`
}

// chatResponse is the /chatbot response body. Errors are reported in
// the same shape so the UI can render them as chat bubbles.
type chatResponse struct {
	Response string `json:"response"`
}

// New creates a server around an engine. provider may be nil; the
// health endpoint then omits backend details.
func New(cfg *config.Config, engine Responder, provider *llm.MetricsProvider) *Server {
	return &Server{
		cfg:      cfg,
		engine:   engine,
		provider: provider,
	}
}

// Handler builds the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chatbot", s.handleChat)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleStatic)
	return s.corsMiddleware(requestLogger(mux))
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // continuation rounds can run long
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("shutting down HTTP server")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// handleChat runs one exchange and returns the stitched reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, chatResponse{Response: "Method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, chatResponse{Response: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: "Invalid request body"})
		return
	}

	reply, err := s.engine.Respond(r.Context(), req.Prompt)
	if err != nil {
		status, msg := classifyError(err)
		writeJSON(w, status, chatResponse{Response: msg})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

// classifyError maps engine errors to an HTTP status and a
// user-facing message.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		return http.StatusBadRequest, "Please type a message for Typhoon."
	case errors.Is(err, llm.ErrMissingCredential):
		return http.StatusInternalServerError, "The model API key is missing. Set it in the configuration or environment, then restart."
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Typhoon error calling the model backend: %v", err)
	}
}

// handleHealth reports server status, backend availability and call
// metrics.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, chatResponse{Response: "Method not allowed"})
		return
	}

	health := map[string]any{"status": "ok"}
	if s.provider != nil {
		health["provider"] = s.provider.Name()
		health["available"] = s.provider.Available()
		health["metrics"] = s.provider.Snapshot()
	}
	writeJSON(w, http.StatusOK, health)
}

// handleStatic serves the embedded web UI.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}
	if strings.HasPrefix(path, "/static/") {
		path = strings.TrimPrefix(path, "/static")
	}
	if _, err := fs.Stat(subFS, strings.TrimPrefix(path, "/")); err != nil {
		http.NotFound(w, r)
		return
	}

	r.URL.Path = path
	http.FileServer(http.FS(subFS)).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requestLogger tags each request with an ID and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// corsMiddleware allows cross-origin calls from the configured origin,
// or from localhost by default.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := s.allowedOrigin(origin)

		if allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowedOrigin returns the origin to allow, or empty when the origin
// is not permitted.
func (s *Server) allowedOrigin(origin string) string {
	if configured := s.cfg.Server.CORSOrigin; configured != "" {
		if configured == "*" {
			return "*"
		}
		if origin == configured {
			return origin
		}
		return ""
	}

	if origin == "" {
		return ""
	}
	if strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		origin == "http://localhost" ||
		origin == "http://127.0.0.1" {
		return origin
	}
	return ""
}
