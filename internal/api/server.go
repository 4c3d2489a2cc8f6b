// Package api exposes the engine over HTTP for local tooling and editor
// integrations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/orchestrator"
)

// Server serves the engine's HTTP API.
type Server struct {
	engine *orchestrator.Engine
	router chi.Router
}

// NewServer builds the routing tree around the engine.
func NewServer(engine *orchestrator.Engine) *Server {
	s := &Server{engine: engine}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/items", s.handleListItems)
		r.Post("/poll", s.handlePoll)
		r.Route("/items/{owner}/{repo}/{number}", func(r chi.Router) {
			r.Get("/", s.handleGetItem)
			r.Post("/seen", s.handleMarkSeen)
			r.Post("/review", s.handleStartReview)
			r.Get("/review", s.handleGetReview)
			r.Delete("/review", s.handleCancelReview)
			r.Post("/annotations/{index}", s.handleSelectAnnotation)
		})
	})

	s.router = r
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("API server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// itemID reconstructs the engine's item key from the URL parameters.
func itemID(r *http.Request) (string, error) {
	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		return "", fmt.Errorf("invalid item number: %w", err)
	}
	return fmt.Sprintf("%s/%s#%d", owner, repo, number), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Items())
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, ok := s.engine.GetItem(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown item: "+id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.engine.MarkSeen(id) {
		writeError(w, http.StatusNotFound, "unknown item: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch err := s.engine.StartReview(id); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"itemId": id, "status": "pending"})
	case errors.Is(err, orchestrator.ErrReviewInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrUnknownItem):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, ok := s.engine.GetReview(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no review for item: "+id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCancelReview(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.engine.CancelReview(id) {
		writeError(w, http.StatusConflict, "no in-flight review for item: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid annotation index")
		return
	}

	var body struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.engine.SelectAnnotation(id, index, body.Selected) {
		writeError(w, http.StatusNotFound, "no matching annotation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	delta, err := s.engine.PollNow(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, delta)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond).String())
	})
}
