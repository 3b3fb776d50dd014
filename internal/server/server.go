package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/intake-router/internal/common"
	"github.com/joseph-ayodele/intake-router/internal/memory"
	"github.com/joseph-ayodele/intake-router/internal/orchestrator"
)

// Pipeline is the subset of the orchestrator the HTTP layer needs.
type Pipeline interface {
	Process(ctx context.Context, input []byte, conversationID string, clearMemory bool) orchestrator.Envelope
	History(ctx context.Context, conversationID string) ([]memory.Record, error)
	ClearConversation(ctx context.Context, conversationID string) error
}

// Exporter renders a conversation history as a spreadsheet.
type Exporter interface {
	ConversationXLSX(ctx context.Context, conversationID string) ([]byte, error)
}

type Server struct {
	router   *chi.Mux
	pipeline Pipeline
	exporter Exporter
	logger   *slog.Logger
}

func New(pipeline Pipeline, exporter Exporter, logger *slog.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		pipeline: pipeline,
		exporter: exporter,
		logger:   logger,
	}

	s.router.Use(s.requestLogger)

	s.router.Get("/healthz", s.health)
	s.router.Post("/v1/process", s.process)
	s.router.Route("/v1/conversations/{id}", func(r chi.Router) {
		r.Get("/", s.history)
		r.Delete("/", s.clear)
		r.Get("/export", s.export)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := common.WithRequestID(r.Context(), requestID)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Info("http.request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// process accepts raw document bytes and runs them through the intake
// pipeline. Failures inside the pipeline come back as an error field in
// the envelope, not as a non-200 status; only an empty body is rejected
// outright.
func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty request body")
		return
	}

	conversationID := r.URL.Query().Get("conversation_id")
	clearMemory := false
	if raw := r.URL.Query().Get("clear_memory"); raw != "" {
		clearMemory, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid clear_memory: %v", err))
			return
		}
	}

	env := s.pipeline.Process(r.Context(), body, conversationID, clearMemory)
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	records, err := s.pipeline.History(r.Context(), conversationID)
	if err != nil {
		s.logger.Warn("http.history.failed", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"records":         records,
		"count":           len(records),
	})
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := s.pipeline.ClearConversation(r.Context(), conversationID); err != nil {
		s.logger.Warn("http.clear.failed", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	data, err := s.exporter.ConversationXLSX(r.Context(), conversationID)
	if err != nil {
		s.logger.Warn("http.export.failed", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conversationID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
