// Package server exposes the dialogue agent over HTTP. One POST /chat
// endpoint carries the whole conversation; sessions live in memory and
// are keyed by the UUID issued on the first turn.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poagent/internal/agent"
)

// ChatRequest is one user turn. session_id is empty on the first turn.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the agent's reply plus the session's current state.
type ChatResponse struct {
	Response       string                 `json:"response"`
	PayloadPreview map[string]interface{} `json:"payload_preview,omitempty"`
	CurrentStep    string                 `json:"current_step"`
	Completed      bool                   `json:"completed"`
	PONumber       string                 `json:"po_number,omitempty"`
	SessionID      string                 `json:"session_id"`
}

// sessionEntry pairs a session with its own lock so concurrent turns on
// the same session serialize without blocking other sessions.
type sessionEntry struct {
	mu      sync.Mutex
	session *agent.Session
}

// Server is the HTTP front for the agent.
type Server struct {
	agent  *agent.Agent
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// New creates a Server around the given agent.
func New(a *agent.Agent, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		agent:    a,
		logger:   logger,
		sessions: make(map[string]*sessionEntry),
	}
}

// Handler returns the routed handler with logging middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/chat", s.handleChat)
	return s.withLogging(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "po-agent"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	entry, id := s.getOrCreate(req.SessionID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	response := s.agent.Advance(r.Context(), req.Message, entry.session)

	sess := entry.session
	resp := ChatResponse{
		Response:    response,
		CurrentStep: string(sess.Step),
		Completed:   sess.Step == agent.StepDone,
		PONumber:    sess.Draft.PONumber,
		SessionID:   id,
	}
	if preview, err := sess.Draft.Payload(); err == nil {
		resp.PayloadPreview = preview
	}
	writeJSON(w, http.StatusOK, resp)
}

// getOrCreate returns the session for the given id, issuing a fresh
// session and UUID when the id is empty or unknown.
func (s *Server) getOrCreate(id string) (*sessionEntry, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if entry, ok := s.sessions[id]; ok {
			return entry, id
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	entry := &sessionEntry{session: agent.NewSession(id)}
	s.sessions[id] = entry
	s.logger.Info("session created", zap.String("session_id", id))
	return entry, id
}

// withLogging logs each request with its latency and status.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
