// Package api exposes scan sessions over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"mrzscan/internal/logger"
	"mrzscan/internal/session"
)

// maxFrameBytes bounds the size of a posted frame.
const maxFrameBytes = 1 << 20

// ResultHandler is called after a session produced a result event.
type ResultHandler func(sessionID string, event session.Event)

// Server serves the session API.
type Server struct {
	manager  *session.Manager
	onResult ResultHandler
	log      zerolog.Logger
}

// NewServer creates a server over manager. onResult may be nil.
func NewServer(manager *session.Manager, onResult ResultHandler) *Server {
	return &Server{
		manager:  manager,
		onResult: onResult,
		log:      logger.WithComponent("api"),
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/frames", s.handleSubmitFrame).Methods("POST")
	r.HandleFunc("/sessions/{id}/reset", s.handleResetSession).Methods("POST")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
