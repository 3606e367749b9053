package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"mrzscan/internal/mrz"
	"mrzscan/internal/session"
)

type createSessionResponse struct {
	ID string `json:"id"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: s.manager.Len()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Create()
	s.writeJSON(w, http.StatusCreated, createSessionResponse{ID: sess.ID()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Stats())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Close(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmitFrame applies one frame. Frames that arrive while the session
// is busy are dropped unless the request sets ?wait=true.
func (s *Server) handleSubmitFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var frame mrz.Frame
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err := dec.Decode(&frame); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid frame: " + err.Error()})
		return
	}
	if _, err := dec.Token(); err != io.EOF {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid frame: unexpected data after frame object"})
		return
	}

	submit := sess.Submit
	if r.URL.Query().Get("wait") == "true" {
		submit = sess.Process
	}

	event, err := submit(frame)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if event.Type == session.EventResult && s.onResult != nil {
		s.onResult(sess.ID(), event)
	}

	s.writeJSON(w, http.StatusOK, event)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrSessionClosed):
		status = http.StatusGone
	default:
		s.log.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Int("status", status).Msg("Failed to encode response")
	}
}
