// Package server exposes the HTTP surface: the chat endpoint driving the
// conversation state machine, the meeting endpoints, health checks and the
// voice websocket relay.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/srmx/assistant/internal/agent"
	"github.com/srmx/assistant/internal/model"
	"github.com/srmx/assistant/internal/repository"
)

// ChatService is the slice of the agent the server drives, one turn per
// request.
type ChatService interface {
	Turn(ctx context.Context, req agent.Request) (*agent.Response, error)
}

// Server wires the HTTP handlers.
type Server struct {
	chat     ChatService
	meetings repository.MeetingRepository
	voice    *VoiceRelay
	logger   zerolog.Logger
}

// New creates a server. voice may be nil to disable the relay endpoint.
func New(chat ChatService, meetings repository.MeetingRepository, voice *VoiceRelay, logger zerolog.Logger) *Server {
	return &Server{chat: chat, meetings: meetings, voice: voice, logger: logger}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	mux.HandleFunc("POST /meetings", s.handleCreateMeeting)
	mux.HandleFunc("GET /meetings", s.handleListMeetings)
	mux.HandleFunc("POST /meetings/{id}/respond", s.handleRespondMeeting)

	if s.voice != nil {
		mux.HandleFunc("GET /ws/voicechat", s.voice.ServeHTTP)
	}

	return mux
}

type chatRequest struct {
	Message      string              `json:"message,omitempty"`
	Conversation []model.Entry       `json:"conversation,omitempty"`
	PendingCalls []model.PendingCall `json:"pending_calls,omitempty"`
}

type chatResponse struct {
	Output       string              `json:"output"`
	Conversation []model.Entry       `json:"conversation"`
	PendingCalls []model.PendingCall `json:"pending_calls,omitempty"`
	Retry        bool                `json:"retry,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	for _, entry := range req.Conversation {
		if !entry.Valid() {
			s.writeError(w, http.StatusBadRequest, "malformed conversation entry")
			return
		}
	}

	resp, err := s.chat.Turn(r.Context(), agent.Request{
		Message:      req.Message,
		Conversation: req.Conversation,
		PendingCalls: req.PendingCalls,
	})
	if errors.Is(err, agent.ErrEmptyTurn) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		// The conversation was not mutated; the client retries by
		// resubmitting the same payload.
		s.logger.Error().Err(err).Msg("server: chat turn failed")
		s.writeError(w, http.StatusBadGateway, "turn failed, retry with the same payload")
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Output:       resp.Output,
		Conversation: resp.Conversation,
		PendingCalls: resp.PendingCalls,
		Retry:        resp.Retry,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "assistant server is running",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("server: encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
