package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/srmx/assistant/internal/repository"
)

type createMeetingRequest struct {
	Title        string   `json:"title"`
	Datetime     string   `json:"datetime"`
	Participants []string `json:"participants"`
	RequestedBy  string   `json:"requested_by"`
}

type respondMeetingRequest struct {
	Status      string `json:"status"`
	ConfirmedBy string `json:"confirmed_by"`
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Title == "" || req.Datetime == "" || req.RequestedBy == "" {
		s.writeError(w, http.StatusBadRequest, "title, datetime and requested_by are required")
		return
	}

	at, err := time.Parse(time.RFC3339, req.Datetime)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "datetime must be RFC 3339")
		return
	}

	meeting := repository.Meeting{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Datetime:     at,
		Participants: req.Participants,
		RequestedBy:  req.RequestedBy,
		Status:       repository.MeetingPending,
	}
	if err := s.meetings.Create(r.Context(), meeting); err != nil {
		s.logger.Error().Err(err).Msg("server: create meeting")
		s.writeError(w, http.StatusInternalServerError, "error requesting meeting")
		return
	}

	s.writeJSON(w, http.StatusCreated, meeting)
}

func (s *Server) handleRespondMeeting(w http.ResponseWriter, r *http.Request) {
	var req respondMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	status := repository.MeetingStatus(req.Status)
	if status != repository.MeetingConfirmed && status != repository.MeetingDeclined {
		s.writeError(w, http.StatusBadRequest, "status must be confirmed or declined")
		return
	}

	meeting, err := s.meetings.SetStatus(r.Context(), r.PathValue("id"), status, req.ConfirmedBy)
	if err != nil {
		s.logger.Error().Err(err).Msg("server: update meeting")
		s.writeError(w, http.StatusInternalServerError, "error updating meeting")
		return
	}
	if meeting == nil {
		s.writeError(w, http.StatusNotFound, "meeting not found")
		return
	}

	s.writeJSON(w, http.StatusOK, meeting)
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := s.meetings.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("server: list meetings")
		s.writeError(w, http.StatusInternalServerError, "error fetching meetings")
		return
	}
	if meetings == nil {
		meetings = []repository.Meeting{}
	}

	s.writeJSON(w, http.StatusOK, meetings)
}
