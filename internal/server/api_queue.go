package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"digitalis/internal/models"
)

type QueueResponse struct {
	Queue        []models.QueueEntry `json:"queue"`
	CurrentIndex int                 `json:"current_index"`
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	if s.sequencer == nil {
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}
	snap := s.sequencer.Snapshot()
	writeJSON(w, http.StatusOK, QueueResponse{
		Queue:        snap.State.Queue,
		CurrentIndex: snap.State.CurrentIndex,
	})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID int64 `json:"track_id"`
		At      *int  `json:"at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.submitCommand(w, r, models.Command{Type: models.CmdEnqueue, TrackID: req.TrackID, At: req.At})
}

func (s *Server) handleRemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be a number")
		return
	}
	s.submitCommand(w, r, models.Command{Type: models.CmdRemove, Index: index})
}

func (s *Server) handleReorderQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.submitCommand(w, r, models.Command{Type: models.CmdReorder, From: req.From, To: req.To})
}
