package server

import (
	"errors"
	"log"
	"net/http"

	"digitalis/internal/models"
)

type commandResponse struct {
	Seq uint64 `json:"seq"`
}

// submitCommand funnels one HTTP control verb into the sequencer and maps
// the outcome onto a status code: rejections are the client's fault (400),
// overload asks for backoff (429), shutdown refuses outright (503).
func (s *Server) submitCommand(w http.ResponseWriter, r *http.Request, cmd models.Command) {
	if s.sequencer == nil {
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}
	cmd.ClientID = clientID(r)
	seq, err := s.sequencer.Submit(r.Context(), cmd)
	if err != nil {
		if reason, ok := models.IsRejected(err); ok {
			writeError(w, http.StatusBadRequest, reason)
			return
		}
		switch {
		case errors.Is(err, models.ErrOverloaded):
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "server overloaded, retry later")
		case errors.Is(err, models.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, "shutting down")
		default:
			log.Printf("submitting %s: %v", cmd.Type, err)
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Seq: seq})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if s.sequencer == nil {
		writeError(w, http.StatusServiceUnavailable, "playback not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.sequencer.Snapshot())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, models.Command{Type: models.CmdPlay})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, models.Command{Type: models.CmdPause})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, models.Command{Type: models.CmdStop})
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PositionMs int64 `json:"position_ms"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.submitCommand(w, r, models.Command{Type: models.CmdSeek, PositionMs: req.PositionMs})
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume int `json:"volume"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.submitCommand(w, r, models.Command{Type: models.CmdSetVolume, Volume: req.Volume})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, models.Command{Type: models.CmdSkip, Direction: models.SkipForward})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, models.Command{Type: models.CmdSkip, Direction: models.SkipBackward})
}
