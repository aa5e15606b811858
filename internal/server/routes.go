package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(jsonContentType)
		r.Use(corsMiddleware(s.corsOrigin))
		r.Use(requireToken(s.guard))

		r.Get("/library", s.handleGetLibrary)
		r.Get("/library/artists", s.handleGetArtists)
		r.Get("/library/artists/{artist}/albums", s.handleGetAlbums)
		r.Get("/library/artists/{artist}/{album}", s.handleGetAlbumTracks)
		r.Post("/library/scan", s.handleScanLibrary)

		r.Get("/status", s.handleGetStatus)

		r.Post("/play", s.handlePlay)
		r.Post("/resume", s.handlePlay)
		r.Post("/pause", s.handlePause)
		r.Post("/stop", s.handleStop)
		r.Post("/seek", s.handleSeek)
		r.Post("/volume", s.handleSetVolume)
		r.Post("/next", s.handleNext)
		r.Post("/previous", s.handlePrevious)

		r.Get("/queue", s.handleGetQueue)
		r.Post("/queue", s.handleEnqueue)
		r.Delete("/queue/{index}", s.handleRemoveFromQueue)
		r.Post("/queue/reorder", s.handleReorderQueue)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(corsMiddleware(s.corsOrigin))
		r.Use(requireToken(s.guard))
		r.Get("/api/ws", s.handleWS)
		r.Get("/api/events", s.handleEventsSSE)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.catalog.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
