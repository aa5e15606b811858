package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"digitalis/internal/models"
)

type LibraryResponse struct {
	Tracks  []models.Track `json:"tracks"`
	Artists int            `json:"artists"`
	Albums  int            `json:"albums"`
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	var resp LibraryResponse
	g, _ := errgroup.WithContext(r.Context())

	g.Go(func() error {
		var err error
		resp.Tracks, err = s.catalog.ListTracks()
		return err
	})
	g.Go(func() error {
		var err error
		resp.Artists, err = s.catalog.CountArtists()
		return err
	})
	g.Go(func() error {
		var err error
		resp.Albums, err = s.catalog.CountAlbums()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("library listing: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if resp.Tracks == nil {
		resp.Tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := s.catalog.ListArtists()
	if err != nil {
		log.Printf("listing artists: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if artists == nil {
		artists = []string{}
	}
	writeJSON(w, http.StatusOK, artists)
}

func (s *Server) handleGetAlbums(w http.ResponseWriter, r *http.Request) {
	artist := chi.URLParam(r, "artist")
	albums, err := s.catalog.ListAlbums(artist)
	if err != nil {
		log.Printf("listing albums for %s: %v", artist, err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if albums == nil {
		albums = []string{}
	}
	writeJSON(w, http.StatusOK, albums)
}

func (s *Server) handleGetAlbumTracks(w http.ResponseWriter, r *http.Request) {
	artist := chi.URLParam(r, "artist")
	album := chi.URLParam(r, "album")
	tracks, err := s.catalog.ListAlbumTracks(artist, album)
	if err != nil {
		log.Printf("listing tracks for %s/%s: %v", artist, album, err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scanner not configured")
		return
	}
	if err := s.scheduler.TriggerScan(r.Context()); err != nil {
		log.Printf("manual scan: %v", err)
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
