package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"digitalis/internal/auth"
	"digitalis/internal/catalog"
	"digitalis/internal/hub"
	"digitalis/internal/scheduler"
	"digitalis/internal/sequencer"
)

type Server struct {
	router     chi.Router
	catalog    *catalog.Store
	sequencer  *sequencer.Sequencer
	hub        *hub.Hub
	scheduler  *scheduler.Scheduler
	guard      *auth.Guard
	corsOrigin string
}

func NewServer(c *catalog.Store, opts ...Option) *Server {
	srv := &Server{
		router:  chi.NewRouter(),
		catalog: c,
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

type Option func(*Server)

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

func WithSequencer(seq *sequencer.Sequencer) Option {
	return func(s *Server) { s.sequencer = seq }
}

func WithHub(h *hub.Hub) Option {
	return func(s *Server) { s.hub = h }
}

func WithScheduler(sch *scheduler.Scheduler) Option {
	return func(s *Server) { s.scheduler = sch }
}

func WithGuard(g *auth.Guard) Option {
	return func(s *Server) { s.guard = g }
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
