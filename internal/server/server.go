// Package server exposes a Session over a small JSON API.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mhpenta/imagestudio"
	"github.com/mhpenta/imagestudio/internal/metrics"
)

// Server routes HTTP requests to a single Session.
type Server struct {
	session   *imagestudio.Session
	storage   imagestudio.Storage
	metrics   *metrics.Collector
	logger    *slog.Logger
	maxUpload int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStorage enables saving downloads server-side.
func WithStorage(storage imagestudio.Storage) Option {
	return func(s *Server) {
		s.storage = storage
	}
}

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithMaxUploadBytes bounds the multipart body held in memory.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New creates a Server for session.
func New(session *imagestudio.Session, opts ...Option) *Server {
	s := &Server{
		session:   session,
		logger:    slog.Default(),
		maxUpload: 32 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, middleware.RealIP, s.accessLog, middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Put("/prompt", s.setPrompt)
		r.Put("/mode", s.switchMode)
		r.Put("/create-function", s.selectCreateFunction)
		r.Put("/edit-function", s.selectEditFunction)
		r.Post("/slots/{slot}", s.upload)
		r.Post("/generate", s.generate)

		r.Route("/result", func(r chi.Router) {
			r.Get("/download", s.download)
			r.Post("/save", s.save)
			r.Post("/edit", s.editResult)
		})
	})

	return r
}
