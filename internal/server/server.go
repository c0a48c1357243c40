// package server contains middleware & handlers for the jukebox web service
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the paths it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// Queue is the request queue the handlers drive.
type Queue interface {
	RequestSong(ctx context.Context, trackID, customerID, ownerID string) (*models.Song, error)
	ReviewSong(ctx context.Context, id int64, approved bool) error
	ResetRejectedSong(ctx context.Context, id int64) error
	SetPlaying(ctx context.Context, id int64) error
	RecommendedSongs(ctx context.Context) ([]models.Song, error)
	Search(ctx context.Context, filter, term string) ([]models.Song, error)
	Snapshot(ctx context.Context, ownerID string) ([]models.RequestSong, error)
	Request(ctx context.Context, id int64) (*models.RequestSong, error)
}

// Options configures a [Server].
type Options struct {
	Queue       Queue
	Feed        Handler
	Auth        *Auth
	Origins     []string
	CatalogName string
	Logger      *log.Logger
}

// Server is the jukebox HTTP API.
type Server struct {
	router  chi.Router
	queue   Queue
	auth    *Auth
	catalog string
	logger  *log.Logger
}

// New builds the router for opts.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &Server{
		router:  chi.NewRouter(),
		queue:   opts.Queue,
		auth:    opts.Auth,
		catalog: opts.CatalogName,
		logger:  shared.WithLogger(logger, "component", "http"),
	}

	s.router.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(s.logger),
		middleware.Recoverer,
		CORS(opts.Origins),
	)
	s.routes(opts.Feed)
	return s
}

func (s *Server) routes(feed Handler) {
	r := s.router
	r.Get("/health", s.handleHealth)

	r.Route("/song", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/recommendations", s.handleRecommendations)
		r.Post("/request", s.handleRequest)
		r.Get("/requests/{ownerId}", s.handleSnapshot)

		r.Group(func(r chi.Router) {
			if s.auth != nil {
				r.Use(s.auth.RequireOwner)
			}
			r.Post("/review/{id}", s.handleReview)
			r.Post("/reset-rejected/{id}", s.handleReset)
			r.Post("/set-playing/{id}", s.handleSetPlaying)
		})
	})

	if feed != nil {
		for _, route := range feed.Routes() {
			r.Handle(route, feed)
		}
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains connections for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
