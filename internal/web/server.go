// Package web serves the mood board page and its JSON API.
package web

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goodtune/moodboard/internal/chart"
	"github.com/goodtune/moodboard/internal/moodstore"
	"github.com/goodtune/moodboard/internal/session"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

//go:embed static
var staticFS embed.FS

// Config holds the web server configuration.
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
	AllowedOrigins  []string
	Timeline        []TimelineItem
}

// Server is the mood board HTTP server.
type Server struct {
	config      Config
	store       *moodstore.Store
	projector   *chart.Projector
	hub         *chart.Hub
	sessions    *session.Manager
	rateLimiter *RateLimiter
	router      *mux.Router
	handler     http.Handler
	templates   *template.Template
	server      *http.Server
	listener    net.Listener
	logger      zerolog.Logger

	done     chan struct{}
	doneOnce sync.Once
}

// NewServer creates a server over the given store, projector, hub and
// session manager.
func NewServer(cfg Config, store *moodstore.Store, projector *chart.Projector, hub *chart.Hub, sessions *session.Manager, logger zerolog.Logger) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}

	logger = logger.With().Str("component", "web").Logger()

	tmpl, err := template.ParseFS(staticFS, "static/templates/*.html")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse templates")
		tmpl = template.New("fallback")
	}

	s := &Server{
		config:    cfg,
		store:     store,
		projector: projector,
		hub:       hub,
		sessions:  sessions,
		router:    mux.NewRouter(),
		templates: tmpl,
		logger:    logger,
		done:      make(chan struct{}),
	}
	if cfg.RateLimit > 0 {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	}

	s.setupRoutes()

	s.handler = s.router
	if len(cfg.AllowedOrigins) > 0 {
		// Outside the router so preflight requests reach it
		s.handler = CORSMiddleware(cfg.AllowedOrigins)(s.router)
	}

	// No write timeout: the chart stream is long lived
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))
	if s.rateLimiter != nil {
		s.router.Use(RateLimitMiddleware(s.rateLimiter))
	}
	s.router.Use(SessionMiddleware(s.sessions, s.logger))

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	staticSub, err := fs.Sub(staticFS, "static")
	if err == nil {
		s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	}

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/session", s.handleGetSession).Methods("GET")
	api.HandleFunc("/session", s.handleEndSession).Methods("DELETE")
	api.HandleFunc("/session/toggle", s.handleToggleSession).Methods("POST")

	api.HandleFunc("/moods", s.handleListMoods).Methods("GET")
	api.HandleFunc("/moods", s.handleAddMood).Methods("POST")
	api.HandleFunc("/moods/clear", s.handleRequestClear).Methods("POST")
	api.HandleFunc("/moods/clear/{token}", s.handleCommitClear).Methods("POST")

	api.HandleFunc("/chart", s.handleChart).Methods("GET")
	api.HandleFunc("/chart/tooltip/{category}", s.handleTooltip).Methods("GET")
	api.HandleFunc("/chart/stream", s.handleStream).Methods("GET")
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts serving in the background.
func (s *Server) Start() error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return err
		}
		s.listener = ln
	} else {
		s.logger.Debug().Msg("Using systemd socket-activated HTTP listener")
	}

	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting web server")
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Web server error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Stopping web server")
	s.doneOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}
