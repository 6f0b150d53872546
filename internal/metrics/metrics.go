package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// HTTP metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodboard_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "moodboard_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Store metrics
	MoodsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodboard_moods_recorded_total",
			Help: "Total mood ratings recorded",
		},
		[]string{"category"},
	)

	MoodsCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "moodboard_moods_cleared_total",
			Help: "Total confirmed clears",
		},
	)

	CurrentMood = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodboard_current_mood",
			Help: "Latest rating per category, 0 when absent",
		},
		[]string{"category"},
	)

	UnauthorizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodboard_unauthorized_total",
			Help: "Operations rejected because the session was not authorized",
		},
		[]string{"action"},
	)

	// Session metrics
	ActiveSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodboard_active_sessions",
			Help: "Number of live page sessions",
		},
		[]string{"mode"},
	)

	// Chart stream metrics
	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodboard_stream_subscribers",
			Help: "Number of connected chart streams",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RateLimited,
		MoodsRecorded,
		MoodsCleared,
		CurrentMood,
		UnauthorizedTotal,
		ActiveSessions,
		StreamSubscribers,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the server's handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
