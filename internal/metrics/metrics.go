package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Accumulator metrics
	AccumulatedMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencheck_accumulated_minutes",
			Help: "Usage minutes accumulated in the current session",
		},
	)

	AllowedMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencheck_allowed_minutes",
			Help: "Configured usage allowance in minutes",
		},
	)

	// Cycle metrics
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screencheck_cycles_total",
			Help: "Total monitoring cycles executed",
		},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screencheck_cycle_duration_seconds",
			Help:    "Monitoring cycle duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
	)

	ResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screencheck_resets_total",
			Help: "Total idle resets of the accumulator",
		},
	)

	// Action metrics
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencheck_actions_total",
			Help: "Total enforcement actions attempted",
		},
		[]string{"result"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencheck_notifications_total",
			Help: "Total status notifications attempted",
		},
		[]string{"result"},
	)

	// Store metrics
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencheck_store_errors_total",
			Help: "Settings store operation errors",
		},
		[]string{"op"},
	)

	ParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencheck_parse_errors_total",
			Help: "Stored values that failed to parse and fell back to defaults",
		},
		[]string{"key"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		AccumulatedMinutes,
		AllowedMinutes,
		CyclesTotal,
		CycleDuration,
		ResetsTotal,
		ActionsTotal,
		NotificationsTotal,
		StoreErrors,
		ParseErrors,
	)
}

// Result label values shared by the counter vectors.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Result maps an error to a result label value.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: Handler(),
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the mux serving /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			return err
		}
		s.listener = ln
	} else {
		s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
	}

	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting metrics server")
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
