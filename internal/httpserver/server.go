package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/location-reporter/internal/constants"
	"github.com/benmeehan/location-reporter/internal/models"
	"github.com/benmeehan/location-reporter/internal/services"
	"github.com/benmeehan/location-reporter/pkg/identity"
	"github.com/benmeehan/location-reporter/pkg/location"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Coordinator is the coordinator surface exposed over HTTP.
type Coordinator interface {
	BeginUpdates() error
	EndUpdates()
	ReportCurrentLocation() bool
	Snapshot() services.CoordinatorState
	CheckReadiness(ctx context.Context) error
}

// StateResponse is the body of GET /v1/state.
type StateResponse struct {
	DeviceID      string                  `json:"device_id"`
	Updating      bool                    `json:"updating"`
	CurrentFix    *models.LocationMessage `json:"current_fix,omitempty"`
	LatestOutcome *models.OutcomeMessage  `json:"latest_outcome,omitempty"`
}

// Server exposes health, readiness, metrics and control endpoints.
type Server struct {
	httpServer      *http.Server
	coordinator     Coordinator
	deviceInfo      identity.DeviceInfoInterface
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	served   chan struct{}
}

// NewServer creates an HTTP server. Metrics are served from gatherer.
func NewServer(addr string, shutdownTimeout time.Duration, coordinator Coordinator, deviceInfo identity.DeviceInfoInterface,
	gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		coordinator:     coordinator,
		deviceInfo:      deviceInfo,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /v1/state", s.handleState)
	mux.HandleFunc("POST /v1/updates/start", s.handleStartUpdates)
	mux.HandleFunc("POST /v1/updates/stop", s.handleStopUpdates)
	mux.HandleFunc("POST /v1/reports", s.handleReport)

	return s
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("http server is already running")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.served = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}(s.served)

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server started")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Stop gracefully drains connections within the shutdown timeout.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return errors.New("http server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	<-s.served
	s.listener = nil

	s.logger.Info().Msg("HTTP server stopped")
	return err
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.coordinator.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	deviceID := s.deviceInfo.GetDeviceID()
	state := s.coordinator.Snapshot()

	resp := StateResponse{DeviceID: deviceID, Updating: state.Updating}
	if state.CurrentFix != nil {
		msg := models.NewLocationMessage(deviceID, *state.CurrentFix)
		resp.CurrentFix = &msg
	}
	if state.LatestOutcome != nil {
		msg := models.NewOutcomeMessage(deviceID, *state.LatestOutcome)
		resp.LatestOutcome = &msg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartUpdates(w http.ResponseWriter, _ *http.Request) {
	if err := s.coordinator.BeginUpdates(); err != nil {
		if errors.Is(err, location.ErrPermissionDenied) {
			s.logger.Warn().Err(err).Msg("Location updates need permission")
			writeJSON(w, http.StatusForbidden, map[string]string{
				"status": "denied",
				"reason": string(constants.NoticePermissionRequired),
			})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to begin location updates")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

func (s *Server) handleStopUpdates(w http.ResponseWriter, _ *http.Request) {
	s.coordinator.EndUpdates()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	if !s.coordinator.ReportCurrentLocation() {
		writeJSON(w, http.StatusConflict, map[string]any{"accepted": false, "reason": "no location fix yet"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
