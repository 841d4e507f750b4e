package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxJSONBody = 1 << 20
	maxCSVBody  = 10 << 20
)

var errBadRequest = errors.New("bad request")

// WeatherService is the weather surface the API exposes.
type WeatherService interface {
	domain.WeatherProvider
	Forecast(ctx context.Context, zip string, days int) domain.ForecastReport
	Alerts(ctx context.Context, zip string) (domain.AlertReport, error)
}

// Services are the collaborators behind the API routes. Recommender may be
// nil, in which case AI requests get the static fallback. A nil Advisor makes
// the analysis and advice routes answer 503.
type Services struct {
	Patients    domain.PatientRepository
	History     domain.HistoryStore
	Weather     WeatherService
	Recommender domain.Recommender
	Advisor     domain.Advisor
	Ready       sharedobs.ReadinessChecker
	Metrics     *observability.Metrics
}

// Checks is a ReadinessChecker that is ready only when every member is.
type Checks []sharedobs.ReadinessChecker

func (c Checks) CheckReadiness(ctx context.Context) error {
	for _, check := range c {
		if err := check.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Server exposes the patient risk API plus health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	svc        Services
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the health and /api/v1 routes.
func NewServer(addr string, svc Services, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/patients", s.handleCreatePatient)
	mux.HandleFunc("GET /api/v1/patients", s.handleListPatients)
	mux.HandleFunc("POST /api/v1/patients/import", s.handleImportPatients)
	mux.HandleFunc("GET /api/v1/patients/{id}", s.handleGetPatient)
	mux.HandleFunc("PUT /api/v1/patients/{id}", s.handleUpdatePatient)
	mux.HandleFunc("DELETE /api/v1/patients/{id}", s.handleDeletePatient)

	mux.HandleFunc("GET /api/v1/patients/{id}/risk", s.handlePatientRisk)
	mux.HandleFunc("GET /api/v1/patients/{id}/risk/comprehensive", s.handleComprehensive)
	mux.HandleFunc("GET /api/v1/patients/{id}/risk/history", s.handleHistory)
	mux.HandleFunc("POST /api/v1/patients/{id}/advice", s.handleHealthAdvice)
	mux.HandleFunc("POST /api/v1/assessments", s.handleAdHocAssessment)
	mux.HandleFunc("GET /api/v1/risk-patients", s.handleRiskPatients)
	mux.HandleFunc("GET /api/v1/risk-patients/summary", s.handleRiskSummary)
	mux.HandleFunc("GET /api/v1/environment-metrics", s.handleEnvironmentMetrics)
	mux.HandleFunc("GET /api/v1/environment-metrics/{zip}", s.handleEnvironmentMetrics)

	mux.HandleFunc("GET /api/v1/weather/{zip}", s.handleWeather)
	mux.HandleFunc("GET /api/v1/weather/{zip}/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/v1/weather/{zip}/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/v1/weather/{zip}/ai-analysis", s.handleWeatherAnalysis)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// writeError maps domain errors onto status codes and writes {"error": ...}.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfigMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrExternalAPI):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid patient id %q", errBadRequest, raw)
	}
	return id, nil
}

// queryBool parses an optional boolean query parameter, def when absent.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, name)
	}
	return v, nil
}
