package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Weather.GetSnapshot(r.Context(), r.PathValue("zip"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

// handleForecast accepts ?days=1..5; out-of-range values are clamped by the
// weather client.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: days must be an integer", errBadRequest))
			return
		}
		days = n
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.svc.Weather.Forecast(r.Context(), r.PathValue("zip"), days))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Weather.Alerts(r.Context(), r.PathValue("zip"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

type weatherAnalysisResponse struct {
	WeatherData  domain.WeatherSnapshot     `json:"weather_data"`
	PatientCount int                        `json:"patient_count"`
	AIAnalysis   domain.WeatherRiskAnalysis `json:"ai_analysis"`
	Timestamp    time.Time                  `json:"timestamp"`
}

// handleWeatherAnalysis asks the advisor about a zip code's current weather
// and the number of registered patients living there.
func (s *Server) handleWeatherAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.svc.Advisor == nil {
		s.writeError(w, r, fmt.Errorf("%w: AI advisor is not configured", domain.ErrConfigMissing))
		return
	}
	zip := r.PathValue("zip")
	snap, err := s.svc.Weather.GetSnapshot(r.Context(), zip)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	patients, err := s.svc.Patients.ListPatients(r.Context(), zip)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	analysis, err := s.svc.Advisor.AnalyzeWeather(r.Context(), domain.WeatherAnalysisRequest{
		Location:     zip,
		Weather:      snap,
		PatientCount: len(patients),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, weatherAnalysisResponse{
		WeatherData:  snap,
		PatientCount: len(patients),
		AIAnalysis:   analysis,
		Timestamp:    domain.Now(),
	})
}
