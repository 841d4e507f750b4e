package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// assess scores a stored patient and appends the result to its history. A
// failed history write is logged, never returned.
func (s *Server) assess(ctx context.Context, p domain.Patient) domain.RiskAssessment {
	a := domain.AssessRisk(ctx, p.Profile(), s.svc.Weather, s.logger)
	s.recordAssessment(ctx, p.ID, a)
	return a
}

func (s *Server) recordAssessment(ctx context.Context, patientID int64, a domain.RiskAssessment) {
	if s.svc.Metrics != nil {
		s.svc.Metrics.Assessments.WithLabelValues(string(a.RiskLevel)).Inc()
	}
	if patientID == 0 || s.svc.History == nil {
		return
	}
	if _, err := s.svc.History.SaveAssessment(ctx, domain.NewAssessmentRecord(patientID, a)); err != nil {
		s.logger.Warn("save assessment history failed", "patient_id", patientID, "error", err)
	}
}

// suggest attaches AI advice, or the static fallback when the recommender is
// unavailable.
func (s *Server) suggest(ctx context.Context, entry *domain.RosterEntry, p domain.Patient) {
	sug, err := domain.SuggestFor(ctx, s.svc.Recommender, domain.RecommendationRequest{
		Patient:    p,
		Assessment: entry.Assessment,
	})
	if err != nil {
		s.logger.Warn("ai suggestions failed, using fallback", "patient_id", p.ID, "error", err)
	}
	entry.AISuggestions = &sug
}

func (s *Server) loadPatient(r *http.Request) (domain.Patient, error) {
	id, err := pathID(r)
	if err != nil {
		return domain.Patient{}, err
	}
	return s.svc.Patients.GetPatient(r.Context(), id)
}

func (s *Server) handlePatientRisk(w http.ResponseWriter, r *http.Request) {
	includeAI, err := queryBool(r, "include_ai", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.loadPatient(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entry := domain.NewRosterEntry(p, s.assess(r.Context(), p))
	if includeAI {
		s.suggest(r.Context(), &entry, p)
	}
	sharedobs.WriteJSON(w, http.StatusOK, entry)
}

func (s *Server) handleComprehensive(w http.ResponseWriter, r *http.Request) {
	p, err := s.loadPatient(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	c := domain.BuildComprehensiveAssessment(r.Context(), p, s.svc.Weather, s.logger)
	s.recordAssessment(r.Context(), p.ID, c.BasicRisk)
	sharedobs.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, err := s.loadPatient(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := s.svc.History.AssessmentHistory(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, history)
}

// handleAdHocAssessment scores a profile that is not in the registry. Nothing
// is persisted.
func (s *Server) handleAdHocAssessment(w http.ResponseWriter, r *http.Request) {
	var profile domain.PatientProfile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&profile); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: decode profile: %w", errBadRequest, err))
		return
	}
	if err := profile.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	a := domain.AssessRisk(r.Context(), profile, s.svc.Weather, s.logger)
	s.recordAssessment(r.Context(), 0, a)
	sharedobs.WriteJSON(w, http.StatusOK, a)
}

func (s *Server) handleRiskPatients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.RosterFilter
	if raw := q.Get("risk_level"); raw != "" {
		level, ok := domain.ParseLevel(raw)
		if !ok {
			s.writeError(w, r, fmt.Errorf("%w: unknown risk_level %q", errBadRequest, raw))
			return
		}
		filter.RiskLevel = level
	}
	filter.Location = q.Get("location")
	includeAI, err := queryBool(r, "include_ai", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, patients, err := s.roster(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if includeAI {
		for i := range entries {
			s.suggest(r.Context(), &entries[i], patients[entries[i].PatientID])
		}
	}
	sharedobs.WriteJSON(w, http.StatusOK, entries)
}

// handleRiskSummary reports population statistics. The medication and
// condition breakdown is on unless include_detailed_breakdown=false.
func (s *Server) handleRiskSummary(w http.ResponseWriter, r *http.Request) {
	detailed, err := queryBool(r, "include_detailed_breakdown", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, _, err := s.roster(r.Context(), domain.RosterFilter{Location: r.URL.Query().Get("location")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if detailed {
		sharedobs.WriteJSON(w, http.StatusOK, domain.SummarizeDetailed(entries))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, domain.Summarize(entries))
}

// handleEnvironmentMetrics serves both the all-locations and the single zip
// code view.
func (s *Server) handleEnvironmentMetrics(w http.ResponseWriter, r *http.Request) {
	zip := r.PathValue("zip")
	patients, err := s.svc.Patients.ListPatients(r.Context(), zip)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics, entries := domain.BuildEnvironmentMetrics(r.Context(), patients, zip, s.svc.Weather, s.logger)
	for _, e := range entries {
		s.recordAssessment(r.Context(), e.PatientID, e.Assessment)
	}
	sharedobs.WriteJSON(w, http.StatusOK, metrics)
}

type adviceRequest struct {
	SpecificConcern string `json:"specific_concern"`
}

type adviceResponse struct {
	PatientID       int64               `json:"patient_id"`
	SpecificConcern string              `json:"specific_concern"`
	RiskLevel       domain.Level        `json:"risk_level"`
	RiskScore       float64             `json:"risk_score"`
	Advice          domain.HealthAdvice `json:"advice"`
}

// handleHealthAdvice scores the patient and asks the advisor about an
// optional concern. An empty body asks for general advice.
func (s *Server) handleHealthAdvice(w http.ResponseWriter, r *http.Request) {
	if s.svc.Advisor == nil {
		s.writeError(w, r, fmt.Errorf("%w: AI advisor is not configured", domain.ErrConfigMissing))
		return
	}
	p, err := s.loadPatient(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body adviceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, fmt.Errorf("%w: decode advice request: %w", errBadRequest, err))
		return
	}

	req := domain.HealthAdviceRequest{
		Patient:         p,
		Assessment:      s.assess(r.Context(), p),
		SpecificConcern: body.SpecificConcern,
	}
	advice, err := s.svc.Advisor.HealthAdvice(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, adviceResponse{
		PatientID:       p.ID,
		SpecificConcern: req.Concern(),
		RiskLevel:       req.Assessment.RiskLevel,
		RiskScore:       req.Assessment.RiskScore,
		Advice:          advice,
	})
}

// roster assesses the registered patients that pass the filter and records
// each assessment. The patients are returned by id for AI prompts.
func (s *Server) roster(ctx context.Context, filter domain.RosterFilter) ([]domain.RosterEntry, map[int64]domain.Patient, error) {
	patients, err := s.svc.Patients.ListPatients(ctx, filter.Location)
	if err != nil {
		return nil, nil, err
	}
	entries := domain.RiskRoster(ctx, patients, filter, s.svc.Weather, s.logger)

	byID := make(map[int64]domain.Patient, len(patients))
	for _, p := range patients {
		byID[p.ID] = p
	}
	for _, e := range entries {
		s.recordAssessment(ctx, e.PatientID, e.Assessment)
	}
	return entries, byID, nil
}
