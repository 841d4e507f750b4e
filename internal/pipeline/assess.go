package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
)

// RiskAssessor implements Assessor by decoding the patient record and scoring
// it against current weather.
type RiskAssessor struct {
	provider domain.WeatherProvider
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewAssessor creates a RiskAssessor. A nil provider scores every record with
// the offline default snapshot.
func NewAssessor(provider domain.WeatherProvider, metrics *observability.Metrics, logger *slog.Logger) *RiskAssessor {
	return &RiskAssessor{
		provider: provider,
		metrics:  metrics,
		logger:   logger,
	}
}

// Assess fails only for records that cannot be decoded or validated.
func (a *RiskAssessor) Assess(ctx context.Context, raw domain.RawRecord) (domain.AssessmentEvent, error) {
	p, err := domain.ParsePatientRecord(raw)
	if err != nil {
		return domain.AssessmentEvent{}, err
	}

	assessment := domain.AssessRisk(ctx, p.Profile(), a.provider, a.logger)
	a.metrics.Assessments.WithLabelValues(string(assessment.RiskLevel)).Inc()

	return domain.NewAssessmentEvent(p, assessment), nil
}
