package domain

import (
	"context"
	"time"
)

// PatientRepository is the patient registry port.
type PatientRepository interface {
	CreatePatient(ctx context.Context, p Patient) (Patient, error)
	UpdatePatient(ctx context.Context, p Patient) (Patient, error)
	GetPatient(ctx context.Context, id int64) (Patient, error)
	// ListPatients returns all patients, or only those in zip when it is non-empty.
	ListPatients(ctx context.Context, zip string) ([]Patient, error)
	DeletePatient(ctx context.Context, id int64) error
}

// HistoryStore persists assessments computed for registered patients.
type HistoryStore interface {
	SaveAssessment(ctx context.Context, rec AssessmentRecord) (AssessmentRecord, error)
	AssessmentHistory(ctx context.Context, patientID int64) ([]AssessmentRecord, error)
}

// AssessmentRecord is one history row.
type AssessmentRecord struct {
	ID           int64          `json:"id"`
	PatientID    int64          `json:"patient_id"`
	RiskLevel    Level          `json:"risk_level"`
	RiskScore    float64        `json:"risk_score"`
	HeatWaveRisk bool           `json:"heat_wave_risk"`
	Assessment   RiskAssessment `json:"assessment"`
	AssessedAt   time.Time      `json:"assessed_at"`
}

// NewAssessmentRecord builds the history row for an assessment.
func NewAssessmentRecord(patientID int64, a RiskAssessment) AssessmentRecord {
	return AssessmentRecord{
		PatientID:    patientID,
		RiskLevel:    a.RiskLevel,
		RiskScore:    a.RiskScore,
		HeatWaveRisk: a.HeatWaveRisk,
		Assessment:   a,
		AssessedAt:   a.AssessedAt,
	}
}
