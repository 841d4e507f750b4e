package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RawRecord is an inbound patient message before decoding.
type RawRecord struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParsePatientRecord decodes a JSON patient message and validates it.
func ParsePatientRecord(raw RawRecord) (Patient, error) {
	var p Patient
	if err := json.Unmarshal(raw.Value, &p); err != nil {
		return Patient{}, fmt.Errorf("%w: decode patient record: %w", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return Patient{}, err
	}
	return p, nil
}

// AssessmentEvent is the outbound message for one assessed patient.
type AssessmentEvent struct {
	PatientID   int64          `json:"patient_id"`
	PatientName string         `json:"patient_name"`
	ZipCode     string         `json:"zip_code"`
	Priority    Level          `json:"priority_level"`
	Assessment  RiskAssessment `json:"assessment"`
}

// NewAssessmentEvent pairs a patient with its assessment.
func NewAssessmentEvent(p Patient, a RiskAssessment) AssessmentEvent {
	return AssessmentEvent{
		PatientID:   p.ID,
		PatientName: p.Name,
		ZipCode:     p.ZipCode,
		Priority:    PriorityLevel(a),
		Assessment:  a,
	}
}

// Key is the partition key: the patient id, or the zip code for unregistered
// patients.
func (e AssessmentEvent) Key() string {
	if e.PatientID == 0 {
		return e.ZipCode
	}
	return strconv.FormatInt(e.PatientID, 10)
}
