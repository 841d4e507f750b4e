package domain

import (
	"fmt"
	"strings"
	"time"
)

// Profile bounds enforced by Validate at ingestion boundaries.
const (
	MaxPlausibleAge   = 70
	MaxGestationWeeks = 45
)

// Optimal maternal age band, inclusive.
const (
	OptimalAgeMin = 17
	OptimalAgeMax = 35
)

// PatientProfile is the read-only scoring input. Scorers never mutate it.
type PatientProfile struct {
	Age                      int      `json:"age"`
	GestationalWeeks         int      `json:"gestational_weeks"`
	PregnancyConditionCode   string   `json:"pregnancy_icd10,omitempty"`
	ComorbidityConditionCode string   `json:"comorbidity_icd10,omitempty"`
	LegacyConditionCodes     []string `json:"conditions_icd10,omitempty"`
	Medications              []string `json:"medications,omitempty"`
	LocationKey              string   `json:"zip_code"`
	InOptimalAgeBand         *bool    `json:"between_17_35,omitempty"`
}

// Validate rejects profiles outside physically plausible ranges.
func (p PatientProfile) Validate() error {
	switch {
	case p.Age < 0:
		return fmt.Errorf("%w: age %d is negative", ErrInvalidProfile, p.Age)
	case p.Age > MaxPlausibleAge:
		return fmt.Errorf("%w: age %d exceeds %d", ErrInvalidProfile, p.Age, MaxPlausibleAge)
	case p.GestationalWeeks < 0:
		return fmt.Errorf("%w: gestational weeks %d is negative", ErrInvalidProfile, p.GestationalWeeks)
	case p.GestationalWeeks > MaxGestationWeeks:
		return fmt.Errorf("%w: gestational weeks %d exceeds %d", ErrInvalidProfile, p.GestationalWeeks, MaxGestationWeeks)
	}
	return nil
}

// Trimester derives the pregnancy stage from gestational weeks.
// Returns 0 when weeks are zero or absent.
func Trimester(weeks int) int {
	switch {
	case weeks <= 0:
		return 0
	case weeks <= 12:
		return 1
	case weeks <= 24:
		return 2
	default:
		return 3
	}
}

// ConditionSet is the structured diagnosis shape the conditions scorer sees.
type ConditionSet struct {
	Pregnancy   []string `json:"pregnancy_codes"`
	Comorbidity []string `json:"comorbidity_codes"`
}

// NormalizeConditions merges the structured codes with any legacy flat list,
// splitting legacy entries by the "O" prefix convention for pregnancy codes.
func NormalizeConditions(p PatientProfile) ConditionSet {
	set := ConditionSet{Pregnancy: []string{}, Comorbidity: []string{}}
	if code := strings.TrimSpace(p.PregnancyConditionCode); code != "" {
		set.Pregnancy = append(set.Pregnancy, code)
	}
	if code := strings.TrimSpace(p.ComorbidityConditionCode); code != "" {
		set.Comorbidity = append(set.Comorbidity, code)
	}
	for _, code := range p.LegacyConditionCodes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if strings.HasPrefix(code, "O") {
			set.Pregnancy = append(set.Pregnancy, code)
		} else {
			set.Comorbidity = append(set.Comorbidity, code)
		}
	}
	return set
}

// Patient is a registered patient record. Profile() projects it onto the
// scoring input.
type Patient struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"name"`
	Age                    int       `json:"age"`
	PregnancyICD10         string    `json:"pregnancy_icd10"`
	PregnancyDescription   string    `json:"pregnancy_description"`
	ComorbidityICD10       string    `json:"comorbidity_icd10"`
	ComorbidityDescription string    `json:"comorbidity_description"`
	WeeksPregnant          int       `json:"weeks_pregnant"`
	Address                string    `json:"address"`
	ZipCode                string    `json:"zip_code"`
	PhoneNumber            string    `json:"phone_number"`
	Email                  string    `json:"email"`
	Medications            string    `json:"medications"`
	MedicationNotes        string    `json:"medication_notes"`
	NDCCodes               string    `json:"ndc_codes"`
	Between17And35         *bool     `json:"between_17_35,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// MedicationList splits the ";"-separated medication column.
func (p Patient) MedicationList() []string {
	return splitList(p.Medications)
}

// NDCCodeList splits the ";"-separated NDC column.
func (p Patient) NDCCodeList() []string {
	return splitList(p.NDCCodes)
}

// Conditions renders the diagnoses as "CODE: description" display strings.
func (p Patient) Conditions() []string {
	var out []string
	if p.PregnancyICD10 != "" {
		out = append(out, fmt.Sprintf("%s: %s", p.PregnancyICD10, p.PregnancyDescription))
	}
	if p.ComorbidityICD10 != "" {
		out = append(out, fmt.Sprintf("%s: %s", p.ComorbidityICD10, p.ComorbidityDescription))
	}
	return out
}

// WithDescriptions fills blank diagnosis descriptions from the reference
// code tables. Descriptions already present are kept.
func (p Patient) WithDescriptions() Patient {
	if p.PregnancyDescription == "" && p.PregnancyICD10 != "" {
		p.PregnancyDescription = DescribeCondition(p.PregnancyICD10)
	}
	if p.ComorbidityDescription == "" && p.ComorbidityICD10 != "" {
		p.ComorbidityDescription = DescribeCondition(p.ComorbidityICD10)
	}
	return p
}

// Profile returns the scoring view of the patient.
func (p Patient) Profile() PatientProfile {
	return PatientProfile{
		Age:                      p.Age,
		GestationalWeeks:         p.WeeksPregnant,
		PregnancyConditionCode:   p.PregnancyICD10,
		ComorbidityConditionCode: p.ComorbidityICD10,
		Medications:              p.MedicationList(),
		LocationKey:              p.ZipCode,
		InOptimalAgeBand:         p.Between17And35,
	}
}

// Validate checks the record fields that feed scoring.
func (p Patient) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	return p.Profile().Validate()
}

// AgeBandFlag computes the optimal-age flag for callers that want to populate
// Between17And35 from the age.
func AgeBandFlag(age int) *bool {
	in := age >= OptimalAgeMin && age <= OptimalAgeMax
	return &in
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
