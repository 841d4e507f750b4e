package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/jszwec/csvutil"
)

// reportRow is one line of the assessment report.
type reportRow struct {
	PatientID      int64   `csv:"patient_id"`
	Name           string  `csv:"name"`
	Age            int     `csv:"age"`
	ZipCode        string  `csv:"zip_code"`
	PregnancyWeeks int     `csv:"pregnancy_weeks"`
	Trimester      string  `csv:"trimester"`
	RiskLevel      string  `csv:"risk_level"`
	RiskScore      float64 `csv:"risk_score"`
	HeatWave       bool    `csv:"heat_wave"`
	TemperatureC   float64 `csv:"temperature_c"`
	HeatIndexC     float64 `csv:"heat_index_c"`
	Conditions     string  `csv:"conditions"`
	Medications    string  `csv:"medications"`
}

// EncodeReport writes one CSV row per roster entry.
func EncodeReport(w io.Writer, entries []domain.RosterEntry) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(entries) == 0 {
		if err := enc.EncodeHeader(reportRow{}); err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
	}
	for _, e := range entries {
		a := e.Assessment
		row := reportRow{
			PatientID:      e.PatientID,
			Name:           e.Name,
			Age:            e.Age,
			ZipCode:        e.ZipCode,
			PregnancyWeeks: e.PregnancyWeeks,
			Trimester:      domain.TrimesterLabel(a.Trimester),
			RiskLevel:      string(a.RiskLevel),
			RiskScore:      a.RiskScore,
			HeatWave:       a.HeatWaveRisk,
			TemperatureC:   a.WeatherSnapshot.TemperatureC,
			HeatIndexC:     roundTenth(a.WeatherSnapshot.HeatIndexC),
			Conditions:     strings.Join(e.Conditions, "; "),
			Medications:    strings.Join(e.Medications, "; "),
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("write report row for patient %d: %w", e.PatientID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
