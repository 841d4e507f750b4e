package domain

import (
	"context"
	"log/slog"
	"time"
)

// LocationConditions is the weather one zip code's patients were scored
// against.
type LocationConditions struct {
	TemperatureC    float64 `json:"temperature"`
	FeelsLikeC      float64 `json:"feels_like"`
	HumidityPct     float64 `json:"humidity"`
	HeatIndexC      float64 `json:"heat_index"`
	Description     string  `json:"description"`
	IsHeatWave      bool    `json:"is_heat_wave"`
	ExtremeHeat     bool    `json:"extreme_heat"`
	WeatherDegraded bool    `json:"weather_degraded,omitempty"`
	PatientCount    int     `json:"patient_count"`
}

// AtRiskPatient is a medium or high tier patient in an environment view.
type AtRiskPatient struct {
	PatientID    int64       `json:"patient_id"`
	Name         string      `json:"name"`
	Age          int         `json:"age"`
	ZipCode      string      `json:"zip_code"`
	RiskLevel    Level       `json:"risk_level"`
	RiskScore    float64     `json:"risk_score"`
	HeatWaveRisk bool        `json:"heat_wave_risk"`
	RiskFactors  RiskFactors `json:"risk_factors"`
}

// EnvironmentMetrics summarizes weather exposure across a patient population,
// grouped by zip code.
type EnvironmentMetrics struct {
	Location              string                        `json:"location,omitempty"`
	TotalPatients         int                           `json:"total_patients"`
	PatientsAtRisk        int                           `json:"patients_at_risk"`
	ExtremeHeatConditions int                           `json:"extreme_heat_conditions"`
	RiskDistribution      LevelCounts                   `json:"risk_distribution"`
	WeatherConditions     map[string]LocationConditions `json:"weather_conditions"`
	AtRiskPatients        []AtRiskPatient               `json:"at_risk_patients"`
	Timestamp             time.Time                     `json:"timestamp"`
}

// IsExtremeHeat reports a heat wave or an air temperature above the heat wave
// threshold.
func IsExtremeHeat(w WeatherSnapshot) bool {
	return w.IsHeatWave || w.TemperatureC > HeatWaveTempC
}

// BuildEnvironmentMetrics assesses every patient and aggregates the weather
// each was scored against. ExtremeHeatConditions counts patients, not zip
// codes. A non-empty location keeps only that zip code's patients.
func BuildEnvironmentMetrics(ctx context.Context, patients []Patient, location string, provider WeatherProvider, logger *slog.Logger) (EnvironmentMetrics, []RosterEntry) {
	m := EnvironmentMetrics{
		Location:          location,
		WeatherConditions: map[string]LocationConditions{},
		AtRiskPatients:    []AtRiskPatient{},
		Timestamp:         Now(),
	}
	entries := RiskRoster(ctx, patients, RosterFilter{Location: location}, provider, logger)
	m.TotalPatients = len(entries)

	for _, e := range entries {
		a := e.Assessment
		switch a.RiskLevel {
		case LevelHigh:
			m.RiskDistribution.High++
		case LevelMedium:
			m.RiskDistribution.Medium++
		default:
			m.RiskDistribution.Low++
		}

		extreme := IsExtremeHeat(a.WeatherSnapshot)
		if extreme {
			m.ExtremeHeatConditions++
		}

		cond, seen := m.WeatherConditions[e.ZipCode]
		if !seen {
			w := a.WeatherSnapshot
			cond = LocationConditions{
				TemperatureC:    w.TemperatureC,
				FeelsLikeC:      w.FeelsLikeC,
				HumidityPct:     w.HumidityPct,
				HeatIndexC:      w.HeatIndexC,
				Description:     w.Description,
				IsHeatWave:      w.IsHeatWave,
				ExtremeHeat:     extreme,
				WeatherDegraded: a.WeatherDegraded,
			}
		}
		cond.PatientCount++
		m.WeatherConditions[e.ZipCode] = cond

		if a.RiskLevel == LevelMedium || a.RiskLevel == LevelHigh {
			m.AtRiskPatients = append(m.AtRiskPatients, AtRiskPatient{
				PatientID:    e.PatientID,
				Name:         e.Name,
				Age:          e.Age,
				ZipCode:      e.ZipCode,
				RiskLevel:    a.RiskLevel,
				RiskScore:    a.RiskScore,
				HeatWaveRisk: a.HeatWaveRisk,
				RiskFactors:  a.Factors,
			})
		}
	}
	m.PatientsAtRisk = len(m.AtRiskPatients)
	return m, entries
}
