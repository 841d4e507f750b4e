package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// ComprehensiveUnavailable is reported when only the basic assessment could be built.
const ComprehensiveUnavailable = "Comprehensive assessment unavailable"

// WeatherRisk is the weather-only tier used by the comprehensive view.
type WeatherRisk struct {
	Level Level `json:"level"`
	Score int   `json:"score"`
}

// WeatherAnalysis describes the weather half of a comprehensive assessment.
type WeatherAnalysis struct {
	CurrentConditions WeatherSnapshot `json:"current_conditions"`
	RiskLevel         Level           `json:"risk_level"`
	Recommendations   []string        `json:"recommendations"`
}

// OverallAssessment is the triage summary of a comprehensive assessment.
type OverallAssessment struct {
	RiskLevel         Level    `json:"risk_level"`
	RiskScore         float64  `json:"risk_score"`
	PriorityLevel     Level    `json:"priority_level"`
	ImmediateConcerns []string `json:"immediate_concerns"`
	MonitoringNeeds   []string `json:"monitoring_needs"`
}

// ComprehensiveAssessment wraps a RiskAssessment with recommendations,
// monitoring needs and a priority. When Error is set only BasicRisk is filled.
type ComprehensiveAssessment struct {
	PatientID       int64              `json:"patient_id"`
	PatientName     string             `json:"patient_name"`
	BasicRisk       RiskAssessment     `json:"basic_risk"`
	WeatherAnalysis *WeatherAnalysis   `json:"weather_analysis,omitempty"`
	Overall         *OverallAssessment `json:"overall_assessment,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// PriorityLevel ranks how urgently an assessment needs medical attention.
func PriorityLevel(a RiskAssessment) Level {
	switch {
	case a.RiskLevel == LevelHigh || a.HeatWaveRisk || a.RiskScore >= 6:
		return LevelHigh
	case a.RiskLevel == LevelMedium || a.RiskScore >= 3:
		return LevelMedium
	default:
		return LevelLow
	}
}

// BuildComprehensiveAssessment assesses a patient and layers on weather
// recommendations and monitoring needs. It never fails; if the extra analysis
// cannot be built the basic assessment is returned with Error set.
func BuildComprehensiveAssessment(ctx context.Context, p Patient, provider WeatherProvider, logger *slog.Logger) ComprehensiveAssessment {
	basic := AssessRisk(ctx, p.Profile(), provider, logger)

	result, err := comprehensive(p, basic)
	if err != nil {
		logger.Error("comprehensive assessment failed",
			"patient_id", p.ID,
			"error", err,
		)
		return ComprehensiveAssessment{
			PatientID:   p.ID,
			PatientName: p.Name,
			BasicRisk:   basic,
			Error:       ComprehensiveUnavailable,
		}
	}
	return result
}

func comprehensive(p Patient, basic RiskAssessment) (out ComprehensiveAssessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build comprehensive assessment: %v", r)
		}
	}()

	weather := basic.WeatherSnapshot
	risk, weatherRecs, concerns := weatherGuidance(weather)
	monitoring, general := monitoringGuidance(p)

	return ComprehensiveAssessment{
		PatientID:   p.ID,
		PatientName: p.Name,
		BasicRisk:   basic,
		WeatherAnalysis: &WeatherAnalysis{
			CurrentConditions: weather,
			RiskLevel:         risk.Level,
			Recommendations:   weatherRecs,
		},
		Overall: &OverallAssessment{
			RiskLevel:         basic.RiskLevel,
			RiskScore:         basic.RiskScore,
			PriorityLevel:     PriorityLevel(basic),
			ImmediateConcerns: concerns,
			MonitoringNeeds:   monitoring,
		},
		Recommendations: general,
	}, nil
}

// weatherGuidance derives the weather tier, recommendations and immediate
// concerns. Only the strongest temperature tier applies.
func weatherGuidance(w WeatherSnapshot) (WeatherRisk, []string, []string) {
	risk := WeatherRisk{Level: LevelLow}
	recs := []string{}
	concerns := []string{}

	switch {
	case w.IsHeatWave:
		risk = WeatherRisk{Level: LevelHigh, Score: 3}
		concerns = append(concerns, "Extreme heat wave conditions")
		recs = append(recs,
			"Stay indoors with air conditioning",
			"Drink plenty of water",
			"Avoid outdoor activities",
			"Monitor for heat exhaustion symptoms",
		)
	case w.TemperatureC > 35:
		risk = WeatherRisk{Level: LevelHigh, Score: 2}
		concerns = append(concerns, "High temperature risk")
		recs = append(recs,
			"Limit outdoor exposure",
			"Stay hydrated",
			"Wear light, loose clothing",
		)
	case w.TemperatureC > 30:
		risk = WeatherRisk{Level: LevelMedium, Score: 1}
		recs = append(recs,
			"Take breaks in cool areas",
			"Stay hydrated",
			"Monitor for overheating",
		)
	}

	switch {
	case w.HumidityPct > 80:
		recs = append(recs, "High humidity increases heat stress - take extra precautions")
	case w.HumidityPct < 30:
		recs = append(recs, "Low humidity - ensure adequate hydration")
	}

	return risk, recs, concerns
}

func monitoringGuidance(p Patient) (monitoring, general []string) {
	monitoring = []string{}
	general = []string{}

	switch weeks := p.WeeksPregnant; {
	case weeks > 28:
		monitoring = append(monitoring, "Increased monitoring due to third trimester")
		general = append(general, "More frequent prenatal check-ups recommended")
	case weeks > 0 && weeks < 12:
		monitoring = append(monitoring, "Early pregnancy monitoring important")
		general = append(general, "Avoid extreme temperatures during early pregnancy")
	}

	if p.Age < 18 || p.Age > 35 {
		monitoring = append(monitoring, "Age-related risk factors require closer monitoring")
		general = append(general, "Consider additional prenatal care due to age")
	}

	if p.PregnancyICD10 != "" || p.ComorbidityICD10 != "" {
		monitoring = append(monitoring, "Medical conditions require specialized monitoring")
		general = append(general, "Follow medical provider's specific instructions")
	}

	return monitoring, general
}
