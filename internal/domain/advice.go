package domain

import (
	"context"
	"strings"
)

// DefaultConcern is sent when a health advice request names no concern.
const DefaultConcern = "General health advice"

// Advisor produces AI analyses beyond per-patient recommendations.
type Advisor interface {
	AnalyzeWeather(ctx context.Context, req WeatherAnalysisRequest) (WeatherRiskAnalysis, error)
	HealthAdvice(ctx context.Context, req HealthAdviceRequest) (HealthAdvice, error)
}

// WeatherAnalysisRequest asks for the pregnancy risks of one location's
// current weather.
type WeatherAnalysisRequest struct {
	Location     string
	Weather      WeatherSnapshot
	PatientCount int
}

// HealthAdviceRequest asks for personalized advice, optionally about one
// concern raised by the patient or clinician.
type HealthAdviceRequest struct {
	Patient         Patient
	Assessment      RiskAssessment
	SpecificConcern string
}

// Concern returns the trimmed concern, or DefaultConcern when blank.
func (r HealthAdviceRequest) Concern() string {
	if c := strings.TrimSpace(r.SpecificConcern); c != "" {
		return c
	}
	return DefaultConcern
}

// WeatherRiskAnalysis is the AI view of a location's weather for pregnant
// patients.
type WeatherRiskAnalysis struct {
	RiskLevel                string     `json:"risk_level"`
	HealthConcerns           StringList `json:"health_concerns"`
	ImmediateRecommendations StringList `json:"immediate_recommendations"`
	PreventiveMeasures       StringList `json:"preventive_measures"`
	EmergencyActions         StringList `json:"emergency_actions"`
	RawResponse              string     `json:"raw_response,omitempty"`
}

// ParseWeatherAnalysis reads a model reply like ParseRecommendations does,
// with generic heat advice as the fallback.
func ParseWeatherAnalysis(text string) WeatherRiskAnalysis {
	var a WeatherRiskAnalysis
	if extractJSON(text, &a) {
		return a
	}
	return WeatherRiskAnalysis{
		RiskLevel:                "Medium",
		HealthConcerns:           StringList{"Heat-related complications"},
		ImmediateRecommendations: StringList{"Stay hydrated and cool"},
		PreventiveMeasures:       StringList{"Avoid outdoor activities during peak heat"},
		EmergencyActions:         StringList{"Seek medical help if symptoms worsen"},
		RawResponse:              text,
	}
}

// HealthAdvice is personalized daily-care guidance for one patient.
type HealthAdvice struct {
	Recommendations        StringList `json:"recommendations"`
	LifestyleModifications StringList `json:"lifestyle_modifications"`
	WarningSigns           StringList `json:"warning_signs"`
	SeekHelpWhen           StringList `json:"seek_help_when"`
	DailyRoutine           StringList `json:"daily_routine"`
	RawResponse            string     `json:"raw_response,omitempty"`
}

// ParseHealthAdvice reads a model reply, falling back to generic guidance.
func ParseHealthAdvice(text string) HealthAdvice {
	var a HealthAdvice
	if extractJSON(text, &a) {
		return a
	}
	return HealthAdvice{
		Recommendations:        StringList{"Follow healthcare provider guidance"},
		LifestyleModifications: StringList{"Maintain healthy lifestyle"},
		WarningSigns:           StringList{"Monitor for unusual symptoms"},
		SeekHelpWhen:           StringList{"Symptoms worsen or new concerns arise"},
		DailyRoutine:           StringList{"Regular meals, hydration, and rest"},
		RawResponse:            text,
	}
}
