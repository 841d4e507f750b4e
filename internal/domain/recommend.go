package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// AIUnavailable is reported alongside fallback recommendations.
const AIUnavailable = "AI suggestions unavailable"

// RecommendationRequest carries everything a Recommender may put in a prompt.
type RecommendationRequest struct {
	Patient    Patient
	Assessment RiskAssessment
}

// CacheKey identifies requests that would produce equivalent advice.
func (r RecommendationRequest) CacheKey() string {
	return fmt.Sprintf("%d|%s|%.1f|%t",
		r.Patient.ID, r.Assessment.RiskLevel, r.Assessment.RiskScore, r.Assessment.HeatWaveRisk)
}

// Recommender produces AI-generated care recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req RecommendationRequest) (AIRecommendations, error)
}

// StringList decodes either a JSON array of strings or a single string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// AIRecommendations is the structured advice returned by a Recommender.
type AIRecommendations struct {
	ImmediateActions       StringList `json:"immediate_actions"`
	MedicalRecommendations StringList `json:"medical_recommendations"`
	LifestyleChanges       StringList `json:"lifestyle_changes"`
	MonitoringGuidelines   StringList `json:"monitoring_guidelines"`
	EmergencySigns         StringList `json:"emergency_signs"`
	WeatherPrecautions     StringList `json:"weather_precautions"`
	FollowUpSchedule       StringList `json:"follow_up_schedule"`
	PriorityLevel          string     `json:"priority_level"`
	RawResponse            string     `json:"raw_response,omitempty"`
}

// ParseRecommendations extracts the JSON object between the first '{' and the
// last '}' of a model reply. Replies without a usable object yield generic
// advice with the raw text attached.
func ParseRecommendations(text string) AIRecommendations {
	var rec AIRecommendations
	if extractJSON(text, &rec) {
		return rec
	}
	return defaultRecommendations(text)
}

// extractJSON decodes the text between the first '{' and the last '}' into
// out and reports whether that succeeded.
func extractJSON(text string, out any) bool {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(text[start:end+1]), out) == nil
}

func defaultRecommendations(raw string) AIRecommendations {
	return AIRecommendations{
		ImmediateActions:       StringList{"Review with healthcare provider"},
		MedicalRecommendations: StringList{"Regular prenatal care"},
		LifestyleChanges:       StringList{"Maintain healthy diet and exercise"},
		MonitoringGuidelines:   StringList{"Regular check-ups as scheduled"},
		EmergencySigns:         StringList{"Severe pain, bleeding, or unusual symptoms"},
		WeatherPrecautions:     StringList{"Stay hydrated and avoid extreme temperatures"},
		FollowUpSchedule:       StringList{"As recommended by healthcare provider"},
		PriorityLevel:          "Medium",
		RawResponse:            raw,
	}
}

// FallbackRecommendations is the static advice used when no Recommender is
// available: four lines per risk level, plus four more during a heat wave.
func FallbackRecommendations(level Level, heatWave bool) []string {
	var recs []string
	switch level {
	case LevelHigh:
		recs = []string{
			"Immediate medical consultation recommended",
			"Monitor vital signs closely",
			"Avoid extreme weather conditions",
			"Ensure emergency contact is available",
		}
	case LevelMedium:
		recs = []string{
			"Regular medical check-ups recommended",
			"Monitor symptoms closely",
			"Follow prescribed medication schedule",
			"Maintain healthy lifestyle",
		}
	default:
		recs = []string{
			"Continue regular prenatal care",
			"Maintain healthy diet and exercise",
			"Stay hydrated",
			"Regular medical check-ups",
		}
	}
	if heatWave {
		recs = append(recs,
			"Stay indoors during peak heat hours",
			"Ensure adequate hydration",
			"Use air conditioning if available",
			"Wear light, loose clothing",
		)
	}
	return recs
}

// AISuggestions is either AI advice or the fallback list with an error marker.
type AISuggestions struct {
	*AIRecommendations
	Error                   string   `json:"error,omitempty"`
	FallbackRecommendations []string `json:"fallback_recommendations,omitempty"`
}

// SuggestFor asks the recommender for advice and degrades to the static
// fallback when it is nil or fails.
func SuggestFor(ctx context.Context, r Recommender, req RecommendationRequest) (AISuggestions, error) {
	if r == nil {
		return fallbackSuggestions(req.Assessment), nil
	}
	rec, err := r.Recommend(ctx, req)
	if err != nil {
		return fallbackSuggestions(req.Assessment), err
	}
	return AISuggestions{AIRecommendations: &rec}, nil
}

func fallbackSuggestions(a RiskAssessment) AISuggestions {
	return AISuggestions{
		Error:                   AIUnavailable,
		FallbackRecommendations: FallbackRecommendations(a.RiskLevel, a.HeatWaveRisk),
	}
}
