package llm

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
)

const systemPrompt = "You are a clinical decision-support assistant for obstetric care teams. " +
	"Answer with a single JSON object and no other text."

// buildPrompt renders the patient context and assessment as the user message.
func buildPrompt(req domain.RecommendationRequest) string {
	p := req.Patient
	a := req.Assessment
	w := a.WeatherSnapshot

	var b strings.Builder
	b.WriteString("Analyze this pregnant patient's risk profile and provide recommendations.\n\n")

	b.WriteString("Patient Profile:\n")
	fmt.Fprintf(&b, "- Age: %d years\n", p.Age)
	fmt.Fprintf(&b, "- Pregnancy: %d weeks\n", p.WeeksPregnant)
	fmt.Fprintf(&b, "- Location: %s\n", p.ZipCode)
	fmt.Fprintf(&b, "- Current Risk Level: %s\n", a.RiskLevel)
	fmt.Fprintf(&b, "- Risk Score: %.1f\n\n", a.RiskScore)

	b.WriteString("Medical Conditions:\n")
	fmt.Fprintf(&b, "- Pregnancy ICD10: %s\n", orNone(p.PregnancyICD10))
	fmt.Fprintf(&b, "- Comorbidity ICD10: %s\n", orNone(p.ComorbidityICD10))
	fmt.Fprintf(&b, "- Other conditions: %s\n\n", joinOrNone(p.Conditions()))

	fmt.Fprintf(&b, "Medications:\n%s\n\n", joinOrNone(p.MedicationList()))

	b.WriteString("Weather Conditions:\n")
	fmt.Fprintf(&b, "- Temperature: %.1f°C\n", w.TemperatureC)
	fmt.Fprintf(&b, "- Heat wave risk: %t\n", a.HeatWaveRisk)
	fmt.Fprintf(&b, "- Humidity: %.0f%%\n\n", w.HumidityPct)

	b.WriteString("Risk Factors:\n")
	f := a.Factors
	fmt.Fprintf(&b, "- age_risk: %s\n", f.AgeRisk)
	fmt.Fprintf(&b, "- trimester_risk: %s\n", f.TrimesterRisk)
	fmt.Fprintf(&b, "- location_risk: %s\n", f.LocationRisk)
	fmt.Fprintf(&b, "- conditions_risk: %s\n", f.ConditionsRisk)
	fmt.Fprintf(&b, "- medications_risk: %s\n", f.MedicationsRisk)
	if f.AgeGroupRisk != "" {
		fmt.Fprintf(&b, "- age_group_risk: %s\n", f.AgeGroupRisk)
	}

	b.WriteString(`
Provide recommendations in JSON format with these keys:
- immediate_actions: list of immediate actions needed
- medical_recommendations: medical care recommendations
- lifestyle_changes: lifestyle modifications
- monitoring_guidelines: what to monitor and how often
- emergency_signs: warning signs requiring immediate medical attention
- weather_precautions: weather-specific precautions
- follow_up_schedule: recommended follow-up schedule
- priority_level: High/Medium/Low priority for medical attention
`)
	return b.String()
}

// buildWeatherPrompt asks for a population-level reading of one location's
// weather.
func buildWeatherPrompt(req domain.WeatherAnalysisRequest) string {
	w := req.Weather

	var b strings.Builder
	b.WriteString("Analyze the following weather conditions for pregnant women health risks.\n\n")
	fmt.Fprintf(&b, "Location: %s\n", orNone(req.Location))
	fmt.Fprintf(&b, "Temperature: %.1f°C\n", w.TemperatureC)
	fmt.Fprintf(&b, "Feels like: %.1f°C\n", w.FeelsLikeC)
	fmt.Fprintf(&b, "Humidity: %.0f%%\n", w.HumidityPct)
	fmt.Fprintf(&b, "Heat Index: %.1f°C\n", w.HeatIndexC)
	fmt.Fprintf(&b, "Is Heat Wave: %t\n", w.IsHeatWave)
	fmt.Fprintf(&b, "Description: %s\n", orNone(w.Description))
	fmt.Fprintf(&b, "Affected Patients: %d\n", req.PatientCount)

	b.WriteString(`
Provide the analysis in JSON format with these keys:
- risk_level: Low/Medium/High
- health_concerns: specific health concerns for pregnant women
- immediate_recommendations: immediate recommendations
- preventive_measures: preventive measures
- emergency_actions: emergency actions if needed
`)
	return b.String()
}

// buildAdvicePrompt renders the patient context and the concern to address.
func buildAdvicePrompt(req domain.HealthAdviceRequest) string {
	p := req.Patient
	a := req.Assessment
	w := a.WeatherSnapshot

	var b strings.Builder
	b.WriteString("Provide personalized health advice for this pregnant patient.\n\n")

	b.WriteString("Patient Information:\n")
	fmt.Fprintf(&b, "- Age: %d\n", p.Age)
	fmt.Fprintf(&b, "- Pregnancy weeks: %d\n", p.WeeksPregnant)
	fmt.Fprintf(&b, "- Risk level: %s\n", a.RiskLevel)
	fmt.Fprintf(&b, "- Risk score: %.1f\n", a.RiskScore)
	fmt.Fprintf(&b, "- Conditions: %s\n", joinOrNone(p.Conditions()))
	fmt.Fprintf(&b, "- Medications: %s\n", joinOrNone(p.MedicationList()))
	fmt.Fprintf(&b, "- Weather conditions: %.1f°C, %.0f%% humidity, heat wave %t\n\n",
		w.TemperatureC, w.HumidityPct, a.HeatWaveRisk)

	fmt.Fprintf(&b, "Specific concern: %s\n", req.Concern())

	b.WriteString(`
Provide the advice in JSON format with these keys:
- recommendations: personalized recommendations
- lifestyle_modifications: lifestyle modifications
- warning_signs: warning signs to watch for
- seek_help_when: when to seek medical help
- daily_routine: daily care routine suggestions
`)
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
