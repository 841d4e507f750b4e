package domain

import (
	"fmt"
	"strings"
)

// Level is a low/medium/high risk tier.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ParseLevel accepts a case-insensitive tier name.
func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelLow:
		return LevelLow, true
	case LevelMedium:
		return LevelMedium, true
	case LevelHigh:
		return LevelHigh, true
	}
	return "", false
}

// FactorResult is the output of a single factor scorer.
type FactorResult struct {
	Score   float64  `json:"score"`
	Level   Level    `json:"level"`
	Details []string `json:"details,omitempty"`
}

// reference is one entry of a fixed lookup table.
type reference struct {
	Key         string
	Description string
}

// Reference tables. Order matters for the medication tables: the first
// substring hit wins.
var (
	highRiskPregnancyCodes = map[string]string{
		"O24.4": "Gestational diabetes mellitus",
		"O13":   "Gestational hypertension",
		"O14":   "Pre-eclampsia",
		"O15":   "Eclampsia",
		"O16":   "Unspecified maternal hypertension",
		"O26.2": "Pregnancy care for abnormal findings",
		"O26.9": "Pregnancy-related condition, unspecified",
		"O36.5": "Maternal care for poor fetal growth",
		"O09.3": "Supervision of high-risk pregnancy, multigravida",
		"O09.5": "Supervision of elderly primigravida",
	}

	highRiskComorbidityCodes = map[string]string{
		"I10":   "Essential hypertension",
		"E11.9": "Type 2 diabetes mellitus without complications",
		"E03.9": "Hypothyroidism, unspecified",
		"J45.9": "Asthma, unspecified",
		"D50.9": "Iron deficiency anemia, unspecified",
		"E66.9": "Obesity, unspecified",
	}

	// J45.9 is also listed as high risk, which is consulted first.
	mediumRiskComorbidityCodes = map[string]string{
		"E66.0":  "Obesity due to excess calories",
		"E66.01": "Morbid obesity due to excess calories",
		"E66.09": "Other obesity due to excess calories",
		"D50.0":  "Iron deficiency anemia secondary to blood loss",
		"D50.8":  "Other iron deficiency anemias",
		"J45.0":  "Predominantly allergic asthma",
		"J45.1":  "Nonallergic asthma",
		"J45.8":  "Mixed asthma",
		"J45.9":  "Unspecified asthma",
	}

	highRiskMedications = []reference{
		{"Insulin", "Diabetes management - requires close monitoring"},
		{"Labetalol", "Hypertension management - blood pressure monitoring needed"},
		{"Metformin", "Diabetes management - kidney function monitoring"},
		{"Warfarin", "Anticoagulant - bleeding risk"},
		{"Phenytoin", "Antiepileptic - teratogenic risk"},
		{"Lithium", "Mood stabilizer - teratogenic risk"},
		{"ACE inhibitors", "Hypertension - contraindicated in pregnancy"},
		{"ARBs", "Hypertension - contraindicated in pregnancy"},
	}

	mediumRiskMedications = []reference{
		{"Levothyroxine", "Thyroid hormone - requires dose adjustment"},
		{"Ferrous sulfate", "Iron supplementation - GI side effects"},
		{"Folic acid", "Prenatal vitamin - generally safe"},
		{"Calcium", "Mineral supplement - generally safe"},
		{"Vitamin D", "Vitamin supplement - generally safe"},
	}
)

// MediumRiskComorbidityOverlaps lists codes present in both comorbidity
// tables. Those medium entries never fire because high risk is checked first.
func MediumRiskComorbidityOverlaps() []string {
	var out []string
	for code := range mediumRiskComorbidityCodes {
		if _, ok := highRiskComorbidityCodes[code]; ok {
			out = append(out, code)
		}
	}
	return out
}

// DescribeCondition returns the reference description for a diagnosis code,
// or "" when the code is not in any table.
func DescribeCondition(code string) string {
	if d, ok := highRiskPregnancyCodes[code]; ok {
		return d
	}
	if d, ok := highRiskComorbidityCodes[code]; ok {
		return d
	}
	return mediumRiskComorbidityCodes[code]
}

// ClassifyScore maps a total risk score to a tier: ≤3 low, ≤5 medium, else high.
func ClassifyScore(score float64) Level {
	switch {
	case score <= 3:
		return LevelLow
	case score <= 5:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// ScoreAge: 17-20 and 31-35 are high, 21-30 medium, everything else low.
func ScoreAge(age int) FactorResult {
	switch {
	case (age >= 17 && age <= 20) || (age >= 31 && age <= 35):
		return FactorResult{Score: 2, Level: LevelHigh}
	case age >= 21 && age <= 30:
		return FactorResult{Score: 1, Level: LevelMedium}
	default:
		return FactorResult{Score: 0, Level: LevelLow}
	}
}

// ScoreTrimester scores the third trimester highest and the first as medium.
// Second and unknown (0) trimesters score nothing.
func ScoreTrimester(trimester int) FactorResult {
	switch trimester {
	case 3:
		return FactorResult{Score: 2, Level: LevelHigh}
	case 1:
		return FactorResult{Score: 1, Level: LevelMedium}
	default:
		return FactorResult{Score: 0, Level: LevelLow}
	}
}

// ScoreLocation scores current weather exposure. Sub-scores are additive.
func ScoreLocation(w WeatherSnapshot) FactorResult {
	var score float64
	var details []string
	add := func(s float64, d string) {
		score += s
		details = append(details, d)
	}

	switch {
	case w.IsHeatWave:
		add(3, "Extreme heat wave conditions")
	case w.TemperatureC > 35:
		add(2, "High temperature risk")
	case w.TemperatureC > 30:
		add(1, "Moderate temperature risk")
	}

	switch {
	case w.HeatIndexC > 40:
		add(2, "Dangerous heat index")
	case w.HeatIndexC > 35:
		add(1, "Elevated heat index")
	}

	switch {
	case w.HumidityPct > 80:
		add(1, "High humidity increases heat stress")
	case w.HumidityPct < 30:
		add(1, "Low humidity may cause dehydration")
	}

	switch {
	case w.UVIndex > 8:
		add(1, "Very high UV exposure risk")
	case w.UVIndex > 6:
		add(0.5, "High UV exposure risk")
	}

	switch {
	case w.WindSpeed > 15:
		add(0.5, "Strong winds may pose safety risk")
	case w.WindSpeed < 2 && w.TemperatureC > 30:
		add(0.5, "No wind relief from heat")
	}

	return FactorResult{Score: score, Level: levelFor(score, 4, 2), Details: details}
}

// ScoreConditions scores a normalized diagnosis set.
func ScoreConditions(set ConditionSet) FactorResult {
	var score float64
	details := []string{}

	for _, code := range set.Pregnancy {
		if _, ok := highRiskPregnancyCodes[code]; ok {
			score += 2
			details = append(details, "High-risk pregnancy: "+code)
		} else if strings.HasPrefix(code, "O") {
			score++
			details = append(details, "Pregnancy condition: "+code)
		}
	}

	for _, code := range set.Comorbidity {
		if _, ok := highRiskComorbidityCodes[code]; ok {
			score += 2
			details = append(details, "High-risk comorbidity: "+code)
		} else if _, ok := mediumRiskComorbidityCodes[code]; ok {
			score++
			details = append(details, "Medium-risk comorbidity: "+code)
		}
	}

	return FactorResult{Score: score, Level: levelFor(score, 6, 3), Details: details}
}

// ScoreMedications matches each medication case-insensitively by substring,
// high-risk table first. A medication counts at most once.
func ScoreMedications(medications []string) FactorResult {
	var score float64
	details := []string{}

	for _, med := range medications {
		if ref, ok := matchMedication(med, highRiskMedications); ok {
			score += 2
			details = append(details, fmt.Sprintf("High-risk medication: %s - %s", med, ref.Description))
			continue
		}
		if ref, ok := matchMedication(med, mediumRiskMedications); ok {
			score++
			details = append(details, fmt.Sprintf("Medium-risk medication: %s - %s", med, ref.Description))
		}
	}

	return FactorResult{Score: score, Level: levelFor(score, 4, 2), Details: details}
}

// ScoreAgeBand scores the optimal age band flag. ok is false when the flag is
// absent and the factor must be left out.
func ScoreAgeBand(inBand *bool) (result FactorResult, ok bool) {
	if inBand == nil {
		return FactorResult{}, false
	}
	if *inBand {
		return FactorResult{Score: 0, Level: LevelLow, Details: []string{"Optimal age range (17-35 years)"}}, true
	}
	return FactorResult{Score: 2, Level: LevelHigh, Details: []string{"Outside optimal age range (17-35 years)"}}, true
}

func matchMedication(med string, table []reference) (reference, bool) {
	lower := strings.ToLower(med)
	for _, ref := range table {
		if strings.Contains(lower, strings.ToLower(ref.Key)) {
			return ref, true
		}
	}
	return reference{}, false
}

func levelFor(score, high, medium float64) Level {
	switch {
	case score >= high:
		return LevelHigh
	case score >= medium:
		return LevelMedium
	default:
		return LevelLow
	}
}
