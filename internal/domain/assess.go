package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Factor names used as keys in RiskAssessment.Breakdown.
const (
	FactorAge         = "age"
	FactorTrimester   = "trimester"
	FactorLocation    = "location"
	FactorConditions  = "conditions"
	FactorMedications = "medications"
	FactorAgeGroup    = "age_group"
)

// weatherUnavailableDetail marks a location factor scored without live weather.
const weatherUnavailableDetail = "Weather data unavailable"

// RiskFactors is the per-factor level view of an assessment.
type RiskFactors struct {
	AgeRisk            Level    `json:"age_risk"`
	TrimesterRisk      Level    `json:"trimester_risk"`
	LocationRisk       Level    `json:"location_risk"`
	LocationDetails    []string `json:"location_details"`
	HeatWave           bool     `json:"heat_wave"`
	ConditionsRisk     Level    `json:"conditions_risk"`
	ConditionsDetails  []string `json:"conditions_details"`
	MedicationsRisk    Level    `json:"medications_risk"`
	MedicationsDetails []string `json:"medications_details"`
	AgeGroupRisk       Level    `json:"age_group_risk,omitempty"`
}

// RiskAssessment is the output of AssessRisk.
type RiskAssessment struct {
	RiskLevel       Level                   `json:"risk_level"`
	RiskScore       float64                 `json:"risk_score"`
	Factors         RiskFactors             `json:"factors"`
	Breakdown       map[string]FactorResult `json:"breakdown"`
	HeatWaveRisk    bool                    `json:"heat_wave_risk"`
	WeatherSnapshot WeatherSnapshot         `json:"weather_data"`
	WeatherDegraded bool                    `json:"weather_degraded,omitempty"`
	Trimester       int                     `json:"trimester"`
	AssessedAt      time.Time               `json:"assessed_at"`
}

// AssessRisk scores a profile against the current weather for its location.
// It never fails: a weather error scores the location factor as medium (+1)
// and records the offline default snapshot. A nil provider is treated as
// offline.
func AssessRisk(ctx context.Context, profile PatientProfile, provider WeatherProvider, logger *slog.Logger) RiskAssessment {
	if provider == nil {
		provider = OfflineProvider{}
	}

	trimester := Trimester(profile.GestationalWeeks)
	breakdown := make(map[string]FactorResult, 6)

	breakdown[FactorAge] = ScoreAge(profile.Age)
	breakdown[FactorTrimester] = ScoreTrimester(trimester)

	snapshot, err := fetchSnapshot(ctx, provider, profile.LocationKey)
	degraded := err != nil
	if degraded {
		logger.Warn("weather unavailable, scoring location as medium",
			"location", profile.LocationKey,
			"error", err,
		)
		snapshot = DefaultSnapshot()
		breakdown[FactorLocation] = FactorResult{
			Score:   1,
			Level:   LevelMedium,
			Details: []string{weatherUnavailableDetail},
		}
	} else {
		breakdown[FactorLocation] = ScoreLocation(snapshot)
	}

	breakdown[FactorConditions] = ScoreConditions(NormalizeConditions(profile))
	breakdown[FactorMedications] = ScoreMedications(profile.Medications)

	ageGroup, hasAgeGroup := ScoreAgeBand(profile.InOptimalAgeBand)
	if hasAgeGroup {
		breakdown[FactorAgeGroup] = ageGroup
	}

	var total float64
	for _, r := range breakdown {
		total += r.Score
	}

	heatWave := !degraded && snapshot.IsHeatWave
	factors := RiskFactors{
		AgeRisk:            breakdown[FactorAge].Level,
		TrimesterRisk:      breakdown[FactorTrimester].Level,
		LocationRisk:       breakdown[FactorLocation].Level,
		LocationDetails:    nonNil(breakdown[FactorLocation].Details),
		HeatWave:           heatWave,
		ConditionsRisk:     breakdown[FactorConditions].Level,
		ConditionsDetails:  nonNil(breakdown[FactorConditions].Details),
		MedicationsRisk:    breakdown[FactorMedications].Level,
		MedicationsDetails: nonNil(breakdown[FactorMedications].Details),
	}
	if hasAgeGroup {
		factors.AgeGroupRisk = ageGroup.Level
	}

	return RiskAssessment{
		RiskLevel:       ClassifyScore(total),
		RiskScore:       total,
		Factors:         factors,
		Breakdown:       breakdown,
		HeatWaveRisk:    heatWave,
		WeatherSnapshot: snapshot,
		WeatherDegraded: degraded,
		Trimester:       trimester,
		AssessedAt:      Now(),
	}
}

// fetchSnapshot is the single weather call of an assessment. A panicking
// provider is reported as an error so AssessRisk stays total.
func fetchSnapshot(ctx context.Context, provider WeatherProvider, key string) (snap WeatherSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: weather provider panic: %v", ErrExternalAPI, r)
		}
	}()
	return provider.GetSnapshot(ctx, key)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
