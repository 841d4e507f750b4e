package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityLevel(t *testing.T) {
	tests := []struct {
		name string
		a    RiskAssessment
		want Level
	}{
		{"high tier", RiskAssessment{RiskLevel: LevelHigh, RiskScore: 7}, LevelHigh},
		{"heat wave on low tier", RiskAssessment{RiskLevel: LevelLow, RiskScore: 1, HeatWaveRisk: true}, LevelHigh},
		{"medium tier", RiskAssessment{RiskLevel: LevelMedium, RiskScore: 4}, LevelMedium},
		{"low tier at three", RiskAssessment{RiskLevel: LevelLow, RiskScore: 3}, LevelMedium},
		{"low tier", RiskAssessment{RiskLevel: LevelLow, RiskScore: 2.5}, LevelLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityLevel(tt.a))
		})
	}
}

func TestBuildComprehensiveAssessment_HeatWave(t *testing.T) {
	provider := &stubProvider{snap: WeatherSnapshot{TemperatureC: 38, HumidityPct: 85, HeatIndexC: HeatIndex(38, 85), IsHeatWave: true}}
	p := Patient{
		ID:             7,
		Name:           "Ana Ruiz",
		Age:            37,
		WeeksPregnant:  32,
		PregnancyICD10: "O13",
		ZipCode:        "85001",
	}

	c := BuildComprehensiveAssessment(context.Background(), p, provider, discardLogger())

	assert.Empty(t, c.Error)
	assert.Equal(t, int64(7), c.PatientID)
	assert.Equal(t, "Ana Ruiz", c.PatientName)
	require.NotNil(t, c.WeatherAnalysis)
	require.NotNil(t, c.Overall)

	assert.Equal(t, LevelHigh, c.WeatherAnalysis.RiskLevel)
	assert.Equal(t, []string{
		"Stay indoors with air conditioning",
		"Drink plenty of water",
		"Avoid outdoor activities",
		"Monitor for heat exhaustion symptoms",
		"High humidity increases heat stress - take extra precautions",
	}, c.WeatherAnalysis.Recommendations)

	assert.Equal(t, LevelHigh, c.Overall.PriorityLevel)
	assert.Equal(t, []string{"Extreme heat wave conditions"}, c.Overall.ImmediateConcerns)
	assert.Equal(t, []string{
		"Increased monitoring due to third trimester",
		"Age-related risk factors require closer monitoring",
		"Medical conditions require specialized monitoring",
	}, c.Overall.MonitoringNeeds)
	assert.Equal(t, []string{
		"More frequent prenatal check-ups recommended",
		"Consider additional prenatal care due to age",
		"Follow medical provider's specific instructions",
	}, c.Recommendations)
	assert.Equal(t, c.BasicRisk.RiskScore, c.Overall.RiskScore)
}

func TestBuildComprehensiveAssessment_TemperatureTiers(t *testing.T) {
	tests := []struct {
		name      string
		snap      WeatherSnapshot
		wantLevel Level
		wantRecs  []string
	}{
		{
			name:      "hot",
			snap:      WeatherSnapshot{TemperatureC: 36, HumidityPct: 50},
			wantLevel: LevelHigh,
			wantRecs:  []string{"Limit outdoor exposure", "Stay hydrated", "Wear light, loose clothing"},
		},
		{
			name:      "warm and dry",
			snap:      WeatherSnapshot{TemperatureC: 31, HumidityPct: 20},
			wantLevel: LevelMedium,
			wantRecs:  []string{"Take breaks in cool areas", "Stay hydrated", "Monitor for overheating", "Low humidity - ensure adequate hydration"},
		},
		{
			name:      "mild",
			snap:      DefaultSnapshot(),
			wantLevel: LevelLow,
			wantRecs:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := BuildComprehensiveAssessment(context.Background(), Patient{Age: 25, WeeksPregnant: 20}, &stubProvider{snap: tt.snap}, discardLogger())
			require.NotNil(t, c.WeatherAnalysis)
			assert.Equal(t, tt.wantLevel, c.WeatherAnalysis.RiskLevel)
			assert.Equal(t, tt.wantRecs, c.WeatherAnalysis.Recommendations)
		})
	}
}

func TestBuildComprehensiveAssessment_EarlyPregnancy(t *testing.T) {
	c := BuildComprehensiveAssessment(context.Background(), Patient{Age: 17, WeeksPregnant: 8}, &stubProvider{snap: DefaultSnapshot()}, discardLogger())

	require.NotNil(t, c.Overall)
	assert.Equal(t, []string{
		"Early pregnancy monitoring important",
		"Age-related risk factors require closer monitoring",
	}, c.Overall.MonitoringNeeds)
	assert.Contains(t, c.Recommendations, "Avoid extreme temperatures during early pregnancy")
}

func TestBuildComprehensiveAssessment_UnknownWeeks(t *testing.T) {
	c := BuildComprehensiveAssessment(context.Background(), Patient{Age: 25}, &stubProvider{snap: DefaultSnapshot()}, discardLogger())

	require.NotNil(t, c.Overall)
	assert.Empty(t, c.Overall.MonitoringNeeds)
	assert.Equal(t, LevelLow, c.Overall.PriorityLevel)
}

func TestBuildComprehensiveAssessment_WeatherFailure(t *testing.T) {
	c := BuildComprehensiveAssessment(context.Background(), Patient{Age: 25}, panicProvider{}, discardLogger())

	assert.Empty(t, c.Error)
	assert.True(t, c.BasicRisk.WeatherDegraded)
	require.NotNil(t, c.WeatherAnalysis)
	assert.Equal(t, DefaultSnapshot(), c.WeatherAnalysis.CurrentConditions)
}
