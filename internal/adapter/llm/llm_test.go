package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRequest() domain.RecommendationRequest {
	return domain.RecommendationRequest{
		Patient: domain.Patient{
			ID:               7,
			Name:             "Ana Lopez",
			Age:              34,
			PregnancyICD10:   "O24.4",
			ComorbidityICD10: "I10",
			WeeksPregnant:    30,
			ZipCode:          "85001",
			Medications:      "Insulin; Folic acid",
		},
		Assessment: domain.RiskAssessment{
			RiskLevel:       domain.LevelHigh,
			RiskScore:       13,
			HeatWaveRisk:    true,
			WeatherSnapshot: domain.WeatherSnapshot{TemperatureC: 39.2, HumidityPct: 35},
			Factors: domain.RiskFactors{
				AgeRisk:        domain.LevelHigh,
				TrimesterRisk:  domain.LevelHigh,
				LocationRisk:   domain.LevelHigh,
				ConditionsRisk: domain.LevelMedium,
			},
		},
	}
}

func chatCompletion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1720000000,
		"model":   DefaultModel,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

// --- prompt ---

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(sampleRequest())

	assert.Contains(t, prompt, "- Age: 34 years")
	assert.Contains(t, prompt, "- Pregnancy: 30 weeks")
	assert.Contains(t, prompt, "- Current Risk Level: high")
	assert.Contains(t, prompt, "- Pregnancy ICD10: O24.4")
	assert.Contains(t, prompt, "Insulin, Folic acid")
	assert.Contains(t, prompt, "- Temperature: 39.2°C")
	assert.Contains(t, prompt, "- Heat wave risk: true")
	assert.Contains(t, prompt, "- conditions_risk: medium")
	assert.NotContains(t, prompt, "age_group_risk")
	assert.Contains(t, prompt, "priority_level")
}

func TestBuildPrompt_NoConditions(t *testing.T) {
	req := sampleRequest()
	req.Patient.PregnancyICD10 = ""
	req.Patient.ComorbidityICD10 = ""
	req.Patient.Medications = ""

	prompt := buildPrompt(req)
	assert.Contains(t, prompt, "- Pregnancy ICD10: None")
	assert.Contains(t, prompt, "- Other conditions: None")
	assert.Contains(t, prompt, "Medications:\nNone")
}

// --- Client ---

func TestClient_Recommend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string            `json:"model"`
			Messages []json.RawMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultModel, body.Model)
		assert.Len(t, body.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletion("Here you go:\n"+
			`{"immediate_actions": ["Move to a cooled room"], "monitoring_guidelines": "Daily glucose checks", "priority_level": "High"}`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := NewClient("test-key", srv.URL+"/v1/", "", 5*time.Second, metrics, discardLogger())

	rec, err := c.Recommend(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StringList{"Move to a cooled room"}, rec.ImmediateActions)
	assert.Equal(t, domain.StringList{"Daily glucose checks"}, rec.MonitoringGuidelines)
	assert.Equal(t, "High", rec.PriorityLevel)
	assert.Empty(t, rec.RawResponse)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AIRequests.WithLabelValues("success")))
}

func TestClient_Recommend_UnstructuredReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletion("Please consult your obstetrician."))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL+"/v1/", "", 5*time.Second, observability.NewMetricsForTesting(), discardLogger())

	rec, err := c.Recommend(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Please consult your obstetrician.", rec.RawResponse)
	assert.Equal(t, "Medium", rec.PriorityLevel)
}

func TestClient_Recommend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error": {"message": "boom", "type": "server_error"}}`)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := NewClient("test-key", srv.URL+"/v1/", "", 5*time.Second, metrics, discardLogger())

	_, err := c.Recommend(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalAPI)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AIRequests.WithLabelValues("error")))
}

func TestBuildWeatherPrompt(t *testing.T) {
	prompt := buildWeatherPrompt(domain.WeatherAnalysisRequest{
		Location:     "85001",
		Weather:      domain.WeatherSnapshot{TemperatureC: 41.3, FeelsLikeC: 44, HumidityPct: 18, HeatIndexC: 40.2, IsHeatWave: true, Description: "clear sky"},
		PatientCount: 4,
	})

	assert.Contains(t, prompt, "Location: 85001")
	assert.Contains(t, prompt, "Temperature: 41.3°C")
	assert.Contains(t, prompt, "Is Heat Wave: true")
	assert.Contains(t, prompt, "Affected Patients: 4")
	assert.Contains(t, prompt, "emergency_actions")
}

func TestBuildAdvicePrompt(t *testing.T) {
	req := domain.HealthAdviceRequest{Patient: sampleRequest().Patient, Assessment: sampleRequest().Assessment}
	assert.Contains(t, buildAdvicePrompt(req), "Specific concern: "+domain.DefaultConcern)

	req.SpecificConcern = "Swollen ankles after walking"
	prompt := buildAdvicePrompt(req)
	assert.Contains(t, prompt, "Specific concern: Swollen ankles after walking")
	assert.Contains(t, prompt, "- Pregnancy weeks: 30")
	assert.Contains(t, prompt, "- Medications: Insulin, Folic acid")
	assert.Contains(t, prompt, "seek_help_when")
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletion(content))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_AnalyzeWeather(t *testing.T) {
	srv := chatServer(t, `{"risk_level": "High", "health_concerns": ["Dehydration", "Preterm contractions"]}`)
	metrics := observability.NewMetricsForTesting()
	c := NewClient("test-key", srv.URL+"/v1/", "", 5*time.Second, metrics, discardLogger())

	a, err := c.AnalyzeWeather(context.Background(), domain.WeatherAnalysisRequest{Location: "85001", PatientCount: 2})
	require.NoError(t, err)
	assert.Equal(t, "High", a.RiskLevel)
	assert.Equal(t, domain.StringList{"Dehydration", "Preterm contractions"}, a.HealthConcerns)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AIRequests.WithLabelValues("success")))
}

func TestClient_HealthAdvice(t *testing.T) {
	srv := chatServer(t, "Some thoughts, not JSON.")
	c := NewClient("test-key", srv.URL+"/v1/", "", 5*time.Second, observability.NewMetricsForTesting(), discardLogger())

	req := domain.HealthAdviceRequest{Patient: sampleRequest().Patient, Assessment: sampleRequest().Assessment}
	advice, err := c.HealthAdvice(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Some thoughts, not JSON.", advice.RawResponse)
	assert.Equal(t, domain.StringList{"Follow healthcare provider guidance"}, advice.Recommendations)
}

// --- decorators ---

type countingAdvisor struct {
	calls int
	err   error
}

func (m *countingAdvisor) AnalyzeWeather(_ context.Context, _ domain.WeatherAnalysisRequest) (domain.WeatherRiskAnalysis, error) {
	m.calls++
	return domain.WeatherRiskAnalysis{RiskLevel: "Low"}, m.err
}

func (m *countingAdvisor) HealthAdvice(_ context.Context, _ domain.HealthAdviceRequest) (domain.HealthAdvice, error) {
	m.calls++
	return domain.HealthAdvice{}, m.err
}

func TestBreakerAdvisor_SharesBreakerAcrossCalls(t *testing.T) {
	inner := &countingAdvisor{err: errors.New("upstream down")}
	metrics := observability.NewMetricsForTesting()
	b := NewBreakerAdvisor(inner, 2, time.Minute, metrics, discardLogger())

	_, err := b.AnalyzeWeather(context.Background(), domain.WeatherAnalysisRequest{})
	require.Error(t, err)
	_, err = b.HealthAdvice(context.Background(), domain.HealthAdviceRequest{})
	require.Error(t, err)
	assert.Equal(t, "open", b.State())

	_, err = b.AnalyzeWeather(context.Background(), domain.WeatherAnalysisRequest{})
	assert.ErrorIs(t, err, domain.ErrExternalAPI)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AIRequests.WithLabelValues("rejected")))
}

func TestBreakerAdvisor_PassesThrough(t *testing.T) {
	b := NewBreakerAdvisor(&countingAdvisor{}, 0, 0, observability.NewMetricsForTesting(), discardLogger())

	a, err := b.AnalyzeWeather(context.Background(), domain.WeatherAnalysisRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Low", a.RiskLevel)
	assert.Equal(t, "closed", b.State())
}

type countingRecommender struct {
	calls int
	rec   domain.AIRecommendations
	err   error
}

func (m *countingRecommender) Recommend(_ context.Context, _ domain.RecommendationRequest) (domain.AIRecommendations, error) {
	m.calls++
	return m.rec, m.err
}

func TestBreakerRecommender_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &countingRecommender{err: errors.New("upstream down")}
	metrics := observability.NewMetricsForTesting()
	b := NewBreakerRecommender(inner, 5, time.Minute, metrics, discardLogger())

	for range 5 {
		_, err := b.Recommend(context.Background(), sampleRequest())
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Recommend(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalAPI)
	assert.Equal(t, 5, inner.calls, "open breaker should not call inner")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AIRequests.WithLabelValues("rejected")))
}

func TestBreakerRecommender_PassesThrough(t *testing.T) {
	inner := &countingRecommender{rec: domain.AIRecommendations{PriorityLevel: "Low"}}
	b := NewBreakerRecommender(inner, 0, 0, observability.NewMetricsForTesting(), discardLogger())

	rec, err := b.Recommend(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Low", rec.PriorityLevel)
	assert.Equal(t, "closed", b.State())
}

func TestCachedRecommender_CacheHit(t *testing.T) {
	inner := &countingRecommender{rec: domain.AIRecommendations{PriorityLevel: "High"}}
	metrics := observability.NewMetricsForTesting()
	cached, err := NewCachedRecommender(inner, 10, metrics)
	require.NoError(t, err)

	for range 3 {
		rec, err := cached.Recommend(context.Background(), sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, "High", rec.PriorityLevel)
	}

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AICache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AICache.WithLabelValues("miss")))
}

func TestCachedRecommender_DifferentScoresMiss(t *testing.T) {
	inner := &countingRecommender{rec: domain.AIRecommendations{PriorityLevel: "High"}}
	cached, err := NewCachedRecommender(inner, 10, observability.NewMetricsForTesting())
	require.NoError(t, err)

	req := sampleRequest()
	_, _ = cached.Recommend(context.Background(), req)
	req.Assessment.RiskScore = 9.5
	_, _ = cached.Recommend(context.Background(), req)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedRecommender_SkipsErrorsAndRawReplies(t *testing.T) {
	inner := &countingRecommender{err: errors.New("timeout")}
	cached, err := NewCachedRecommender(inner, 10, observability.NewMetricsForTesting())
	require.NoError(t, err)

	_, err = cached.Recommend(context.Background(), sampleRequest())
	require.Error(t, err)

	inner.err = nil
	inner.rec = domain.AIRecommendations{RawResponse: "free text"}
	_, err = cached.Recommend(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Zero(t, cached.Len())
	assert.Equal(t, 2, inner.calls)
}

func TestCachedRecommender_Evicts(t *testing.T) {
	inner := &countingRecommender{rec: domain.AIRecommendations{PriorityLevel: "Low"}}
	cached, err := NewCachedRecommender(inner, 1, observability.NewMetricsForTesting())
	require.NoError(t, err)

	first := sampleRequest()
	second := sampleRequest()
	second.Patient.ID = 8

	_, _ = cached.Recommend(context.Background(), first)
	_, _ = cached.Recommend(context.Background(), second)
	_, _ = cached.Recommend(context.Background(), first)

	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 1, cached.Len())
}
