package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Client implements domain.Recommender and domain.Advisor with OpenAI chat
// completions.
type Client struct {
	client  openai.Client
	model   string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a recommendation client. baseURL may be empty to use the
// public API.
func NewClient(apiKey, baseURL, model string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client:  openai.NewClient(opts...),
		model:   model,
		metrics: metrics,
		logger:  logger,
	}
}

// Recommend asks the model for structured advice. Replies that are not valid
// JSON still produce generic advice with the raw text attached.
func (c *Client) Recommend(ctx context.Context, req domain.RecommendationRequest) (domain.AIRecommendations, error) {
	text, err := c.complete(ctx, buildPrompt(req))
	if err != nil {
		return domain.AIRecommendations{}, err
	}
	c.logger.Debug("ai recommendations received", "patient_id", req.Patient.ID, "model", c.model)
	return domain.ParseRecommendations(text), nil
}

// AnalyzeWeather asks the model how a location's weather affects the
// pregnant patients living there.
func (c *Client) AnalyzeWeather(ctx context.Context, req domain.WeatherAnalysisRequest) (domain.WeatherRiskAnalysis, error) {
	text, err := c.complete(ctx, buildWeatherPrompt(req))
	if err != nil {
		return domain.WeatherRiskAnalysis{}, err
	}
	c.logger.Debug("ai weather analysis received", "location", req.Location, "model", c.model)
	return domain.ParseWeatherAnalysis(text), nil
}

// HealthAdvice asks the model for personalized guidance on one concern.
func (c *Client) HealthAdvice(ctx context.Context, req domain.HealthAdviceRequest) (domain.HealthAdvice, error) {
	text, err := c.complete(ctx, buildAdvicePrompt(req))
	if err != nil {
		return domain.HealthAdvice{}, err
	}
	c.logger.Debug("ai health advice received", "patient_id", req.Patient.ID, "model", c.model)
	return domain.ParseHealthAdvice(text), nil
}

// complete sends one user prompt and returns the first choice's text.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		c.metrics.AIRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: chat completion: %w", domain.ErrExternalAPI, err)
	}
	if len(resp.Choices) == 0 {
		c.metrics.AIRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %w", domain.ErrExternalAPI, errors.New("chat completion returned no choices"))
	}
	c.metrics.AIRequests.WithLabelValues("success").Inc()
	return resp.Choices[0].Message.Content, nil
}
