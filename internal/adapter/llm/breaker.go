package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
	"github.com/sony/gobreaker"
)

// Breaker defaults: trip after consecutive failures, stay open for the timeout.
const (
	DefaultTripAfter   = 5
	DefaultOpenTimeout = 30 * time.Second
)

// BreakerRecommender stops calling a failing Recommender until it recovers.
type BreakerRecommender struct {
	inner   domain.Recommender
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// NewBreakerRecommender wraps inner with a circuit breaker that opens after
// tripAfter consecutive failures and half-opens after openTimeout.
func NewBreakerRecommender(inner domain.Recommender, tripAfter uint32, openTimeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *BreakerRecommender {
	return &BreakerRecommender{
		inner:   inner,
		cb:      newBreaker("ai-recommendations", tripAfter, openTimeout, logger),
		metrics: metrics,
	}
}

func (b *BreakerRecommender) Recommend(ctx context.Context, req domain.RecommendationRequest) (domain.AIRecommendations, error) {
	return execute(b.cb, b.metrics, func() (domain.AIRecommendations, error) {
		return b.inner.Recommend(ctx, req)
	})
}

// State reports the breaker state for readiness and debugging.
func (b *BreakerRecommender) State() string {
	return b.cb.State().String()
}

// BreakerAdvisor is BreakerRecommender for domain.Advisor. Both analyses
// share one breaker since they hit the same model.
type BreakerAdvisor struct {
	inner   domain.Advisor
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// NewBreakerAdvisor wraps inner with its own circuit breaker.
func NewBreakerAdvisor(inner domain.Advisor, tripAfter uint32, openTimeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *BreakerAdvisor {
	return &BreakerAdvisor{
		inner:   inner,
		cb:      newBreaker("ai-advisor", tripAfter, openTimeout, logger),
		metrics: metrics,
	}
}

func (b *BreakerAdvisor) AnalyzeWeather(ctx context.Context, req domain.WeatherAnalysisRequest) (domain.WeatherRiskAnalysis, error) {
	return execute(b.cb, b.metrics, func() (domain.WeatherRiskAnalysis, error) {
		return b.inner.AnalyzeWeather(ctx, req)
	})
}

func (b *BreakerAdvisor) HealthAdvice(ctx context.Context, req domain.HealthAdviceRequest) (domain.HealthAdvice, error) {
	return execute(b.cb, b.metrics, func() (domain.HealthAdvice, error) {
		return b.inner.HealthAdvice(ctx, req)
	})
}

// State reports the breaker state.
func (b *BreakerAdvisor) State() string {
	return b.cb.State().String()
}

func newBreaker(name string, tripAfter uint32, openTimeout time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if tripAfter == 0 {
		tripAfter = DefaultTripAfter
	}
	if openTimeout <= 0 {
		openTimeout = DefaultOpenTimeout
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// execute runs fn through cb. Rejections by an open breaker are reported as
// domain.ErrExternalAPI.
func execute[T any](cb *gobreaker.CircuitBreaker, metrics *observability.Metrics, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.AIRequests.WithLabelValues("rejected").Inc()
			return zero, fmt.Errorf("%w: %w", domain.ErrExternalAPI, err)
		}
		return zero, err
	}
	return res.(T), nil
}
