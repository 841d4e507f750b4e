package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
)

// DefaultBaseURL is the public OpenWeatherMap API host.
const DefaultBaseURL = "https://api.openweathermap.org"

const (
	oneCallPath  = "/data/3.0/onecall"
	currentPath  = "/data/2.5/weather"
	forecastPath = "/data/2.5/forecast"

	tierRich     = "rich"
	tierSimple   = "simple"
	tierForecast = "forecast"
	tierAlerts   = "alerts"

	kelvinOffset      = 273.15
	maxMinutelyPoints = 60
	periodsPerDay     = 8
	maxForecastDays   = 5
)

// Client implements domain.WeatherProvider against OpenWeatherMap. Snapshots
// try the One Call API first and fall back to the current weather API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client. Every request is bounded by timeout.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// GetSnapshot returns current conditions for a zip code.
//
// A failed rich tier falls through to the simple tier. A transport failure of
// the simple tier yields domain.DefaultSnapshot with no error; any other simple
// tier failure is returned as a *domain.FetchError.
func (c *Client) GetSnapshot(ctx context.Context, zip string) (domain.WeatherSnapshot, error) {
	if c.apiKey == "" {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: weather API key is not set", domain.ErrConfigMissing)
	}

	snap, err := c.richSnapshot(ctx, zip)
	if err == nil {
		return snap, nil
	}
	c.logger.Warn("rich weather tier failed, trying simple tier", "location", zip, "error", err)
	c.metrics.WeatherFallbacks.WithLabelValues(tierSimple).Inc()

	snap, err = c.simpleSnapshot(ctx, zip)
	if err == nil {
		return snap, nil
	}

	var fe *domain.FetchError
	if errors.As(err, &fe) && fe.Kind == domain.FetchTransport {
		c.logger.Warn("simple weather tier unreachable, using default snapshot", "location", zip, "error", err)
		c.metrics.WeatherFallbacks.WithLabelValues("default").Inc()
		return domain.DefaultSnapshot(), nil
	}
	return domain.WeatherSnapshot{}, err
}

// Forecast returns three-hour periods for the next days (clamped to 1..5,
// 0 meaning 5). Failures yield domain.EmptyForecast.
func (c *Client) Forecast(ctx context.Context, zip string, days int) domain.ForecastReport {
	if c.apiKey == "" {
		c.logger.Warn("weather API key is not set, returning empty forecast", "location", zip)
		return domain.EmptyForecast()
	}
	days = clampDays(days)

	var resp forecastResponse
	err := c.get(ctx, tierForecast, forecastPath, url.Values{
		"zip": {zip},
		"cnt": {strconv.Itoa(days * periodsPerDay)},
	}, &resp)
	if err != nil {
		c.logger.Warn("weather forecast failed", "location", zip, "days", days, "error", err)
		return domain.EmptyForecast()
	}
	return resp.toReport()
}

// Alerts returns active weather alerts. When the alert query fails the report
// is marked degraded and carries the plain snapshot instead, or the default
// snapshot when that fails too. Only a missing API key is an error.
func (c *Client) Alerts(ctx context.Context, zip string) (domain.AlertReport, error) {
	if c.apiKey == "" {
		return domain.AlertReport{}, fmt.Errorf("%w: weather API key is not set", domain.ErrConfigMissing)
	}

	var resp oneCallResponse
	err := c.get(ctx, tierAlerts, oneCallPath, url.Values{
		"zip":     {zip},
		"exclude": {"minutely,hourly,daily"},
	}, &resp)
	if err == nil {
		return domain.NewAlertReport(resp.Alerts), nil
	}

	c.logger.Warn("weather alerts failed, falling back to snapshot", "location", zip, "error", err)
	c.metrics.WeatherFallbacks.WithLabelValues("snapshot").Inc()

	snap, err := c.GetSnapshot(ctx, zip)
	if err != nil {
		c.logger.Warn("weather snapshot failed, alerts carry default snapshot", "location", zip, "error", err)
		c.metrics.WeatherFallbacks.WithLabelValues("default").Inc()
		snap = domain.DefaultSnapshot()
	}
	report := domain.NewAlertReport(nil)
	report.Degraded = true
	report.Current = &snap
	return report, nil
}

func (c *Client) richSnapshot(ctx context.Context, zip string) (domain.WeatherSnapshot, error) {
	var resp oneCallResponse
	if err := c.get(ctx, tierRich, oneCallPath, url.Values{"zip": {zip}}, &resp); err != nil {
		return domain.WeatherSnapshot{}, err
	}
	if resp.Current == nil {
		return domain.WeatherSnapshot{}, &domain.FetchError{
			Tier: tierRich,
			Kind: domain.FetchDecode,
			Err:  errors.New("response has no current conditions"),
		}
	}
	return resp.toSnapshot(), nil
}

func (c *Client) simpleSnapshot(ctx context.Context, zip string) (domain.WeatherSnapshot, error) {
	var resp currentResponse
	if err := c.get(ctx, tierSimple, currentPath, url.Values{"zip": {zip}}, &resp); err != nil {
		return domain.WeatherSnapshot{}, err
	}
	return resp.toSnapshot(), nil
}

// get performs one metric-units GET and decodes the JSON body into out.
// Failures are returned as *domain.FetchError.
func (c *Client) get(ctx context.Context, tier, path string, params url.Values, out any) error {
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	fullURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &domain.FetchError{Tier: tier, Kind: domain.FetchTransport, Err: fmt.Errorf("create request: %w", err)}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.WeatherAPIDuration.WithLabelValues(tier).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues(tier, string(domain.FetchTransport)).Inc()
		return &domain.FetchError{Tier: tier, Kind: domain.FetchTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.metrics.WeatherRequests.WithLabelValues(tier, string(domain.FetchStatus)).Inc()
		return &domain.FetchError{Tier: tier, Kind: domain.FetchStatus, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.WeatherRequests.WithLabelValues(tier, string(domain.FetchDecode)).Inc()
		return &domain.FetchError{Tier: tier, Kind: domain.FetchDecode, Err: err}
	}

	c.metrics.WeatherRequests.WithLabelValues(tier, "success").Inc()
	return nil
}

func clampDays(days int) int {
	switch {
	case days <= 0:
		return maxForecastDays
	case days > maxForecastDays:
		return maxForecastDays
	default:
		return days
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
