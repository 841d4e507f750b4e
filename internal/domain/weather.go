package domain

import "context"

// Heat-wave thresholds in Celsius.
const (
	HeatWaveTempC      = 35.0
	HeatWaveHeatIndexC = 40.0
)

// Neutral values used when a weather source is degraded or offline.
const (
	DefaultTempC       = 25.0
	DefaultHumidityPct = 50.0
	DefaultPressureHPa = 1013.0
	DefaultVisibilityM = 10000
	UnknownLabel       = "Unknown"
)

// WeatherProvider is the Weather Snapshot Provider port. Implementations absorb
// their own soft failures and return an error only for failures the caller must
// see (tier-2 HTTP status, missing credentials).
type WeatherProvider interface {
	GetSnapshot(ctx context.Context, locationKey string) (WeatherSnapshot, error)
}

// Coordinates is a WGS-84 lat/lon pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherLocation names the place a snapshot was resolved to.
type WeatherLocation struct {
	Name        string      `json:"name"`
	Country     string      `json:"country"`
	Coordinates Coordinates `json:"coordinates"`
}

// PrecipitationMinute is one entry of the rich tier's minute-by-minute nowcast.
type PrecipitationMinute struct {
	Datetime      int64   `json:"datetime"`
	Precipitation float64 `json:"precipitation"`
}

// WeatherSnapshot is the normalized view of current conditions for a location.
type WeatherSnapshot struct {
	TemperatureC float64 `json:"temperature"`
	FeelsLikeC   float64 `json:"feels_like"`
	HumidityPct  float64 `json:"humidity"`
	HeatIndexC   float64 `json:"heat_index"`
	UVIndex      float64 `json:"uv_index"`
	WindSpeed    float64 `json:"wind_speed"`
	IsHeatWave   bool    `json:"is_heat_wave"`

	Pressure       float64               `json:"pressure"`
	Description    string                `json:"description"`
	WindDeg        float64               `json:"wind_deg"`
	WindGust       float64               `json:"wind_gust"`
	Visibility     int                   `json:"visibility"`
	Cloudiness     float64               `json:"cloudiness"`
	DewPointC      float64               `json:"dew_point"`
	Sunrise        int64                 `json:"sunrise"`
	Sunset         int64                 `json:"sunset"`
	Timestamp      int64                 `json:"timestamp"`
	Timezone       string                `json:"timezone"`
	TimezoneOffset int                   `json:"timezone_offset"`
	Location       WeatherLocation       `json:"location"`
	Minutely       []PrecipitationMinute `json:"minutely_precipitation"`
}

// DefaultSnapshot is the fully-offline snapshot. It is the only snapshot whose
// heat-wave flag is hardcoded rather than derived.
func DefaultSnapshot() WeatherSnapshot {
	return WeatherSnapshot{
		TemperatureC: DefaultTempC,
		FeelsLikeC:   DefaultTempC,
		HumidityPct:  DefaultHumidityPct,
		HeatIndexC:   DefaultTempC,
		IsHeatWave:   false,
		Pressure:     DefaultPressureHPa,
		Description:  UnknownLabel,
		Visibility:   DefaultVisibilityM,
		Timezone:     UnknownLabel,
		Location:     WeatherLocation{Name: UnknownLabel, Country: UnknownLabel},
		Minutely:     []PrecipitationMinute{},
	}
}

// HeatIndex returns the Rothfusz heat index in Celsius for a Celsius temperature
// and a relative humidity percentage. Inputs are not range checked.
func HeatIndex(tempC, humidityPct float64) float64 {
	t := tempC*9/5 + 32
	h := humidityPct

	hi := -42.379 + 2.04901523*t + 10.14333127*h
	hi += -0.22475541*t*h - 6.83783e-3*t*t
	hi += -5.481717e-2*h*h + 1.22874e-3*t*t*h
	hi += 8.5282e-4*t*h*h - 1.99e-6*t*t*h*h

	return (hi - 32) * 5 / 9
}

// IsHeatWave reports whether conditions exceed 35°C or a 40°C heat index.
func IsHeatWave(tempC, humidityPct float64) bool {
	return tempC > HeatWaveTempC || HeatIndex(tempC, humidityPct) > HeatWaveHeatIndexC
}

// ForecastPeriod is one three-hour forecast slot.
type ForecastPeriod struct {
	Datetime                 int64   `json:"datetime"`
	TemperatureC             float64 `json:"temperature"`
	FeelsLikeC               float64 `json:"feels_like"`
	HumidityPct              float64 `json:"humidity"`
	Pressure                 float64 `json:"pressure"`
	Description              string  `json:"description"`
	IsHeatWave               bool    `json:"is_heat_wave"`
	HeatIndexC               float64 `json:"heat_index"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
	WindSpeed                float64 `json:"wind_speed"`
}

// ForecastLocation identifies the city a forecast belongs to.
type ForecastLocation struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// ForecastReport is the result of a forecast query. A failed query yields an
// empty period list and an "Unknown" location, never an error.
type ForecastReport struct {
	Forecasts []ForecastPeriod `json:"forecasts"`
	Location  ForecastLocation `json:"location"`
}

// EmptyForecast is the degraded forecast result.
func EmptyForecast() ForecastReport {
	return ForecastReport{
		Forecasts: []ForecastPeriod{},
		Location:  ForecastLocation{Name: UnknownLabel, Country: UnknownLabel},
	}
}

// WeatherAlert is an upstream weather warning.
type WeatherAlert struct {
	SenderName  string   `json:"sender_name"`
	Event       string   `json:"event"`
	Start       int64    `json:"start"`
	End         int64    `json:"end"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// AlertReport lists active alerts. When the alert endpoint is unavailable the
// report is Degraded and carries the plain current snapshot instead.
type AlertReport struct {
	Alerts     []WeatherAlert   `json:"alerts"`
	HasAlerts  bool             `json:"has_alerts"`
	AlertCount int              `json:"alert_count"`
	Degraded   bool             `json:"degraded,omitempty"`
	Current    *WeatherSnapshot `json:"current,omitempty"`
}

// NewAlertReport builds a report from a list of alerts.
func NewAlertReport(alerts []WeatherAlert) AlertReport {
	if alerts == nil {
		alerts = []WeatherAlert{}
	}
	return AlertReport{
		Alerts:     alerts,
		HasAlerts:  len(alerts) > 0,
		AlertCount: len(alerts),
	}
}

// OfflineProvider always answers with DefaultSnapshot.
type OfflineProvider struct{}

func (OfflineProvider) GetSnapshot(_ context.Context, _ string) (WeatherSnapshot, error) {
	return DefaultSnapshot(), nil
}
