package openweather

import "github.com/couchcryptid/maternal-heat-risk/internal/domain"

// OpenWeatherMap API response types. Pointer fields distinguish "absent" from
// zero so the documented defaults can be applied.

type condition struct {
	Description string `json:"description"`
}

type coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// oneCallResponse is the One Call 3.0 payload. Temperatures are Kelvin.
type oneCallResponse struct {
	Lat            float64               `json:"lat"`
	Lon            float64               `json:"lon"`
	Timezone       string                `json:"timezone"`
	TimezoneOffset int                   `json:"timezone_offset"`
	Current        *oneCallCurrent       `json:"current"`
	Minutely       []minutelyPoint       `json:"minutely"`
	Alerts         []domain.WeatherAlert `json:"alerts"`
}

type oneCallCurrent struct {
	Dt         int64       `json:"dt"`
	Sunrise    int64       `json:"sunrise"`
	Sunset     int64       `json:"sunset"`
	Temp       *float64    `json:"temp"`
	FeelsLike  *float64    `json:"feels_like"`
	Pressure   *float64    `json:"pressure"`
	Humidity   *float64    `json:"humidity"`
	DewPoint   *float64    `json:"dew_point"`
	UVI        float64     `json:"uvi"`
	Clouds     float64     `json:"clouds"`
	Visibility *int        `json:"visibility"`
	WindSpeed  float64     `json:"wind_speed"`
	WindDeg    float64     `json:"wind_deg"`
	WindGust   float64     `json:"wind_gust"`
	Weather    []condition `json:"weather"`
}

type minutelyPoint struct {
	Dt            int64   `json:"dt"`
	Precipitation float64 `json:"precipitation"`
}

// defaultKelvin is used when the rich tier omits the temperature.
const defaultKelvin = 295.15

func (r oneCallResponse) toSnapshot() domain.WeatherSnapshot {
	cur := r.Current

	tempC := valueOr(cur.Temp, defaultKelvin) - kelvinOffset
	feelsC := tempC
	if cur.FeelsLike != nil {
		feelsC = *cur.FeelsLike - kelvinOffset
	}
	humidity := valueOr(cur.Humidity, domain.DefaultHumidityPct)

	var dewC float64
	if cur.DewPoint != nil {
		dewC = round1(*cur.DewPoint - kelvinOffset)
	}

	timezone := r.Timezone
	if timezone == "" {
		timezone = domain.UnknownLabel
	}

	minutely := make([]domain.PrecipitationMinute, 0, min(len(r.Minutely), maxMinutelyPoints))
	for i, m := range r.Minutely {
		if i == maxMinutelyPoints {
			break
		}
		minutely = append(minutely, domain.PrecipitationMinute{Datetime: m.Dt, Precipitation: m.Precipitation})
	}

	// Heat index and heat-wave flag use the unrounded temperature.
	return domain.WeatherSnapshot{
		TemperatureC:   round1(tempC),
		FeelsLikeC:     round1(feelsC),
		HumidityPct:    humidity,
		HeatIndexC:     domain.HeatIndex(tempC, humidity),
		UVIndex:        cur.UVI,
		WindSpeed:      cur.WindSpeed,
		IsHeatWave:     domain.IsHeatWave(tempC, humidity),
		Pressure:       valueOr(cur.Pressure, domain.DefaultPressureHPa),
		Description:    describe(cur.Weather),
		WindDeg:        cur.WindDeg,
		WindGust:       cur.WindGust,
		Visibility:     intOr(cur.Visibility, domain.DefaultVisibilityM),
		Cloudiness:     cur.Clouds,
		DewPointC:      dewC,
		Sunrise:        cur.Sunrise,
		Sunset:         cur.Sunset,
		Timestamp:      cur.Dt,
		Timezone:       timezone,
		TimezoneOffset: r.TimezoneOffset,
		Location: domain.WeatherLocation{
			Name:        domain.UnknownLabel,
			Country:     domain.UnknownLabel,
			Coordinates: domain.Coordinates{Lat: r.Lat, Lon: r.Lon},
		},
		Minutely: minutely,
	}
}

// currentResponse is the current weather 2.5 payload. Temperatures are Celsius.
type currentResponse struct {
	Coord   coord       `json:"coord"`
	Weather []condition `json:"weather"`
	Main    struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Pressure  *float64 `json:"pressure"`
		Humidity  *float64 `json:"humidity"`
		DewPoint  float64  `json:"dew_point"`
	} `json:"main"`
	Visibility *int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
		Gust  float64 `json:"gust"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Name string  `json:"name"`
	UVI  float64 `json:"uvi"`
}

func (r currentResponse) toSnapshot() domain.WeatherSnapshot {
	tempC := valueOr(r.Main.Temp, domain.DefaultTempC)
	humidity := valueOr(r.Main.Humidity, domain.DefaultHumidityPct)

	return domain.WeatherSnapshot{
		TemperatureC:   tempC,
		FeelsLikeC:     valueOr(r.Main.FeelsLike, tempC),
		HumidityPct:    humidity,
		HeatIndexC:     domain.HeatIndex(tempC, humidity),
		UVIndex:        r.UVI,
		WindSpeed:      r.Wind.Speed,
		IsHeatWave:     domain.IsHeatWave(tempC, humidity),
		Pressure:       valueOr(r.Main.Pressure, domain.DefaultPressureHPa),
		Description:    describe(r.Weather),
		WindDeg:        r.Wind.Deg,
		WindGust:       r.Wind.Gust,
		Visibility:     intOr(r.Visibility, domain.DefaultVisibilityM),
		Cloudiness:     r.Clouds.All,
		DewPointC:      r.Main.DewPoint,
		Sunrise:        r.Sys.Sunrise,
		Sunset:         r.Sys.Sunset,
		Timestamp:      r.Dt,
		Timezone:       domain.UnknownLabel,
		TimezoneOffset: 0,
		Location: domain.WeatherLocation{
			Name:        stringOr(r.Name, domain.UnknownLabel),
			Country:     stringOr(r.Sys.Country, domain.UnknownLabel),
			Coordinates: domain.Coordinates{Lat: r.Coord.Lat, Lon: r.Coord.Lon},
		},
		Minutely: []domain.PrecipitationMinute{},
	}
}

// forecastResponse is the 5 day / 3 hour forecast payload.
type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      *float64 `json:"temp"`
			FeelsLike *float64 `json:"feels_like"`
			Pressure  *float64 `json:"pressure"`
			Humidity  *float64 `json:"humidity"`
		} `json:"main"`
		Weather []condition `json:"weather"`
		Pop     float64     `json:"pop"`
		Wind    struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

func (r forecastResponse) toReport() domain.ForecastReport {
	periods := make([]domain.ForecastPeriod, 0, len(r.List))
	for _, item := range r.List {
		tempC := valueOr(item.Main.Temp, domain.DefaultTempC)
		humidity := valueOr(item.Main.Humidity, domain.DefaultHumidityPct)
		periods = append(periods, domain.ForecastPeriod{
			Datetime:                 item.Dt,
			TemperatureC:             tempC,
			FeelsLikeC:               valueOr(item.Main.FeelsLike, tempC),
			HumidityPct:              humidity,
			Pressure:                 valueOr(item.Main.Pressure, domain.DefaultPressureHPa),
			Description:              describe(item.Weather),
			IsHeatWave:               domain.IsHeatWave(tempC, humidity),
			HeatIndexC:               domain.HeatIndex(tempC, humidity),
			PrecipitationProbability: item.Pop * 100,
			WindSpeed:                item.Wind.Speed,
		})
	}
	return domain.ForecastReport{
		Forecasts: periods,
		Location: domain.ForecastLocation{
			Name:    stringOr(r.City.Name, domain.UnknownLabel),
			Country: stringOr(r.City.Country, domain.UnknownLabel),
		},
	}
}

func describe(conds []condition) string {
	if len(conds) == 0 || conds[0].Description == "" {
		return domain.UnknownLabel
	}
	return conds[0].Description
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
