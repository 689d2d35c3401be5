package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/duluk/weather-widget/pkg/weather"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

type WeatherResponse struct {
	Current *struct {
		Temperature *float64 `json:"temperature_2m"`
		IsDay       int      `json:"is_day"`
		WeatherCode int      `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time    []string  `json:"time"`
		TempMax []float64 `json:"temperature_2m_max"`
		TempMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

/* Example structure response:
{
  "id": 2988507,
  "name": "Paris",
  "latitude": 48.85341,
  "longitude": 2.3488,
  "country_code": "FR",
  "timezone": "Europe/Paris",
  "country": "France",
  "admin1": "Île-de-France"
}
*/

type GeocodingResult struct {
	Name      string  `json:"name"`
	Region    string  `json:"admin1"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type GeocodingResponse struct {
	Results []GeocodingResult `json:"results"`
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

type Provider struct {
	geocodingURL string
	forecastURL  string
	httpClient   *http.Client
	logger       *slog.Logger
}

func New(geocodingURL, forecastURL string, httpClient *http.Client, logger *slog.Logger) *Provider {
	if geocodingURL == "" {
		geocodingURL = DefaultGeocodingURL
	}
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		geocodingURL: geocodingURL,
		forecastURL:  forecastURL,
		httpClient:   httpClient,
		logger:       logger,
	}
}

func (p *Provider) Name() string { return "openmeteo" }

func (p *Provider) getCoordinates(ctx context.Context, cityKey string) (*GeocodingResult, error) {
	u := fmt.Sprintf("%s?name=%s&count=1&language=en&format=json", p.geocodingURL, url.QueryEscape(cityKey))

	var data GeocodingResponse
	if err := p.fetchData(ctx, u, &data); err != nil {
		return nil, err
	}

	if len(data.Results) == 0 {
		return nil, &weather.APIError{Status: http.StatusNotFound, Message: "No matching location found."}
	}
	return &data.Results[0], nil
}

func (p *Provider) Forecast(ctx context.Context, cityKey string) (*weather.ForecastResult, error) {
	coords, err := p.getCoordinates(ctx, cityKey)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?latitude=%f&longitude=%f&current=temperature_2m,is_day,weather_code&daily=temperature_2m_max,temperature_2m_min&forecast_days=%d&timezone=auto",
		p.forecastURL, coords.Latitude, coords.Longitude, weather.ForecastDays)

	var data WeatherResponse
	if err := p.fetchData(ctx, u, &data); err != nil {
		return nil, err
	}
	if data.Current == nil || data.Current.Temperature == nil {
		return nil, &weather.ParseError{Err: fmt.Errorf("current temperature missing")}
	}
	n := len(data.Daily.Time)
	if len(data.Daily.TempMax) != n || len(data.Daily.TempMin) != n {
		return nil, &weather.ParseError{Err: fmt.Errorf("daily series lengths differ: time=%d max=%d min=%d",
			n, len(data.Daily.TempMax), len(data.Daily.TempMin))}
	}

	days := make([]weather.DailyForecast, n)
	for i := range data.Daily.Time {
		date, err := time.Parse("2006-01-02", data.Daily.Time[i])
		if err != nil {
			return nil, &weather.ParseError{Err: fmt.Errorf("forecast date %q: %w", data.Daily.Time[i], err)}
		}
		days[i] = weather.DailyForecast{
			Date:     date,
			MinTempC: data.Daily.TempMin[i],
			MaxTempC: data.Daily.TempMax[i],
		}
	}

	return &weather.ForecastResult{
		Location: weather.Location{
			Name:    coords.Name,
			Region:  coords.Region,
			Country: coords.Country,
		},
		Current: weather.CurrentWeather{
			Condition: weather.Condition{Text: getWeatherDescription(data.Current.WeatherCode)},
			IsDay:     data.Current.IsDay == 1,
			TempC:     *data.Current.Temperature,
		},
		Days: days,
	}, nil
}

func (p *Provider) fetchData(ctx context.Context, u string, target any) error {
	p.logger.Debug("openmeteo request", "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &weather.NetworkError{Err: err}
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &weather.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &weather.NetworkError{Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && strings.TrimSpace(er.Reason) != "" {
			return &weather.APIError{Status: resp.StatusCode, Message: er.Reason}
		}
		return &weather.APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return &weather.ParseError{Err: err}
	}
	return nil
}

// WMO weather interpretation codes (https://open-meteo.com/en/docs)
var wmoCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func getWeatherDescription(code int) string {
	if desc, ok := wmoCodes[code]; ok {
		return desc
	}
	return "Unknown"
}

var _ weather.Provider = (*Provider)(nil)
