package weatherapi

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

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/duluk/weather-widget/pkg/weather"
)

const DefaultBaseURL = "https://api.weatherapi.com/v1/forecast.json"

/* Example structure response (trimmed to the fields we read):
{
  "location": {"name": "Paris", "region": "Ile-de-France", "country": "France"},
  "current": {
    "temp_c": 14.0,
    "is_day": 1,
    "condition": {"text": "Partly cloudy", "icon": "//cdn.weatherapi.com/weather/64x64/day/116.png"}
  },
  "forecast": {
    "forecastday": [
      {"date": "2026-10-17", "day": {"maxtemp_c": 16.2, "mintemp_c": 9.1}}
    ]
  }
}

Errors come back with a non-2xx status and:
{"error": {"code": 1006, "message": "No matching location found."}}
*/

type ForecastResponse struct {
	Location struct {
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		Condition struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
		IsDay int     `json:"is_day"`
		TempC float64 `json:"temp_c"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MinTempC float64 `json:"mintemp_c"`
				MaxTempC float64 `json:"maxtemp_c"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Provider struct {
	endpoint   string
	extra      url.Values
	apiKey     string
	httpClient *http.Client
	schema     *jsonschema.Schema
	logger     *slog.Logger
}

func New(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	endpoint, extra, baseKey, err := splitBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		apiKey = baseKey
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile forecast schema: %w", err)
	}
	return &Provider{
		endpoint:   endpoint,
		extra:      extra,
		apiKey:     apiKey,
		httpClient: httpClient,
		schema:     schema,
		logger:     logger,
	}, nil
}

func (p *Provider) Name() string { return "weatherapi" }

// URL builds the request for cityKey: the base endpoint with the key and
// q parameter, followed by the fixed day count and feature switches.
func (p *Provider) URL(cityKey string) string {
	u := fmt.Sprintf("%s?key=%s&q=%s&days=%d&aqi=no&alerts=no",
		p.endpoint, url.QueryEscape(p.apiKey), url.QueryEscape(cityKey), weather.ForecastDays)
	if len(p.extra) > 0 {
		u += "&" + p.extra.Encode()
	}
	return u
}

// ownParams are always set by URL; copies in the base URL are dropped.
var ownParams = []string{"key", "q", "days", "aqi", "alerts"}

// splitBaseURL separates a base URL into its endpoint and any query
// parameters it already carries. A key found there is returned so it can
// stand in for a missing API key.
func splitBaseURL(raw string) (endpoint string, extra url.Values, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, "", fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", nil, "", fmt.Errorf("invalid base URL %q: scheme and host required", raw)
	}
	q := u.Query()
	key = q.Get("key")
	for _, k := range ownParams {
		q.Del(k)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), q, key, nil
}

func (p *Provider) Forecast(ctx context.Context, cityKey string) (*weather.ForecastResult, error) {
	var data ForecastResponse
	if err := p.fetchData(ctx, p.URL(cityKey), &data); err != nil {
		return nil, err
	}

	result := &weather.ForecastResult{
		Location: weather.Location{
			Name:    data.Location.Name,
			Region:  data.Location.Region,
			Country: data.Location.Country,
		},
		Current: weather.CurrentWeather{
			Condition: weather.Condition{
				Text: data.Current.Condition.Text,
				Icon: iconURL(data.Current.Condition.Icon),
			},
			IsDay: data.Current.IsDay == 1,
			TempC: data.Current.TempC,
		},
		Days: make([]weather.DailyForecast, 0, len(data.Forecast.ForecastDay)),
	}

	for _, fd := range data.Forecast.ForecastDay {
		date, err := time.Parse("2006-01-02", fd.Date)
		if err != nil {
			return nil, &weather.ParseError{Err: fmt.Errorf("forecast date %q: %w", fd.Date, err)}
		}
		result.Days = append(result.Days, weather.DailyForecast{
			Date:     date,
			MinTempC: fd.Day.MinTempC,
			MaxTempC: fd.Day.MaxTempC,
		})
	}

	return result, nil
}

func (p *Provider) fetchData(ctx context.Context, u string, target *ForecastResponse) error {
	p.logger.Debug("weatherapi request", "url", redactKey(u))

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
	p.logger.Debug("weatherapi response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, body)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return &weather.ParseError{Err: err}
	}
	if err := p.schema.Validate(raw); err != nil {
		return &weather.ParseError{Err: err}
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &weather.ParseError{Err: err}
	}
	return nil
}

func apiError(status int, body []byte) *weather.APIError {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return &weather.APIError{Status: status, Message: er.Error.Message}
	}
	msg := http.StatusText(status)
	if msg == "" {
		msg = fmt.Sprintf("API returned status %d", status)
	}
	return &weather.APIError{Status: status, Message: msg}
}

// The API serves protocol-relative icon paths.
func iconURL(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}

func redactKey(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	if q.Get("key") != "" {
		q.Set("key", "REDACTED")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

var _ weather.Provider = (*Provider)(nil)
