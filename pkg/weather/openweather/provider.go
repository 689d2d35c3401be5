package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/duluk/weather-widget/pkg/weather"
)

const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/forecast"

/*
	OpenWeather API Response Codes
	Success codes
	200  // Success for forecast data

	Error codes
	400  // Bad request (e.g., invalid parameters)
	401  // Unauthorized (invalid API key)
	404  // City not found
	429  // Too many requests (exceeded rate limit)
	500  // Internal server error
*/

type ForecastData struct {
	List []struct {
		DateTime int64 `json:"dt"`
		Main     struct {
			Temp    float64 `json:"temp"`
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		DateText string `json:"dt_txt"`
	} `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

// The API reports cod as a string on errors and a number on some
// successes, so it is left raw.
type errorResponse struct {
	Code    json.RawMessage `json:"cod"`
	Message string          `json:"message"`
}

type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (p *Provider) Name() string { return "openweather" }

func (p *Provider) Forecast(ctx context.Context, cityKey string) (*weather.ForecastResult, error) {
	var data ForecastData
	if err := p.fetchData(ctx, p.buildURL(cityKey), &data); err != nil {
		return nil, err
	}

	if len(data.List) == 0 || len(data.List[0].Weather) == 0 {
		return nil, &weather.ParseError{Err: fmt.Errorf("no forecast data available")}
	}

	days, err := processForecastData(&data)
	if err != nil {
		return nil, err
	}

	first := data.List[0]
	return &weather.ForecastResult{
		Location: weather.Location{
			Name:    data.City.Name,
			Country: data.City.Country,
		},
		Current: weather.CurrentWeather{
			Condition: weather.Condition{
				Text: first.Weather[0].Description,
				Icon: iconURL(first.Weather[0].Icon),
			},
			IsDay: !strings.HasSuffix(first.Weather[0].Icon, "n"),
			TempC: first.Main.Temp,
		},
		Days: days,
	}, nil
}

// processForecastData folds the 3-hour steps into one entry per date,
// ascending, capped at weather.ForecastDays.
func processForecastData(data *ForecastData) ([]weather.DailyForecast, error) {
	type dailyData struct {
		high float64
		low  float64
	}

	dailyForecasts := make(map[string]*dailyData)

	for _, item := range data.List {
		date, _, ok := strings.Cut(item.DateText, " ")
		if !ok {
			return nil, &weather.ParseError{Err: fmt.Errorf("unexpected dt_txt %q", item.DateText)}
		}

		day, exists := dailyForecasts[date]
		if !exists {
			dailyForecasts[date] = &dailyData{high: item.Main.TempMax, low: item.Main.TempMin}
			continue
		}
		if item.Main.TempMax > day.high {
			day.high = item.Main.TempMax
		}
		if item.Main.TempMin < day.low {
			day.low = item.Main.TempMin
		}
	}

	dates := make([]string, 0, len(dailyForecasts))
	for date := range dailyForecasts {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if len(dates) > weather.ForecastDays {
		dates = dates[:weather.ForecastDays]
	}

	result := make([]weather.DailyForecast, 0, len(dates))
	for _, date := range dates {
		day := dailyForecasts[date]
		parsedDate, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, &weather.ParseError{Err: fmt.Errorf("forecast date %q: %w", date, err)}
		}
		result = append(result, weather.DailyForecast{
			Date:     parsedDate,
			MinTempC: day.low,
			MaxTempC: day.high,
		})
	}

	return result, nil
}

func (p *Provider) fetchData(ctx context.Context, u string, target *ForecastData) error {
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
	p.logger.Debug("openweather response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Message != "" {
			return &weather.APIError{Status: resp.StatusCode, Message: er.Message}
		}
		return &weather.APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return &weather.ParseError{Err: err}
	}
	return nil
}

func (p *Provider) buildURL(cityKey string) string {
	return fmt.Sprintf("%s?q=%s&units=metric&appid=%s",
		p.baseURL, url.QueryEscape(cityKey), url.QueryEscape(p.apiKey))
}

func iconURL(code string) string {
	if code == "" {
		return ""
	}
	return "https://openweathermap.org/img/wn/" + code + "@2x.png"
}

var _ weather.Provider = (*Provider)(nil)
