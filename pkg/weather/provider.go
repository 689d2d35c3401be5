package weather

import (
	"context"
	"strings"
	"time"
)

// ForecastDays is the number of daily entries requested from every provider.
const ForecastDays = 5

type Provider interface {
	Name() string
	Forecast(ctx context.Context, cityKey string) (*ForecastResult, error)
}

type Location struct {
	Name    string
	Region  string
	Country string
}

type Condition struct {
	Text string
	Icon string
}

type CurrentWeather struct {
	Condition Condition
	IsDay     bool
	TempC     float64
}

type DailyForecast struct {
	Date     time.Time
	MinTempC float64
	MaxTempC float64
}

// ForecastResult is one parsed provider response. It is rebuilt on every
// fetch and has no identity beyond that.
type ForecastResult struct {
	Location Location
	Current  CurrentWeather
	Days     []DailyForecast
}

func (r *ForecastResult) Empty() bool {
	return r == nil || (r.Location == Location{} && r.Current == CurrentWeather{} && len(r.Days) == 0)
}

// NormalizeCity turns raw user input into a cityKey.
func NormalizeCity(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
