package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	LogLevel    string
	ServiceName string

	Provider    string
	HTTPTimeout time.Duration

	WeatherAPIKey     string
	WeatherAPIBaseURL string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	OpenMeteoGeocodingURL string
	OpenMeteoForecastURL  string

	State StateConfig

	AllowedOrigins []string
	OTLPEndpoint   string
}

type StateConfig struct {
	Backend   string
	Path      string
	DSN       string
	RedisAddr string
}

// Load reads the environment, after applying an optional .env file from
// the working directory. Variables already set win over the file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	timeout := 10 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8095"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServiceName: getEnv("SERVICE_NAME", "weather-widget"),

		Provider:    strings.ToLower(getEnv("WEATHER_PROVIDER", "weatherapi")),
		HTTPTimeout: timeout,

		WeatherAPIKey:     strings.TrimSpace(os.Getenv("WEATHERAPI_KEY")),
		WeatherAPIBaseURL: strings.TrimSpace(os.Getenv("WEATHERAPI_BASE_URL")),

		OpenWeatherAPIKey:  strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		OpenWeatherBaseURL: strings.TrimSpace(os.Getenv("OPENWEATHER_BASE_URL")),

		OpenMeteoGeocodingURL: strings.TrimSpace(os.Getenv("OPENMETEO_GEOCODING_URL")),
		OpenMeteoForecastURL:  strings.TrimSpace(os.Getenv("OPENMETEO_FORECAST_URL")),

		State: StateConfig{
			Backend:   strings.ToLower(getEnv("STATE_BACKEND", "sqlite")),
			Path:      getEnv("STATE_PATH", "weather.db"),
			DSN:       strings.TrimSpace(os.Getenv("STATE_DSN")),
			RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		},

		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		OTLPEndpoint:   strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	slog.Info("weather-widget config loaded", "port", cfg.Port, "provider", cfg.Provider, "state", cfg.State.Backend)
	return cfg
}

func (c *Config) Validate() error {
	switch c.Provider {
	case "weatherapi":
		if c.WeatherAPIKey == "" && !baseURLHasKey(c.WeatherAPIBaseURL) {
			return fmt.Errorf("missing required env %s", "WEATHERAPI_KEY")
		}
	case "openweather":
		if c.OpenWeatherAPIKey == "" {
			return fmt.Errorf("missing required env %s", "OPENWEATHER_API_KEY")
		}
	case "openmeteo":
	default:
		return fmt.Errorf("unknown WEATHER_PROVIDER %q", c.Provider)
	}

	switch c.State.Backend {
	case "sqlite":
	case "postgres":
		if c.State.DSN == "" {
			return fmt.Errorf("missing required env %s", "STATE_DSN")
		}
	case "redis":
		if c.State.RedisAddr == "" {
			return fmt.Errorf("missing required env %s", "REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}
	return nil
}

func baseURLHasKey(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Query().Get("key") != ""
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
