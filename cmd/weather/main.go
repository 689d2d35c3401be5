package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/duluk/weather-widget/internal/config"
	"github.com/duluk/weather-widget/internal/httpapi"
	"github.com/duluk/weather-widget/internal/observability"
	"github.com/duluk/weather-widget/internal/state"
	"github.com/duluk/weather-widget/internal/view"
	"github.com/duluk/weather-widget/internal/widget"
	"github.com/duluk/weather-widget/pkg/weather"
	"github.com/duluk/weather-widget/pkg/weather/openmeteo"
	"github.com/duluk/weather-widget/pkg/weather/openweather"
	"github.com/duluk/weather-widget/pkg/weather/weatherapi"
)

func usage() {
	fmt.Println("Usage: weather [<city> | -last] [-provider=<name>] [-debug]")
	fmt.Println("Examples: weather                          serve the widget on $PORT")
	fmt.Println("          weather \"Boston\"                 print the forecast for Boston and remember it")
	fmt.Println("          weather -last                    print the forecast for the last city")
	fmt.Println("          weather Boston -provider=openmeteo")
}

func newProvider(cfg *config.Config, logger *slog.Logger) (weather.Provider, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	switch cfg.Provider {
	case "weatherapi":
		p, err := weatherapi.New(cfg.WeatherAPIBaseURL, cfg.WeatherAPIKey, httpClient, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openmeteo":
		return openmeteo.New(cfg.OpenMeteoGeocodingURL, cfg.OpenMeteoForecastURL, httpClient, logger), nil
	case "openweather":
		return openweather.New(cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		usage()
		return
	}

	var words []string
	debugMode := false
	providerName := ""
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "-provider="):
			providerName = strings.TrimPrefix(arg, "-provider=")
		case arg == "-debug":
			debugMode = true
		default:
			words = append(words, arg)
		}
	}

	cfg := config.Load()
	if providerName != "" {
		cfg.Provider = strings.ToLower(providerName)
	}
	if debugMode {
		cfg.LogLevel = "debug"
	}
	setupLogging(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := state.Open(ctx, state.Options{
		Backend:   cfg.State.Backend,
		Path:      cfg.State.Path,
		DSN:       cfg.State.DSN,
		RedisAddr: cfg.State.RedisAddr,
	})
	if err != nil {
		slog.Error("state store unavailable", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	provider, err := newProvider(cfg, slog.Default())
	if err != nil {
		slog.Error("provider setup failed", "error", err)
		os.Exit(1)
	}

	if len(words) > 0 {
		code := runOnce(ctx, store, provider, words)
		store.Close()
		os.Exit(code)
	}
	serve(ctx, cfg, store, provider)
}

// runOnce drives the widget a single time and prints to the terminal.
func runOnce(ctx context.Context, store state.Store, provider weather.Provider, args []string) int {
	app := widget.New(widget.Options{Store: store, Provider: provider, View: view.NewText(os.Stdout)})

	var err error
	if args[0] == "-last" {
		err = app.RestoreLastQuery(ctx)
	} else {
		_, err = app.SubmitQuery(ctx, strings.Join(args, " "))
	}
	if err != nil {
		slog.Debug("query failed", "error", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, store state.Store, provider weather.Provider) {
	shutdownTracing, tracer, err := observability.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("observability setup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	page := view.NewPage()
	hub := view.NewHub()
	app := widget.New(widget.Options{
		Store:    store,
		Provider: provider,
		View:     view.Multi{page, hub},
		Logger:   slog.Default(),
		Tracer:   tracer,
	})

	if err := app.RestoreLastQuery(ctx); err != nil {
		slog.Warn("could not restore last query", "error", err)
	}

	srv := httpapi.NewServer(httpapi.Options{
		App:            app,
		Page:           page,
		Hub:            hub,
		Logger:         slog.Default(),
		Tracer:         tracer,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := run(httpSrv, provider.Name()); err != nil {
		slog.Error("server error", "error", err)
		_ = shutdownTracing(context.Background())
		store.Close()
		os.Exit(1)
	}
}

// run serves until SIGINT/SIGTERM or until the listener fails.
func run(httpSrv *http.Server, providerName string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("weather-widget started", "addr", httpSrv.Addr, "provider", providerName)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}
