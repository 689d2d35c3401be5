// Package widget runs the forecast request cycle: fetch, render, persist.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/duluk/weather-widget/internal/observability"
	"github.com/duluk/weather-widget/internal/state"
	"github.com/duluk/weather-widget/internal/view"
	"github.com/duluk/weather-widget/pkg/weather"
)

const (
	msgFieldRequired = "Please fill the field."
	msgFetchFailed   = "Unable to load the forecast. Please try again."
)

// App is the ForecastClient. It owns no globals: the store, provider and
// view are handed in once at startup.
//
// Submissions are not serialized. Each one takes a ticket and only the
// newest ticket may render, persist or notify when it completes; older
// completions are dropped.
type App struct {
	store    state.Store
	provider weather.Provider
	view     view.View
	logger   *slog.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	latest uint64

	// persistMu orders writes of the city key; persisted is the newest
	// ticket written so far.
	persistMu sync.Mutex
	persisted uint64
}

type Options struct {
	Store    state.Store
	Provider weather.Provider
	View     view.View
	Logger   *slog.Logger
	Tracer   trace.Tracer
}

func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("widget")
	}
	return &App{
		store:    opts.Store,
		provider: opts.Provider,
		view:     opts.View,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
	}
}

// RestoreLastQuery repeats the persisted query, if any. A failure is
// reported to the view and returned, but leaves the app usable.
func (a *App) RestoreLastQuery(ctx context.Context) error {
	cityKey, ok, err := a.store.Get(ctx, state.KeyCity)
	if err != nil {
		return fmt.Errorf("read last query: %w", err)
	}
	if !ok || cityKey == "" {
		return nil
	}
	_, err = a.run(ctx, cityKey, false, a.view)
	return err
}

func (a *App) SubmitQuery(ctx context.Context, raw string) (*weather.ForecastResult, error) {
	return a.submit(ctx, raw, a.view)
}

// SubmitQueryWith is SubmitQuery with extra also receiving the events of
// this one submission, e.g. a Collector owned by the caller.
func (a *App) SubmitQueryWith(ctx context.Context, raw string, extra view.View) (*weather.ForecastResult, error) {
	return a.submit(ctx, raw, view.Multi{a.view, extra})
}

func (a *App) submit(ctx context.Context, raw string, v view.View) (*weather.ForecastResult, error) {
	cityKey := weather.NormalizeCity(raw)
	if cityKey == "" {
		v.Notify(view.Notification{Level: view.LevelWarning, Message: msgFieldRequired})
		return nil, &weather.ValidationError{Field: "query", Message: "field required"}
	}
	return a.run(ctx, cityKey, true, v)
}

func (a *App) FetchForecast(ctx context.Context, cityKey string) (*weather.ForecastResult, error) {
	ctx, span := a.tracer.Start(ctx, "FetchForecast", trace.WithAttributes(
		attribute.String("weather.city", cityKey),
		attribute.String("weather.provider", a.provider.Name()),
	))
	defer span.End()

	start := time.Now()
	res, err := a.provider.Forecast(ctx, cityKey)
	outcome := "success"
	if err != nil {
		outcome = string(weather.Kind(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.ObserveFetch(a.provider.Name(), outcome, time.Since(start))
	return res, err
}

// Render is a no-op for an empty result.
func (a *App) Render(res *weather.ForecastResult) {
	if res.Empty() {
		return
	}
	a.view.Render(view.Project(res))
}

func (a *App) run(ctx context.Context, cityKey string, persist bool, v view.View) (*weather.ForecastResult, error) {
	ticket := a.begin(v)
	log := a.logger.With("submission", uuid.NewString(), "city", cityKey, "provider", a.provider.Name())
	log.Debug("fetching forecast", "persist", persist)

	res, err := a.FetchForecast(ctx, cityKey)

	current := a.finish(ticket, v, func() {
		if err != nil {
			v.Notify(notificationFor(err))
		} else if !res.Empty() {
			v.Render(view.Project(res))
		}
		v.ResetInput()
	})
	if !current {
		log.Info("discarding superseded forecast", "error", err)
		return res, err
	}

	switch {
	case err == nil:
		if persist {
			a.persistCity(ctx, ticket, cityKey, log)
		}
		log.Info("forecast rendered", "days", len(res.Days))
	case weather.Kind(err) == weather.KindAPI:
		log.Warn("forecast rejected", "error", err)
	default:
		log.Error("forecast failed", "error", err)
	}
	return res, err
}

func (a *App) begin(v view.View) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latest++
	v.SetStatus(view.StatusLoading)
	return a.latest
}

// finish applies fn and returns to Idle only if ticket is still the newest
// submission. fn must not block.
func (a *App) finish(ticket uint64, v view.View, fn func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ticket != a.latest {
		return false
	}
	fn()
	v.SetStatus(view.StatusIdle)
	return true
}

// persistCity writes the city key unless a newer submission already did.
// It runs outside a.mu so store latency never delays a new submission.
func (a *App) persistCity(ctx context.Context, ticket uint64, cityKey string, log *slog.Logger) {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()
	if ticket < a.persisted {
		return
	}
	if err := a.store.Set(ctx, state.KeyCity, cityKey); err != nil {
		log.Error("persist last query failed", "error", err)
		return
	}
	a.persisted = ticket
}

func notificationFor(err error) view.Notification {
	var apiErr *weather.APIError
	if errors.As(err, &apiErr) {
		return view.Notification{Level: view.LevelDanger, Message: apiErr.Message}
	}
	return view.Notification{Level: view.LevelDanger, Message: msgFetchFailed}
}
