package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/duluk/weather-widget/internal/state"
	"github.com/duluk/weather-widget/internal/view"
	"github.com/duluk/weather-widget/pkg/weather"
	"github.com/duluk/weather-widget/pkg/weather/weatherapi"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Forecast(ctx context.Context, cityKey string) (*weather.ForecastResult, error) {
	args := m.Called(ctx, cityKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*weather.ForecastResult), args.Error(1)
}

type recordingView struct {
	mu       sync.Mutex
	statuses []view.Status
	panels   []view.Panel
	notes    []view.Notification
	resets   int
}

func (v *recordingView) SetStatus(s view.Status) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, s)
}

func (v *recordingView) Render(p view.Panel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.panels = append(v.panels, p)
}

func (v *recordingView) Notify(n view.Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notes = append(v.notes, n)
}

func (v *recordingView) ResetInput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resets++
}

func openTestStore(t *testing.T) state.Store {
	t.Helper()
	dsn := "file:widget_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	s, err := state.NewGorm(db)
	require.NoError(t, err)
	return s
}

func forecastFor(name string) *weather.ForecastResult {
	base := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	days := make([]weather.DailyForecast, weather.ForecastDays)
	for i := range days {
		days[i] = weather.DailyForecast{Date: base.AddDate(0, 0, i), MinTempC: float64(i), MaxTempC: float64(10 + i)}
	}
	return &weather.ForecastResult{
		Location: weather.Location{Name: name, Region: "Region", Country: "Country"},
		Current:  weather.CurrentWeather{Condition: weather.Condition{Text: "Sunny"}, IsDay: true, TempC: 21.5},
		Days:     days,
	}
}

func newTestApp(t *testing.T, p weather.Provider) (*App, *recordingView, state.Store) {
	t.Helper()
	store := openTestStore(t)
	rv := &recordingView{}
	return New(Options{Store: store, Provider: p, View: rv}), rv, store
}

func storedCity(t *testing.T, s state.Store) (string, bool) {
	t.Helper()
	v, ok, err := s.Get(context.Background(), state.KeyCity)
	require.NoError(t, err)
	return v, ok
}

func TestSubmitWhitespaceIsValidationError(t *testing.T) {
	for _, in := range []string{"", " ", "\t\n", "   \t  "} {
		p := &mockProvider{}
		app, rv, store := newTestApp(t, p)

		res, err := app.SubmitQuery(context.Background(), in)
		assert.Nil(t, res)
		var ve *weather.ValidationError
		require.True(t, errors.As(err, &ve), "input %q", in)
		assert.Equal(t, "field required", ve.Message)

		p.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)
		require.Len(t, rv.notes, 1)
		assert.Equal(t, view.LevelWarning, rv.notes[0].Level)
		assert.Empty(t, rv.statuses, "validation must not enter Loading")
		_, ok := storedCity(t, store)
		assert.False(t, ok)
	}
}

func TestSubmitPersistsNormalizedCity(t *testing.T) {
	p := &mockProvider{}
	p.On("Forecast", mock.Anything, "paris").Return(forecastFor("Paris"), nil).Once()
	app, rv, store := newTestApp(t, p)

	_, err := app.SubmitQuery(context.Background(), "  PaRiS \t")
	require.NoError(t, err)
	p.AssertExpectations(t)

	city, ok := storedCity(t, store)
	require.True(t, ok)
	assert.Equal(t, "paris", city)
	assert.Equal(t, []view.Status{view.StatusLoading, view.StatusIdle}, rv.statuses)
	assert.Equal(t, 1, rv.resets)
}

func TestSubmitRendersForecast(t *testing.T) {
	p := &mockProvider{}
	p.On("Forecast", mock.Anything, "paris").Return(forecastFor("Paris"), nil)
	app, rv, _ := newTestApp(t, p)

	_, err := app.SubmitQuery(context.Background(), "paris")
	require.NoError(t, err)

	require.Len(t, rv.panels, 1)
	panel := rv.panels[0]
	assert.Equal(t, "Paris", panel.Title)
	assert.Equal(t, "21.5", panel.Temp)
	require.Len(t, panel.Days, 5)
	for i := 1; i < len(panel.Days); i++ {
		assert.Less(t, panel.Days[i-1].Date, panel.Days[i].Date)
	}
}

func TestSubmitAPIErrorDoesNotPersist(t *testing.T) {
	p := &mockProvider{}
	p.On("Forecast", mock.Anything, "zzz").
		Return(nil, &weather.APIError{Status: http.StatusBadRequest, Message: "No matching location found."})
	app, rv, store := newTestApp(t, p)

	_, err := app.SubmitQuery(context.Background(), "zzz")
	var apiErr *weather.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "No matching location found.", apiErr.Message)

	_, ok := storedCity(t, store)
	assert.False(t, ok)
	assert.Empty(t, rv.panels)
	require.Len(t, rv.notes, 1)
	assert.Equal(t, view.Notification{Level: view.LevelDanger, Message: "No matching location found."}, rv.notes[0])
	assert.Equal(t, 1, rv.resets)
	assert.Equal(t, []view.Status{view.StatusLoading, view.StatusIdle}, rv.statuses)
}

func TestSubmitNetworkErrorUsesGenericMessage(t *testing.T) {
	p := &mockProvider{}
	p.On("Forecast", mock.Anything, "paris").Return(nil, &weather.NetworkError{Err: errors.New("dial tcp: refused")})
	app, rv, _ := newTestApp(t, p)

	_, err := app.SubmitQuery(context.Background(), "paris")
	assert.Equal(t, weather.KindNetwork, weather.Kind(err))
	require.Len(t, rv.notes, 1)
	assert.Equal(t, msgFetchFailed, rv.notes[0].Message)
}

func TestSubmitTwiceIsIdempotent(t *testing.T) {
	p := &mockProvider{}
	p.On("Forecast", mock.Anything, "paris").Return(forecastFor("Paris"), nil).Twice()
	app, rv, _ := newTestApp(t, p)

	for i := 0; i < 2; i++ {
		_, err := app.SubmitQuery(context.Background(), "Paris")
		require.NoError(t, err)
	}
	require.Len(t, rv.panels, 2)
	assert.Equal(t, rv.panels[0], rv.panels[1])
}

func TestRestoreWithoutStoredCity(t *testing.T) {
	p := &mockProvider{}
	app, rv, _ := newTestApp(t, p)

	require.NoError(t, app.RestoreLastQuery(context.Background()))
	p.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)
	assert.Empty(t, rv.statuses)
}

func TestRestoreFailureIsReportedAndNonFatal(t *testing.T) {
	p := &mockProvider{}
	p.On("Forecast", mock.Anything, "atlantis").
		Return(nil, &weather.APIError{Status: http.StatusBadRequest, Message: "No matching location found."}).Once()
	p.On("Forecast", mock.Anything, "paris").Return(forecastFor("Paris"), nil).Once()
	app, rv, store := newTestApp(t, p)
	require.NoError(t, store.Set(context.Background(), state.KeyCity, "atlantis"))

	err := app.RestoreLastQuery(context.Background())
	require.Error(t, err)
	require.Len(t, rv.notes, 1)
	assert.Equal(t, 1, rv.resets)

	_, err = app.SubmitQuery(context.Background(), "paris")
	require.NoError(t, err)
	require.Len(t, rv.panels, 1)
}

func TestRestoreIssuesSameRequestAsSubmit(t *testing.T) {
	var mu sync.Mutex
	var urls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		urls = append(urls, r.URL.String())
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
	}))
	defer srv.Close()

	provider, err := weatherapi.New(srv.URL+"/v1/forecast.json", "k", srv.Client(), nil)
	require.NoError(t, err)

	restoring, _, store := newTestApp(t, provider)
	require.NoError(t, store.Set(context.Background(), state.KeyCity, "london"))
	_ = restoring.RestoreLastQuery(context.Background())

	submitting := New(Options{Store: openTestStore(t), Provider: provider, View: &recordingView{}})
	_, _ = submitting.SubmitQuery(context.Background(), "London")

	require.Len(t, urls, 2)
	assert.Equal(t, urls[0], urls[1])
	assert.Contains(t, urls[0], "q=london&days=5&aqi=no&alerts=no")
}

// gatedProvider blocks each city until its gate is closed.
type gatedProvider struct {
	started chan string
	gates   map[string]chan struct{}
}

func (g *gatedProvider) Name() string { return "gated" }

func (g *gatedProvider) Forecast(ctx context.Context, cityKey string) (*weather.ForecastResult, error) {
	g.started <- cityKey
	<-g.gates[cityKey]
	return forecastFor(strings.ToUpper(cityKey[:1]) + cityKey[1:]), nil
}

func TestLatestSubmissionWins(t *testing.T) {
	g := &gatedProvider{
		started: make(chan string, 2),
		gates:   map[string]chan struct{}{"paris": make(chan struct{}), "london": make(chan struct{})},
	}
	app, rv, store := newTestApp(t, g)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = app.SubmitQuery(ctx, "paris")
	}()
	require.Equal(t, "paris", <-g.started)

	londonDone := make(chan struct{})
	go func() {
		defer close(londonDone)
		_, _ = app.SubmitQuery(ctx, "london")
	}()
	require.Equal(t, "london", <-g.started)

	close(g.gates["london"])
	<-londonDone
	close(g.gates["paris"])
	wg.Wait()

	require.Len(t, rv.panels, 1, "superseded result must not render")
	assert.Equal(t, "London", rv.panels[0].Title)
	city, ok := storedCity(t, store)
	require.True(t, ok)
	assert.Equal(t, "london", city)
	assert.Equal(t, []view.Status{view.StatusLoading, view.StatusLoading, view.StatusIdle}, rv.statuses)
}

func TestRenderEmptyIsNoop(t *testing.T) {
	app, rv, _ := newTestApp(t, &mockProvider{})
	app.Render(nil)
	app.Render(&weather.ForecastResult{})
	assert.Empty(t, rv.panels)
}

func TestSubmitQueryWithScopesNotification(t *testing.T) {
	p := &mockProvider{}
	p.On("Forecast", mock.Anything, "paris").Return(forecastFor("Paris"), nil)
	p.On("Forecast", mock.Anything, "zzz").
		Return(nil, &weather.APIError{Status: http.StatusBadRequest, Message: "No matching location found."})
	app, rv, _ := newTestApp(t, p)
	ctx := context.Background()

	var failed view.Collector
	_, err := app.SubmitQueryWith(ctx, "zzz", &failed)
	require.Error(t, err)
	n, ok := failed.Notification()
	require.True(t, ok)
	assert.Equal(t, "No matching location found.", n.Message)

	var succeeded view.Collector
	_, err = app.SubmitQueryWith(ctx, "paris", &succeeded)
	require.NoError(t, err)
	_, ok = succeeded.Notification()
	assert.False(t, ok, "a successful submission raises no notification")

	assert.Len(t, rv.notes, 1, "the shared view still sees every notification")
}

type blockingStore struct {
	state.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Set(ctx context.Context, key, value string) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.Store.Set(ctx, key, value)
}

func TestSlowPersistDoesNotBlockNextSubmission(t *testing.T) {
	p := &mockProvider{}
	p.On("Forecast", mock.Anything, mock.Anything).Return(forecastFor("Paris"), nil)
	store := &blockingStore{Store: openTestStore(t), entered: make(chan struct{}), release: make(chan struct{})}
	rv := &recordingView{}
	app := New(Options{Store: store, Provider: p, View: rv})
	ctx := context.Background()

	parisDone := make(chan struct{})
	go func() {
		defer close(parisDone)
		_, _ = app.SubmitQuery(ctx, "paris")
	}()
	<-store.entered

	londonDone := make(chan struct{})
	go func() {
		defer close(londonDone)
		_, _ = app.SubmitQuery(ctx, "london")
	}()
	require.Eventually(t, func() bool {
		rv.mu.Lock()
		defer rv.mu.Unlock()
		return len(rv.statuses) >= 3
	}, time.Second, 5*time.Millisecond, "second submission must reach Loading while the first persists")

	close(store.release)
	<-parisDone
	<-londonDone

	city, ok := storedCity(t, store)
	require.True(t, ok)
	assert.Equal(t, "london", city)
}
