package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/duluk/weather-widget/internal/observability"
	"github.com/duluk/weather-widget/internal/view"
	"github.com/duluk/weather-widget/internal/widget"
	"github.com/duluk/weather-widget/pkg/weather"
)

type Server struct {
	app    *widget.App
	page   *view.Page
	hub    *view.Hub
	logger *slog.Logger
	tracer trace.Tracer

	allowedOrigins []string
}

type Options struct {
	App            *widget.App
	Page           *view.Page
	Hub            *view.Hub
	Logger         *slog.Logger
	Tracer         trace.Tracer
	AllowedOrigins []string
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("httpapi")
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		app:            opts.App,
		page:           opts.Page,
		hub:            opts.Hub,
		logger:         opts.Logger,
		tracer:         opts.Tracer,
		allowedOrigins: opts.AllowedOrigins,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(observability.Middleware(s.tracer))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", observability.Handler())

	r.Get("/", s.handlePage)
	r.Post("/", s.handleSubmitForm)

	r.Route("/api", func(r chi.Router) {
		s.RegisterRoutes(r)
	})
	return r
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/forecast", s.handleGetForecast)
	r.Post("/forecast", s.handlePostForecast)
	r.Handle("/events", s.hub)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var flash *view.Notification
	if n, ok := s.page.Flash(r.URL.Query().Get("n")); ok {
		flash = &n
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Write(w, flash); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// handleSubmitForm runs the submission, then redirects back to the page so
// a reload does not resubmit.
func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	raw := r.FormValue("query")
	s.page.SetInput(raw)

	// The fetch is not cancelled if the browser goes away mid-request.
	var own view.Collector
	_, _ = s.app.SubmitQueryWith(context.WithoutCancel(r.Context()), raw, &own)

	location := "/"
	if n, ok := own.Notification(); ok {
		location = "/?n=" + s.page.AddFlash(n)
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (s *Server) handleGetForecast(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.page.Snapshot())
}

type forecastRequest struct {
	Query string `json:"query"`
}

func (s *Server) handlePostForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	res, err := s.app.SubmitQuery(context.WithoutCancel(r.Context()), req.Query)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error(), "kind": string(weather.Kind(err))})
		return
	}
	writeJSON(w, http.StatusOK, view.Project(res))
}

func statusFor(err error) int {
	switch weather.Kind(err) {
	case weather.KindValidation:
		return http.StatusBadRequest
	case weather.KindNetwork:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
