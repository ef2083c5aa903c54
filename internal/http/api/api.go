// Package api implements the REST API used to submit transcoding jobs and
// query their state.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	gohttpmetrics "github.com/slok/go-http-metrics/metrics"
	gohttpmiddleware "github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/dacirco/dacirco/internal/log"
	"github.com/dacirco/dacirco/internal/model"
)

//go:generate mockery --case underscore --output apimock --outpkg apimock --name ServiceApp

// ServiceApp is the application layer the API serves.
type ServiceApp interface {
	CreateJob(ctx context.Context, req model.TranscodeRequest) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context) ([]model.Job, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

const jobsBasePath = "/jobs"

// Config is the configuration of the API handler.
type Config struct {
	ServiceApp      ServiceApp
	MetricsRecorder gohttpmetrics.Recorder
	Logger          log.Logger
}

func (c *Config) defaults() error {
	if c.ServiceApp == nil {
		return fmt.Errorf("service app is required")
	}

	if c.MetricsRecorder == nil {
		c.MetricsRecorder = gohttpmetrics.Dummy
		if c.Logger != nil {
			c.Logger.Warningf("Metrics recorder disabled")
		}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"component": "api"})

	return nil
}

type api struct {
	router            chi.Router
	metricsMiddleware gohttpmiddleware.Middleware
	serviceApp        ServiceApp
	logger            log.Logger
}

// New returns the REST API HTTP handler.
func New(cfg Config) (http.Handler, error) {
	err := cfg.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := api{
		router: chi.NewRouter(),
		metricsMiddleware: gohttpmiddleware.New(gohttpmiddleware.Config{
			Recorder: cfg.MetricsRecorder,
			Service:  "dacirco-api",
		}),
		serviceApp: cfg.ServiceApp,
		logger:     cfg.Logger,
	}

	a.registerGlobalMiddlewares()
	a.registerRoutes()

	return a, nil
}

func (a api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a api) registerRoutes() {
	a.wrap(http.MethodPost, jobsBasePath, a.handlerCreateJob())
	a.wrap(http.MethodGet, jobsBasePath, a.handlerListJobs())
	a.wrap(http.MethodGet, jobsBasePath+"/{jobID}", a.handlerGetJob())
	a.wrap(http.MethodGet, jobsBasePath+"/{jobID}/state", a.handlerGetJobState())
	a.wrap(http.MethodGet, "/stats", a.handlerStats())
	a.wrap(http.MethodGet, "/healthz", a.handlerHealthz())
}

func (a api) wrap(method, pattern string, h http.HandlerFunc) {
	a.router.With(
		std.HandlerProvider(pattern, a.metricsMiddleware),
	).Method(method, pattern, h)
}

type chiMiddleware = func(next http.Handler) http.Handler

func (a api) registerGlobalMiddlewares() {
	a.router.Use(
		a.logMiddleware(),
	)
}

func (a api) logMiddleware() chiMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.logger.WithValues(log.Kv{
				"url":    r.URL,
				"method": r.Method,
			}).Debugf("Request received")

			next.ServeHTTP(w, r)
		})
	}
}
