package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls logger and metrics setup.
type Config struct {
	ServiceName    string
	Environment    string
	Version        string
	LogLevel       string
	LogFormat      string // json|text
	MetricsAddress string
}

// Provider owns the process logger.
type Provider struct {
	Logger *slog.Logger
}

// Registry owns the tracer and the Prometheus registry.
type Registry struct {
	Tracer     trace.Tracer
	Prometheus *prometheus.Registry
}

// Observability bundles what every module needs to log, trace and count.
type Observability struct {
	Provider *Provider
	Registry *Registry
	config   Config
}

// Init builds the process-wide observability stack.
func Init(cfg Config) Observability {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", cfg.ServiceName),
		slog.String("env", cfg.Environment),
		slog.String("version", cfg.Version),
	)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return Observability{
		Provider: &Provider{Logger: logger},
		Registry: &Registry{
			Tracer:     otel.Tracer(cfg.ServiceName),
			Prometheus: reg,
		},
		config: cfg,
	}
}

// NewNoop returns an Observability that discards logs and spans, for tests.
func NewNoop() Observability {
	return Observability{
		Provider: &Provider{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))},
		Registry: &Registry{
			Tracer:     noop.NewTracerProvider().Tracer("noop"),
			Prometheus: prometheus.NewRegistry(),
		},
	}
}

// MetricsHandler exposes the registry in the Prometheus text format.
func (o Observability) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(o.Registry.Prometheus, promhttp.HandlerOpts{Registry: o.Registry.Prometheus})
}

// ServeMetrics runs a standalone metrics listener until ctx is done.
// An empty MetricsAddress disables it.
func (o Observability) ServeMetrics(ctx context.Context) error {
	if o.config.MetricsAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", o.MetricsHandler())
	srv := &http.Server{
		Addr:              o.config.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
