package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"txfanout/internal/analytics"
	"txfanout/internal/config"
	"txfanout/internal/constants"
	"txfanout/internal/generator"
	"txfanout/internal/logger"
	"txfanout/pkg/bootstrap"
	"txfanout/pkg/health"
	"txfanout/pkg/logging"
	"txfanout/pkg/metrics"
	"txfanout/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	analytics      *analytics.Client
	generator      *generator.Generator
	clock          generator.Clock
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("generator-service")
	}
	return &App{
		Base:  bootstrap.NewBase(cfg, log),
		clock: generator.NewSystemClock(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitProducer(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if a.Config.Analytics.Application != "" {
		a.analytics = analytics.NewClient(a.Config.Analytics, a.Logger)
	}

	outputTopic := a.Config.Broker.Kafka.OutputTopic
	if outputTopic == "" {
		outputTopic = constants.DefaultStreamTopic
	}
	a.generator = generator.NewGeneratorWithClock(a.Producer, a.Config.Generator, outputTopic, a.Logger, a.clock)

	tp, err := tracing.Init(a.Config.Tracing, "generator-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterGeneratorMetrics()
	metrics.RegisterBrokerMetrics()

	if a.Config.Server.Port > 0 {
		a.initHTTPServer()
	}

	return nil
}

// initHTTPServer exposes health and metrics only; the generator has no
// request surface.
func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}
}

// bootstrap starts the analytics application when one is configured. A start
// that actually kicked the application off is followed by a settle wait so
// the job is consuming before the first record lands.
func (a *App) bootstrap(ctx context.Context) error {
	if a.analytics == nil {
		return nil
	}

	appName := a.Config.Analytics.Application

	result, err := a.analytics.StartApplication(ctx)
	if err != nil {
		metrics.IncGeneratorBootstrap("error")
		return fmt.Errorf("failed to start analytics application %s: %w", appName, err)
	}
	metrics.IncGeneratorBootstrap(result.String())

	if result == analytics.ResultAlreadyRunning {
		a.Logger.InfowCtx(ctx, "Analytics application already running, skipping settle wait",
			"application", appName,
		)
		return nil
	}

	settle := a.Config.Analytics.Settle
	if settle <= 0 {
		settle = constants.DefaultSettleTime
	}

	a.Logger.InfowCtx(ctx, "Analytics application starting, waiting for it to settle",
		"application", appName,
		"settle", settle.String(),
	)

	if err := a.clock.Sleep(ctx, settle); err != nil {
		return nil
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	if err := a.bootstrap(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("HTTP server shutdown error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stop()
		return a.generator.Run(gCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "generator-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down generator service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
