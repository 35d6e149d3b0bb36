package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"google.golang.org/grpc"

	"github.com/PocketPalCo/receipts-service/config"
	"github.com/PocketPalCo/receipts-service/internal/infra/postgres"
	"github.com/PocketPalCo/receipts-service/pkg/telemetry"
)

type Server struct {
	cfg            *config.Config
	app            *fiber.App
	db             postgres.DB
	traceProvider  *sdktrace.TracerProvider
	metricProvider *metric.MeterProvider
	loggerProvider interface{ Shutdown(context.Context) error } // log.LoggerProvider interface
	wg             sync.WaitGroup
}

// New sets up tracing and metric export. dbConn may be nil when persistence is disabled.
func New(ctx context.Context, cfg *config.Config, dbConn *pgxpool.Pool) (*Server, error) {
	traceExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jaeger exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OtlpEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithUserAgent(cfg.ServerName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServerName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(provider)

	if err := telemetry.InitTelemetry(provider, dbConn); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	s := &Server{
		cfg:            cfg,
		traceProvider:  tp,
		metricProvider: provider,
	}

	if dbConn != nil {
		instrumentedConn, err := telemetry.NewInstrumentedPool(provider, dbConn)
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumented pool: %w", err)
		}
		s.db = instrumentedConn
	}

	return s, nil
}

// DB returns the instrumented connection, or nil without a database.
func (s *Server) DB() postgres.DB {
	return s.db
}

// SetLoggerProvider registers the OTLP log provider so it is flushed on shutdown.
func (s *Server) SetLoggerProvider(p interface{ Shutdown(context.Context) error }) {
	s.loggerProvider = p
}

func (s *Server) Start(processor ReceiptProcessor) {
	s.app = NewApp(s.cfg, processor)

	slog.Info("Starting HTTP server", slog.String("address", s.cfg.ServerAddress))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.app.Listen(s.cfg.ServerAddress); err != nil {
			slog.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()
}

func (s *Server) Shutdown() {
	slog.Info("Shutting down server")

	if s.app != nil {
		if err := s.app.ShutdownWithTimeout(time.Duration(s.cfg.ServerReadTimeout) * time.Second); err != nil {
			slog.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	s.wg.Wait()

	if err := s.traceProvider.Shutdown(context.Background()); err != nil {
		slog.Error("Error shutting down trace provider", slog.String("error", err.Error()))
	}

	if err := s.metricProvider.Shutdown(context.Background()); err != nil {
		slog.Error("Error shutting down metric provider", slog.String("error", err.Error()))
	}

	if s.loggerProvider != nil {
		if err := s.loggerProvider.Shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down log provider", slog.String("error", err.Error()))
		}
	}

	if s.db != nil {
		s.db.Close()
	}

	slog.Info("Server shut down successfully")
}
