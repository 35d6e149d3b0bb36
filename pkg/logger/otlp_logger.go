package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"google.golang.org/grpc"

	"github.com/PocketPalCo/receipts-service/config"
)

// NewObservableLogger creates a logger that writes locally and exports every record over OTLP.
func NewObservableLogger(cfg *config.Config) (*slog.Logger, *log.LoggerProvider, error) {
	ctx := context.Background()

	// Create OTLP log exporter
	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(cfg.OtlpEndpoint),
		otlploggrpc.WithInsecure(),
		otlploggrpc.WithDialOption(grpc.WithUserAgent(cfg.ServerName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	// Create resource with service information
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServerName),
			semconv.ServiceVersionKey.String(Version),
			semconv.ServiceInstanceIDKey.String(instanceID(cfg.ServerName)),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create log processor and provider
	loggerProvider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(logExporter)),
	)

	// Create OTLP slog handler
	otlpHandler := otelslog.NewHandler(cfg.ServerName,
		otelslog.WithLoggerProvider(loggerProvider),
	)

	// Create the standard logger for local output
	localLogger := NewLogger(cfg)

	multiHandler := NewMultiHandler(localLogger.Handler(), otlpHandler)

	// Create the observable logger
	observableLogger := slog.New(multiHandler).With(
		"service", cfg.ServerName,
		"version", Version,
		"environment", cfg.Environment,
	)

	return observableLogger, loggerProvider, nil
}

// Version is reported with every exported record.
var Version = "1.0.0"

func instanceID(service string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return service + "-instance"
	}
	return service + "-" + host
}

// MultiHandler sends logs to multiple handlers
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			// Clone the record for each handler
			if err := h.Handle(ctx, record.Clone()); err != nil {
				fmt.Fprintf(os.Stderr, "log handler error: %v\n", err)
			}
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}
