package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogfiber "github.com/samber/slog-fiber"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"

	"github.com/PocketPalCo/receipts-service/config"
	"github.com/PocketPalCo/receipts-service/internal/core/pipeline"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

// MaxBatchReceipts caps the number of receipts accepted by one batch request.
const MaxBatchReceipts = 100

// ReceiptProcessor is the part of pipeline.Service the HTTP layer calls.
type ReceiptProcessor interface {
	ProcessReceipt(ctx context.Context, in pipeline.Input) (*receipts.Receipt, error)
	ProcessReceipts(ctx context.Context, inputs []pipeline.Input) []*receipts.Receipt
}

// Images are base64 strings in JSON and decode straight into bytes.
type receiptRequest struct {
	ID      string   `json:"id"`
	RawText string   `json:"raw_text"`
	Images  [][]byte `json:"images"`
}

func (r receiptRequest) input() pipeline.Input {
	return pipeline.Input{ID: r.ID, RawText: r.RawText, Images: r.Images}
}

type batchRequest struct {
	Receipts []receiptRequest `json:"receipts"`
}

type receiptResponse struct {
	*receipts.Receipt
	NeedsReview bool `json:"needs_review"`
}

type batchResult struct {
	Index   int              `json:"index"`
	Receipt *receiptResponse `json:"receipt,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func newReceiptResponse(r *receipts.Receipt) *receiptResponse {
	return &receiptResponse{Receipt: r, NeedsReview: r.NeedsReview()}
}

// NewApp builds the fiber application with middlewares and routes.
func NewApp(cfg *config.Config, processor ReceiptProcessor) *fiber.App {
	app := fiber.New(cfg.Fiber())
	initGlobalMiddlewares(app, cfg)
	registerHttpRoutes(app, processor)
	return app
}

func initGlobalMiddlewares(app *fiber.App, cfg *config.Config) {
	app.Use(
		compress.New(compress.Config{
			Level: compress.LevelDefault,
		}),

		slogfiber.NewWithFilters(slog.Default(), slogfiber.IgnorePath("/health")),

		cors.New(cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, OPTIONS",
		}),

		favicon.New(),
		limiter.New(limiter.Config{
			Max:               cfg.RateLimitMax,
			Expiration:        time.Duration(cfg.RateLimitWindow) * time.Second,
			LimiterMiddleware: limiter.SlidingWindow{},
		}),
	)

	app.Use(otelfiber.Middleware())
}

type receiptHandlers struct {
	processor ReceiptProcessor
	requests  api.Int64Counter
	duration  api.Float64Histogram
}

func newReceiptHandlers(processor ReceiptProcessor) *receiptHandlers {
	meter := otel.Meter("http")
	requests, err := meter.Int64Counter("http_requests_total",
		api.WithDescription("Total number of HTTP requests."))
	if err != nil {
		slog.Error("Error creating http_requests_total counter", slog.String("error", err.Error()))
	}
	duration, err := meter.Float64Histogram("http_request_duration_ms",
		api.WithDescription("Duration of HTTP requests in milliseconds."),
		api.WithUnit("ms"))
	if err != nil {
		slog.Error("Error creating http_request_duration_ms histogram", slog.String("error", err.Error()))
	}
	return &receiptHandlers{processor: processor, requests: requests, duration: duration}
}

func registerHttpRoutes(app *fiber.App, processor ReceiptProcessor) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "timestamp": time.Now().Unix()})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h := newReceiptHandlers(processor)

	apiRoutes := app.Group("/v1/receipts")
	apiRoutes.Post("/parse", h.withMetrics(h.parse))
	apiRoutes.Post("/batch", h.withMetrics(h.batch))
}

func (h *receiptHandlers) parse(c *fiber.Ctx) error {
	var req receiptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	receipt, err := h.processor.ProcessReceipt(c.UserContext(), req.input())
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyReceipt) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		slog.Error("Receipt processing failed",
			"component", "http_handler",
			"endpoint", "/v1/receipts/parse",
			"source_id", req.ID,
			"error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing failed"})
	}

	return c.JSON(newReceiptResponse(receipt))
}

func (h *receiptHandlers) batch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(req.Receipts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no receipts in request"})
	}
	if len(req.Receipts) > MaxBatchReceipts {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "too many receipts in request"})
	}

	inputs := make([]pipeline.Input, len(req.Receipts))
	for i, r := range req.Receipts {
		inputs[i] = r.input()
	}

	processed := h.processor.ProcessReceipts(c.UserContext(), inputs)

	results := make([]batchResult, len(processed))
	for i, receipt := range processed {
		results[i].Index = i
		if receipt == nil {
			results[i].Error = pipeline.ErrEmptyReceipt.Error()
			continue
		}
		results[i].Receipt = newReceiptResponse(receipt)
	}

	return c.JSON(fiber.Map{"results": results})
}

func (h *receiptHandlers) withMetrics(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := handler(c)

		durationMs := float64(time.Since(start).Milliseconds())
		attrs := api.WithAttributes(
			attribute.String("method", c.Method()),
			attribute.String("path", c.Route().Path),
			attribute.Int("status_code", c.Response().StatusCode()),
		)

		if h.requests != nil {
			h.requests.Add(c.UserContext(), 1, attrs)
		}
		if h.duration != nil {
			h.duration.Record(c.UserContext(), durationMs, attrs)
		}

		return err
	}
}
