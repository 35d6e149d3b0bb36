// Package pipeline runs a receipt through extraction, shop post-processing,
// arithmetic verification and product resolution.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/PocketPalCo/receipts-service/internal/core/batch"
	"github.com/PocketPalCo/receipts-service/internal/core/extraction"
	"github.com/PocketPalCo/receipts-service/internal/core/knowledge"
	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
	"github.com/PocketPalCo/receipts-service/internal/core/strategy"
	"github.com/PocketPalCo/receipts-service/internal/core/verify"
)

var tracer = otel.Tracer("receipt-pipeline")

const (
	DefaultReceiptTimeout     = 120 * time.Second
	DefaultReceiptConcurrency = 4
)

// Input is one receipt to read: OCR text, page images, or both.
type Input struct {
	ID      string
	RawText string
	Images  [][]byte
}

// Extractor reads a receipt into raw guesses. It reports failure inside the result.
type Extractor interface {
	Extract(ctx context.Context, rawText string, images [][]byte) receipts.RawExtraction
}

// ItemNormalizer attaches a ProductMatch to every non-synthetic item.
type ItemNormalizer interface {
	ResolveItems(ctx context.Context, items []receipts.ReceiptItem) ([]receipts.ReceiptItem, bool)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Knowledge  *knowledge.Base
	Extractor  Extractor
	Strategies *strategy.Resolver
	Verifier   *verify.Verifier
	Normalizer ItemNormalizer
	// Limiter gates extraction calls; share it with the normalizer.
	Limiter *batch.Limiter
	Logger  *slog.Logger
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	Deps
	receiptTimeout     time.Duration
	receiptConcurrency int
	now                func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithReceiptTimeout bounds the processing time of one receipt.
func WithReceiptTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.receiptTimeout = d
		}
	}
}

// WithReceiptConcurrency bounds how many receipts ProcessMany runs at once.
func WithReceiptConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.receiptConcurrency = n
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(deps Deps, opts ...Option) *Pipeline {
	if deps.Knowledge == nil {
		deps.Knowledge = knowledge.Default()
	}
	if deps.Strategies == nil {
		deps.Strategies = strategy.NewResolver(deps.Knowledge)
	}
	if deps.Verifier == nil {
		deps.Verifier = verify.New(verify.DefaultTolerance, verify.DefaultTolerance)
	}
	if deps.Limiter == nil {
		deps.Limiter = batch.NewLimiter(batch.DefaultConcurrency)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	p := &Pipeline{
		Deps:               deps,
		receiptTimeout:     DefaultReceiptTimeout,
		receiptConcurrency: DefaultReceiptConcurrency,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process never returns an error: every stage failure degrades the receipt and
// is visible in its report. The returned receipt shares no memory with the pipeline.
func (p *Pipeline) Process(ctx context.Context, in Input) *receipts.Receipt {
	ctx, cancel := context.WithTimeout(ctx, p.receiptTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "pipeline.Process")
	defer span.End()

	raw := p.extract(ctx, in)
	if raw.Failed {
		p.Logger.Warn("Receipt extraction failed", "source_id", in.ID, "error", raw.Error)
	}

	items := extraction.ToItems(raw)

	strat := p.Strategies.Select(raw.ShopNameGuess)
	items = strat.PostProcess(items)

	items, report := p.Verifier.Verify(items, raw.TotalText)

	if raw.Failed {
		report.AddFlag(receipts.FlagExtractionFailure)
		report.Notes = append(report.Notes, fmt.Sprintf("extraction failed: %s", raw.Error))
		report.Status = receipts.ReportFlaggedForReview
	}

	if p.Normalizer != nil && len(items) > 0 {
		var degraded bool
		items, degraded = p.Normalizer.ResolveItems(ctx, items)
		if degraded {
			report.AddFlag(receipts.FlagDegradedResolution)
			report.Notes = append(report.Notes, "product resolution incomplete, some items use the fallback category")
		}
	}

	receipt := &receipts.Receipt{
		ID:          uuid.New(),
		SourceID:    in.ID,
		Strategy:    string(strat.Kind),
		Items:       items,
		Report:      report,
		ProcessedAt: p.now().UTC(),
	}
	if raw.ShopNameGuess != nil {
		name := *raw.ShopNameGuess
		receipt.ShopName = &name
		if canonical, ok := p.Knowledge.NormalizeShop(name); ok {
			receipt.ShopCanonical = &canonical
		}
	}
	if raw.PurchaseDateGuess != nil {
		if d, ok := normalize.ParseDate(*raw.PurchaseDateGuess); ok {
			receipt.PurchaseDate = &d
		}
	}

	span.SetAttributes(
		attribute.String("receipt.strategy", receipt.Strategy),
		attribute.String("receipt.status", string(report.Status)),
		attribute.Int("receipt.items", len(items)),
	)

	return finalize(receipt)
}

// ProcessMany processes receipts concurrently; result i belongs to inputs[i].
// A slow or failing receipt does not affect the others.
func (p *Pipeline) ProcessMany(ctx context.Context, inputs []Input) []*receipts.Receipt {
	out := make([]*receipts.Receipt, len(inputs))

	var g errgroup.Group
	g.SetLimit(p.receiptConcurrency)
	for i, in := range inputs {
		g.Go(func() error {
			out[i] = p.Process(ctx, in)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (p *Pipeline) extract(ctx context.Context, in Input) receipts.RawExtraction {
	if p.Extractor == nil {
		return receipts.RawExtraction{Items: []receipts.RawItemGuess{}, Failed: true, Error: "no extractor configured"}
	}

	var raw receipts.RawExtraction
	err := p.Limiter.Do(ctx, func(ctx context.Context) error {
		raw = p.Extractor.Extract(ctx, in.RawText, in.Images)
		return nil
	})
	if err != nil {
		return receipts.RawExtraction{Items: []receipts.RawItemGuess{}, Failed: true, Error: err.Error()}
	}
	if raw.Items == nil {
		raw.Items = []receipts.RawItemGuess{}
	}
	return raw
}

// finalize returns a deep copy so that later changes to pipeline state cannot
// reach a receipt that was handed out.
func finalize(r *receipts.Receipt) *receipts.Receipt {
	out := *r
	out.Items = receipts.CloneItems(r.Items)
	if r.ShopName != nil {
		s := *r.ShopName
		out.ShopName = &s
	}
	if r.ShopCanonical != nil {
		s := *r.ShopCanonical
		out.ShopCanonical = &s
	}
	if r.PurchaseDate != nil {
		d := *r.PurchaseDate
		out.PurchaseDate = &d
	}

	out.Report.Notes = append([]string(nil), r.Report.Notes...)
	out.Report.Flags = append([]receipts.ReportFlag(nil), r.Report.Flags...)
	if r.Report.ItemNotes != nil {
		out.Report.ItemNotes = make(map[int][]string, len(r.Report.ItemNotes))
		for k, v := range r.Report.ItemNotes {
			out.Report.ItemNotes[k] = append([]string(nil), v...)
		}
	}
	return &out
}
