// Package extraction turns raw receipt text into an unvalidated RawExtraction using a language model.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PocketPalCo/receipts-service/internal/core/ai"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

var tracer = otel.Tracer("extraction")

// ErrEmptyInput is reported when there is neither text nor page images to read.
var ErrEmptyInput = errors.New("receipt has no text and no images")

// Completer sends a prompt to the model.
type Completer interface {
	Complete(ctx context.Context, prompt ai.Prompt) (string, error)
}

// Adapter asks the model for a structured reading of a receipt.
type Adapter struct {
	llm      Completer
	prompts  *ai.PromptBuilder
	schema   *jsonschema.Schema
	logger   *slog.Logger
	maxItems int
}

// NewAdapter compiles the response schema. maxItems caps the number of items taken from one answer.
func NewAdapter(llm Completer, prompts *ai.PromptBuilder, logger *slog.Logger, maxItems int) (*Adapter, error) {
	schema, err := compileSchema(receiptSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile extraction schema: %w", err)
	}
	if prompts == nil {
		prompts = ai.NewPromptBuilder("")
	}
	if maxItems <= 0 {
		maxItems = 200
	}

	return &Adapter{
		llm:      llm,
		prompts:  prompts,
		schema:   schema,
		logger:   logger,
		maxItems: maxItems,
	}, nil
}

// Extract never fails outright. A malformed answer is retried once with a stricter
// prompt; if that fails too, or the model cannot be reached, the result has no items
// and Failed set.
func (a *Adapter) Extract(ctx context.Context, rawText string, images [][]byte) receipts.RawExtraction {
	ctx, span := tracer.Start(ctx, "extraction.Extract")
	defer span.End()
	span.SetAttributes(
		attribute.Int("text_length", len(rawText)),
		attribute.Int("images", len(images)),
	)

	if strings.TrimSpace(rawText) == "" && len(images) == 0 {
		return failed(ErrEmptyInput)
	}

	var lastErr error
	for _, strict := range []bool{false, true} {
		prompt, err := a.prompts.BuildExtractionPrompt(rawText, strict)
		if err != nil {
			span.RecordError(err)
			return failed(err)
		}
		prompt.Images = images

		content, err := a.llm.Complete(ctx, prompt)
		if err != nil {
			a.logger.Error("Extraction request failed", "error", err)
			span.RecordError(err)
			return failed(err)
		}

		extraction, err := a.parse(content)
		if err == nil {
			span.SetAttributes(attribute.Int("items", len(extraction.Items)), attribute.Bool("strict", strict))
			return extraction
		}

		lastErr = err
		a.logger.Warn("Malformed extraction response", "error", err, "strict", strict)
	}

	span.RecordError(lastErr)
	return failed(lastErr)
}

func failed(err error) receipts.RawExtraction {
	return receipts.RawExtraction{
		Items:  []receipts.RawItemGuess{},
		Failed: true,
		Error:  err.Error(),
	}
}

func (a *Adapter) parse(content string) (receipts.RawExtraction, error) {
	jsonStr, err := ai.ExtractJSONObject(content)
	if err != nil {
		return receipts.RawExtraction{}, err
	}

	dec := json.NewDecoder(strings.NewReader(jsonStr))
	// keep numbers as printed; 4.50 must not become 4.5
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return receipts.RawExtraction{}, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}

	doc = sanitize(doc)
	if err := a.schema.Validate(doc); err != nil {
		return receipts.RawExtraction{}, fmt.Errorf("%w: json does not match schema: %v", ai.ErrMalformedResponse, err)
	}

	extraction := receipts.RawExtraction{
		ShopNameGuess:     optional(doc, "shop"),
		PurchaseDateGuess: optional(doc, "date"),
		TotalText:         optional(doc, "total"),
		Items:             []receipts.RawItemGuess{},
	}

	rawItems, _ := doc["items"].([]any)
	for _, raw := range rawItems {
		obj := raw.(map[string]any)
		extraction.Items = append(extraction.Items, receipts.RawItemGuess{
			RawName:        text(obj, "name"),
			QuantityText:   text(obj, "quantity"),
			UnitPriceText:  text(obj, "unit_price"),
			TotalPriceText: text(obj, "total_price"),
			DiscountText:   optional(obj, "discount"),
		})
	}

	if len(extraction.Items) > a.maxItems {
		a.logger.Warn("Extraction returned too many items, truncating", "items", len(extraction.Items), "max", a.maxItems)
		extraction.Items = extraction.Items[:a.maxItems]
	}

	return extraction, nil
}

func text(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func optional(obj map[string]any, key string) *string {
	s := text(obj, key)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}
