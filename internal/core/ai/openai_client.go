package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/PocketPalCo/receipts-service/config"
)

var tracer = otel.Tracer("ai-client")

var (
	// ErrTransport wraps network failures, timeouts and retryable API statuses.
	ErrTransport = errors.New("llm transport failure")
	// ErrMalformedResponse is returned when the model answer is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed llm response")
)

// APIError is a non-retryable error status returned by the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai API error: %d - %s", e.StatusCode, e.Body)
}

// Prompt is one request to the model.
type Prompt struct {
	System string
	User   string
	// Images are attached as data URLs, e.g. receipt page scans.
	Images [][]byte
	// JSON asks the model for a JSON object answer.
	JSON bool
}

// ProductClassification is the model's answer for one product name.
type ProductClassification struct {
	CanonicalName string  `json:"canonical_name"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
}

// OpenAIClient is the part of the client the pipeline depends on.
type OpenAIClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	ClassifyProduct(ctx context.Context, rawName string, categories []string) (*ProductClassification, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chat Completions API structures
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	Store          *bool           `json:"store,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// Message content is either a string or a list of ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatCompletionResponse struct {
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Responses API structures
type ResponsesRequest struct {
	Model     string              `json:"model"`
	Input     []ResponsesMessage  `json:"input"`
	Store     *bool               `json:"store,omitempty"`
	Reasoning *ResponsesReasoning `json:"reasoning,omitempty"`
}

type ResponsesMessage struct {
	Role    string                  `json:"role"`
	Content []ResponsesInputContent `json:"content"`
}

type ResponsesInputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type ResponsesReasoning struct {
	Effort string `json:"effort"`
}

type ResponsesResponse struct {
	ID     string                `json:"id"`
	Model  string                `json:"model"`
	Output []ResponsesOutputItem `json:"output"`
	Usage  Usage                 `json:"usage"`
}

type ResponsesOutputItem struct {
	ID      string                   `json:"id"`
	Type    string                   `json:"type"`
	Role    string                   `json:"role,omitempty"`
	Content []ResponsesOutputContent `json:"content,omitempty"`
}

type ResponsesOutputContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Client talks to an OpenAI-compatible API.
type Client struct {
	config        config.OpenAIConfig
	httpClient    *http.Client
	logger        *slog.Logger
	promptBuilder *PromptBuilder
	limiter       *rate.Limiter
	retryInterval time.Duration

	requestsTotal   metric.Int64Counter
	requestErrors   metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPromptsDir loads prompt overrides from dir.
func WithPromptsDir(dir string) Option {
	return func(c *Client) { c.promptBuilder = NewPromptBuilder(dir) }
}

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryInterval = d }
}

func NewOpenAIClient(cfg config.OpenAIConfig, logger *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-5-nano"
	}
	if cfg.ReasoningEffort == "" {
		cfg.ReasoningEffort = "low"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	meter := otel.Meter("openai_client")
	requestsTotal, _ := meter.Int64Counter(
		"openai_requests_total",
		metric.WithDescription("Total number of requests sent to the OpenAI API"),
		metric.WithUnit("1"),
	)
	requestErrors, _ := meter.Int64Counter(
		"openai_request_errors_total",
		metric.WithDescription("Total number of failed OpenAI API requests"),
		metric.WithUnit("1"),
	)
	requestDuration, _ := meter.Float64Histogram(
		"openai_request_duration_seconds",
		metric.WithDescription("Duration of OpenAI API requests including retries"),
		metric.WithUnit("s"),
	)

	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger:          logger,
		promptBuilder:   NewPromptBuilder(""),
		limiter:         limiter,
		retryInterval:   500 * time.Millisecond,
		requestsTotal:   requestsTotal,
		requestErrors:   requestErrors,
		requestDuration: requestDuration,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.promptBuilder.ValidatePromptFiles(); err != nil {
		logger.Warn("Prompt overrides unusable, falling back to built-in prompts", "error", err)
		c.promptBuilder = NewPromptBuilder("")
	}

	return c
}

// Prompts exposes the prompt builder used by this client.
func (c *Client) Prompts() *PromptBuilder {
	return c.promptBuilder
}

// Complete sends prompt and returns the text of the model answer.
func (c *Client) Complete(ctx context.Context, prompt Prompt) (string, error) {
	ctx, span := tracer.Start(ctx, "ai.Complete")
	defer span.End()

	var (
		text string
		err  error
	)
	if c.config.UseResponsesAPI {
		text, err = c.completeWithResponsesAPI(ctx, prompt)
	} else {
		text, err = c.completeWithChatCompletions(ctx, prompt)
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return text, nil
}

func (c *Client) completeWithChatCompletions(ctx context.Context, prompt Prompt) (string, error) {
	messages := make([]Message, 0, 2)
	if prompt.System != "" {
		messages = append(messages, Message{Role: "system", Content: prompt.System})
	}

	if len(prompt.Images) == 0 {
		messages = append(messages, Message{Role: "user", Content: prompt.User})
	} else {
		parts := []ContentPart{{Type: "text", Text: prompt.User}}
		for _, img := range prompt.Images {
			parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: dataURL(img)}})
		}
		messages = append(messages, Message{Role: "user", Content: parts})
	}

	reqBody := ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	if c.config.Store {
		reqBody.Store = &c.config.Store
	}
	if prompt.JSON {
		reqBody.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	body, err := c.post(ctx, "chat_completions", "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal chat completion response: %v", ErrMalformedResponse, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in chat completion response", ErrMalformedResponse)
	}

	c.logger.Debug("Chat completion finished",
		"model", c.config.Model,
		"tokens_used", chatResp.Usage.TotalTokens,
		"finish_reason", chatResp.Choices[0].FinishReason)

	return chatResp.Choices[0].Message.Content, nil
}

func (c *Client) completeWithResponsesAPI(ctx context.Context, prompt Prompt) (string, error) {
	content := []ResponsesInputContent{{Type: "input_text", Text: prompt.User}}
	for _, img := range prompt.Images {
		content = append(content, ResponsesInputContent{Type: "input_image", ImageURL: dataURL(img)})
	}

	input := make([]ResponsesMessage, 0, 2)
	if prompt.System != "" {
		input = append(input, ResponsesMessage{
			Role:    "system",
			Content: []ResponsesInputContent{{Type: "input_text", Text: prompt.System}},
		})
	}
	input = append(input, ResponsesMessage{Role: "user", Content: content})

	reqBody := ResponsesRequest{
		Model: c.config.Model,
		Input: input,
		Reasoning: &ResponsesReasoning{
			Effort: c.config.ReasoningEffort,
		},
	}
	if c.config.Store {
		reqBody.Store = &c.config.Store
	}

	body, err := c.post(ctx, "responses", "/responses", reqBody)
	if err != nil {
		return "", err
	}

	var responsesResp ResponsesResponse
	if err := json.Unmarshal(body, &responsesResp); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal responses: %v", ErrMalformedResponse, err)
	}

	outputText, err := extractOutputText(responsesResp.Output)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Responses API call finished",
		"model", c.config.Model,
		"tokens_used", responsesResp.Usage.TotalTokens,
		"reasoning_effort", c.config.ReasoningEffort)

	return outputText, nil
}

func extractOutputText(output []ResponsesOutputItem) (string, error) {
	for _, item := range output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, content := range item.Content {
				if content.Type == "output_text" || content.Type == "text" {
					return content.Text, nil
				}
			}
		}
	}
	return "", fmt.Errorf("%w: no output text found in responses", ErrMalformedResponse)
}

// ClassifyProduct asks the model for the canonical name and category of a product.
func (c *Client) ClassifyProduct(ctx context.Context, rawName string, categories []string) (*ProductClassification, error) {
	ctx, span := tracer.Start(ctx, "ai.ClassifyProduct")
	defer span.End()
	span.SetAttributes(attribute.String("raw_name", rawName))

	prompt, err := c.promptBuilder.BuildClassificationPrompt(rawName, categories)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build classification prompt: %w", err)
	}

	content, err := c.Complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := parseClassification(content)
	if err != nil {
		c.logger.Warn("Failed to parse classification response", "error", err, "raw_name", rawName)
		span.RecordError(err)
		return nil, err
	}

	return result, nil
}

func parseClassification(content string) (*ProductClassification, error) {
	jsonStr, err := ExtractJSONObject(content)
	if err != nil {
		return nil, err
	}

	var result ProductClassification
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal JSON: %v", ErrMalformedResponse, err)
	}

	result.CanonicalName = strings.TrimSpace(result.CanonicalName)
	if result.CanonicalName == "" {
		return nil, fmt.Errorf("%w: canonical_name is required", ErrMalformedResponse)
	}
	if result.Confidence < 0.0 || result.Confidence > 1.0 {
		result.Confidence = 0.5
	}

	return &result, nil
}

// Embed returns one embedding vector per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "ai.Embed")
	defer span.End()

	if len(texts) == 0 {
		return nil, nil
	}

	body, err := c.post(ctx, "embeddings", "/embeddings", embeddingRequest{Model: c.config.EmbeddingModel, Input: texts})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal embeddings: %v", ErrMalformedResponse, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrMalformedResponse, len(resp.Data), len(texts))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// post sends payload to path and returns the response body of a 200 answer.
// Network failures, 429 and 5xx answers are retried with exponential backoff.
func (c *Client) post(ctx context.Context, operation, path string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("model", c.config.Model),
	)
	startTime := time.Now()
	c.requestsTotal.Add(ctx, 1, attrs)

	attempt := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrTransport, err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create %s request: %w", operation, err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrTransport, ctx.Err()))
			}
			return nil, fmt.Errorf("%w: failed to make %s request: %v", ErrTransport, operation, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s response: %v", ErrTransport, operation, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %s returned status %d", ErrTransport, operation, resp.StatusCode)
		default:
			return nil, backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Body: string(body)})
		}
	}

	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = c.retryInterval
	expBackOff.MaxInterval = 10 * c.retryInterval

	body, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(expBackOff),
		backoff.WithMaxTries(uint(c.config.MaxRetries+1)),
	)
	c.requestDuration.Record(ctx, time.Since(startTime).Seconds(), attrs)
	if err != nil {
		c.requestErrors.Add(ctx, 1, attrs)
		c.logger.Warn("OpenAI request failed", "operation", operation, "error", err)
		return nil, err
	}
	return body, nil
}

// ExtractJSONObject returns the outermost {...} block of a model answer,
// tolerating markdown fences and chatter around it.
func ExtractJSONObject(content string) (string, error) {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return "", fmt.Errorf("%w: no valid JSON found in response", ErrMalformedResponse)
	}

	return content[start : end+1], nil
}

func dataURL(img []byte) string {
	return "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
}
