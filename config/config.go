package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate. A configuration error is fatal at process start.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Environment       string `mapstructure:"SSV_ENVIRONMENT"`
	ServerName        string `mapstructure:"SSV_SERVER_NAME"`
	ServerAddress     string `mapstructure:"SSV_SERVER_BIND_ADDR"`
	ServerReadTimeout int16  `mapstructure:"SSV_SERVER_READ_TIMEOUT"`
	LogFormat         string `mapstructure:"SSV_LOG_FORMAT"` // text or json
	LogLevel          string `mapstructure:"SSV_LOG_LEVEL"`  // debug, info, warn, error
	RateLimitMax      int    `mapstructure:"SSV_RATE_LIMIT_MAX"`
	RateLimitWindow   int    `mapstructure:"SSV_RATE_LIMIT_WINDOW"`

	DbEnabled        bool   `mapstructure:"SSV_DB_ENABLED"`
	DbHost           string `mapstructure:"SSV_DB_HOST"`
	DbPort           int16  `mapstructure:"SSV_DB_PORT"`
	DbSSLMode        string `mapstructure:"SSV_DB_SSL"`
	DbUser           string `mapstructure:"SSV_DB_USER"`
	DbPassword       string `mapstructure:"SSV_DB_PASSWORD"`
	DbDatabaseName   string `mapstructure:"SSV_DB_DATABASE"`
	DbMaxConnections int    `mapstructure:"SSV_DB_MAX_CONNECTIONS"`

	// Redis
	RedisHost string `mapstructure:"SSV_REDIS_HOST"`
	RedisPort int16  `mapstructure:"SSV_REDIS_PORT"`
	RedisDb   int    `mapstructure:"SSV_REDIS_DB"`
	RedisUser string `mapstructure:"SSV_REDIS_USER"`
	RedisPass string `mapstructure:"SSV_REDIS_PASS"`

	OtlpEndpoint   string `mapstructure:"SSV_OTLP_ENDPOINT"`
	JaegerEndpoint string `mapstructure:"SSV_JAEGER_ENDPOINT"`

	// OpenAI Configuration
	OpenAIAPIKey            string  `mapstructure:"SSV_OPENAI_API_KEY"`
	OpenAIModel             string  `mapstructure:"SSV_OPENAI_MODEL"`
	OpenAIBaseURL           string  `mapstructure:"SSV_OPENAI_BASE_URL"`
	OpenAIMaxTokens         int     `mapstructure:"SSV_OPENAI_MAX_TOKENS"`
	OpenAITemperature       float64 `mapstructure:"SSV_OPENAI_TEMPERATURE"`
	OpenAIUseResponsesAPI   bool    `mapstructure:"SSV_OPENAI_USE_RESPONSES_API"`
	OpenAIStore             bool    `mapstructure:"SSV_OPENAI_STORE"`
	OpenAIReasoningEffort   string  `mapstructure:"SSV_OPENAI_REASONING_EFFORT"`
	OpenAIRequestTimeout    int     `mapstructure:"SSV_OPENAI_REQUEST_TIMEOUT"` // seconds
	OpenAIMaxRetries        int     `mapstructure:"SSV_OPENAI_MAX_RETRIES"`
	OpenAIRequestsPerSecond float64 `mapstructure:"SSV_OPENAI_REQUESTS_PER_SECOND"` // 0 = unlimited
	OpenAIEmbeddingModel    string  `mapstructure:"SSV_OPENAI_EMBEDDING_MODEL"`

	// Pipeline
	BatchConcurrency    int     `mapstructure:"SSV_BATCH_CONCURRENCY"`
	BatchSize           int     `mapstructure:"SSV_BATCH_SIZE"`
	ReceiptConcurrency  int     `mapstructure:"SSV_RECEIPT_CONCURRENCY"`
	ReceiptTimeout      int     `mapstructure:"SSV_RECEIPT_TIMEOUT"` // seconds
	SimilarityThreshold float64 `mapstructure:"SSV_SIMILARITY_THRESHOLD"`
	ItemTolerance       string  `mapstructure:"SSV_ITEM_TOLERANCE"`
	ReceiptTolerance    string  `mapstructure:"SSV_RECEIPT_TOLERANCE"`
	CacheBackend        string  `mapstructure:"SSV_CACHE_BACKEND"` // memory or redis
	CacheTTL            int     `mapstructure:"SSV_CACHE_TTL"`     // hours, 0 = no expiry
	Embeddings          string  `mapstructure:"SSV_EMBEDDINGS"`    // local or openai
	PromptsDir          string  `mapstructure:"SSV_PROMPTS_DIR"`
	MaxExtractedItems   int     `mapstructure:"SSV_MAX_EXTRACTED_ITEMS"`
}

// DefaultConfig generates a config with sane defaults.
func DefaultConfig() Config {
	return Config{
		Environment:       "local",
		ServerName:        "receipts-service",
		ServerAddress:     "0.0.0.0:3001",
		ServerReadTimeout: 60,
		LogFormat:         "text",
		LogLevel:          "info",
		RateLimitMax:      100,
		RateLimitWindow:   30,

		DbEnabled:        true,
		DbHost:           "localhost",
		DbPort:           5432,
		DbSSLMode:        "disable",
		DbUser:           "postgres",
		DbPassword:       "postgres",
		DbDatabaseName:   "receipts",
		DbMaxConnections: 20,

		// Redis
		RedisHost: "localhost",
		RedisPort: 6379,
		RedisDb:   0,
		RedisUser: "",
		RedisPass: "",

		OtlpEndpoint:   "localhost:4317",
		JaegerEndpoint: "http://localhost:14268/api/traces",

		// OpenAI defaults
		OpenAIAPIKey:            "",
		OpenAIModel:             "gpt-5-nano",
		OpenAIBaseURL:           "https://api.openai.com/v1",
		OpenAIMaxTokens:         4000,
		OpenAITemperature:       0.1,
		OpenAIUseResponsesAPI:   false,
		OpenAIStore:             false,
		OpenAIReasoningEffort:   "low",
		OpenAIRequestTimeout:    60,
		OpenAIMaxRetries:        3,
		OpenAIRequestsPerSecond: 0,
		OpenAIEmbeddingModel:    "text-embedding-3-small",

		BatchConcurrency:    10,
		BatchSize:           50,
		ReceiptConcurrency:  4,
		ReceiptTimeout:      120,
		SimilarityThreshold: 0.94,
		ItemTolerance:       "0.01",
		ReceiptTolerance:    "0.01",
		CacheBackend:        "memory",
		CacheTTL:            24 * 30,
		Embeddings:          "local",
		PromptsDir:          "",
		MaxExtractedItems:   200,
	}
}

// LoadConfig will attempt to load a configuration from the default file location and fallback to environment variables.
func LoadConfig() (Config, error) {
	envFile := os.Getenv("SSV_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	var cfg Config
	var err error

	if _, err = os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		cfg, err = ConfigFromEnvironment()
	} else {
		cfg, err = ConfigFromFile(envFile)
	}

	return cfg, err
}

// ConfigFromEnvironment will look for the specified configuration from environment variables
// See package docs for a list of available environment variables.
func ConfigFromEnvironment() (config Config, err error) {
	config = DefaultConfig()
	for key, value := range defaults(config) {
		viper.SetDefault(key, value)
	}

	// Override config values with environment variables
	viper.AutomaticEnv()
	err = viper.Unmarshal(&config)
	return
}

func defaults(config Config) map[string]any {
	return map[string]any{
		"SSV_ENVIRONMENT":                config.Environment,
		"SSV_SERVER_NAME":                config.ServerName,
		"SSV_SERVER_BIND_ADDR":           config.ServerAddress,
		"SSV_SERVER_READ_TIMEOUT":        config.ServerReadTimeout,
		"SSV_LOG_LEVEL":                  config.LogLevel,
		"SSV_LOG_FORMAT":                 config.LogFormat,
		"SSV_RATE_LIMIT_MAX":             config.RateLimitMax,
		"SSV_RATE_LIMIT_WINDOW":          config.RateLimitWindow,
		"SSV_DB_ENABLED":                 config.DbEnabled,
		"SSV_DB_HOST":                    config.DbHost,
		"SSV_DB_PORT":                    config.DbPort,
		"SSV_DB_SSL":                     config.DbSSLMode,
		"SSV_DB_USER":                    config.DbUser,
		"SSV_DB_PASSWORD":                config.DbPassword,
		"SSV_DB_DATABASE":                config.DbDatabaseName,
		"SSV_DB_MAX_CONNECTIONS":         config.DbMaxConnections,
		"SSV_OTLP_ENDPOINT":              config.OtlpEndpoint,
		"SSV_JAEGER_ENDPOINT":            config.JaegerEndpoint,
		"SSV_REDIS_HOST":                 config.RedisHost,
		"SSV_REDIS_PORT":                 config.RedisPort,
		"SSV_REDIS_USER":                 config.RedisUser,
		"SSV_REDIS_PASS":                 config.RedisPass,
		"SSV_REDIS_DB":                   config.RedisDb,
		"SSV_OPENAI_API_KEY":             config.OpenAIAPIKey,
		"SSV_OPENAI_MODEL":               config.OpenAIModel,
		"SSV_OPENAI_BASE_URL":            config.OpenAIBaseURL,
		"SSV_OPENAI_MAX_TOKENS":          config.OpenAIMaxTokens,
		"SSV_OPENAI_TEMPERATURE":         config.OpenAITemperature,
		"SSV_OPENAI_USE_RESPONSES_API":   config.OpenAIUseResponsesAPI,
		"SSV_OPENAI_STORE":               config.OpenAIStore,
		"SSV_OPENAI_REASONING_EFFORT":    config.OpenAIReasoningEffort,
		"SSV_OPENAI_REQUEST_TIMEOUT":     config.OpenAIRequestTimeout,
		"SSV_OPENAI_MAX_RETRIES":         config.OpenAIMaxRetries,
		"SSV_OPENAI_REQUESTS_PER_SECOND": config.OpenAIRequestsPerSecond,
		"SSV_OPENAI_EMBEDDING_MODEL":     config.OpenAIEmbeddingModel,
		"SSV_BATCH_CONCURRENCY":          config.BatchConcurrency,
		"SSV_BATCH_SIZE":                 config.BatchSize,
		"SSV_RECEIPT_CONCURRENCY":        config.ReceiptConcurrency,
		"SSV_RECEIPT_TIMEOUT":            config.ReceiptTimeout,
		"SSV_SIMILARITY_THRESHOLD":       config.SimilarityThreshold,
		"SSV_ITEM_TOLERANCE":             config.ItemTolerance,
		"SSV_RECEIPT_TOLERANCE":          config.ReceiptTolerance,
		"SSV_CACHE_BACKEND":              config.CacheBackend,
		"SSV_CACHE_TTL":                  config.CacheTTL,
		"SSV_EMBEDDINGS":                 config.Embeddings,
		"SSV_PROMPTS_DIR":                config.PromptsDir,
		"SSV_MAX_EXTRACTED_ITEMS":        config.MaxExtractedItems,
	}
}

// ConfigFromFile will look for the specified configuration file in the current directory and initialize
// a Config from it. Values provided by environment variables will override ones found in
// the file. See package docs for a list of available environment variables.
func ConfigFromFile(f string) (config Config, err error) {
	if config, err = ConfigFromEnvironment(); err != nil {
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigFile(f)
	viper.SetConfigType("env")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)

	return
}

// Validate checks the values the pipeline cannot run without.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		problems = append(problems, "SSV_OPENAI_API_KEY is required")
	}
	if _, err := url.ParseRequestURI(c.OpenAIBaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("SSV_OPENAI_BASE_URL is not a valid URL: %q", c.OpenAIBaseURL))
	}
	if c.BatchConcurrency <= 0 {
		problems = append(problems, "SSV_BATCH_CONCURRENCY must be positive")
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "SSV_BATCH_SIZE must be positive")
	}
	if c.ReceiptConcurrency <= 0 {
		problems = append(problems, "SSV_RECEIPT_CONCURRENCY must be positive")
	}
	if c.ReceiptTimeout <= 0 {
		problems = append(problems, "SSV_RECEIPT_TIMEOUT must be positive")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		problems = append(problems, "SSV_SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if c.OpenAIMaxRetries < 0 {
		problems = append(problems, "SSV_OPENAI_MAX_RETRIES must not be negative")
	}
	if c.OpenAIRequestsPerSecond < 0 {
		problems = append(problems, "SSV_OPENAI_REQUESTS_PER_SECOND must not be negative")
	}
	if !isNonNegativeNumber(c.ItemTolerance) {
		problems = append(problems, fmt.Sprintf("SSV_ITEM_TOLERANCE is not a non-negative number: %q", c.ItemTolerance))
	}
	if !isNonNegativeNumber(c.ReceiptTolerance) {
		problems = append(problems, fmt.Sprintf("SSV_RECEIPT_TOLERANCE is not a non-negative number: %q", c.ReceiptTolerance))
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("SSV_CACHE_BACKEND must be memory or redis, got %q", c.CacheBackend))
	}
	switch c.Embeddings {
	case "local", "openai":
	default:
		problems = append(problems, fmt.Sprintf("SSV_EMBEDDINGS must be local or openai, got %q", c.Embeddings))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Fiber initializes and returns a Fiber config based on server config values.
// See https://docs.gofiber.io/api/fiber#config
func (c Config) Fiber() fiber.Config {
	return fiber.Config{
		AppName:     c.ServerName,
		ReadTimeout: time.Second * time.Duration(c.ServerReadTimeout),
		BodyLimit:   32 * 1024 * 1024, // page images are sent inline
	}
}

// DbConnectionString generates a connection string for the database based on config values.
func (c Config) DbConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s", c.DbUser, url.QueryEscape(c.DbPassword), c.DbHost, c.DbPort, c.DbDatabaseName, c.DbSSLMode)
}

// RedisAddr returns host:port for the redis client.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// GetSlogLevel converts the string log level to slog.Level.
func (c Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo // default fallback
	}
}

// GetOpenAIConfig converts config values to OpenAI configuration struct.
func (c Config) GetOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:            c.OpenAIAPIKey,
		Model:             c.OpenAIModel,
		BaseURL:           c.OpenAIBaseURL,
		MaxTokens:         c.OpenAIMaxTokens,
		Temperature:       c.OpenAITemperature,
		UseResponsesAPI:   c.OpenAIUseResponsesAPI,
		Store:             c.OpenAIStore,
		ReasoningEffort:   c.OpenAIReasoningEffort,
		RequestTimeout:    time.Duration(c.OpenAIRequestTimeout) * time.Second,
		MaxRetries:        c.OpenAIMaxRetries,
		RequestsPerSecond: c.OpenAIRequestsPerSecond,
		EmbeddingModel:    c.OpenAIEmbeddingModel,
	}
}

// OpenAIConfig holds OpenAI client configuration
type OpenAIConfig struct {
	APIKey            string
	Model             string // e.g., "gpt-5", "gpt-5-nano"
	BaseURL           string // any OpenAI-compatible endpoint
	MaxTokens         int
	Temperature       float64
	UseResponsesAPI   bool   // Use Responses API instead of Chat Completions
	Store             bool   // Enable stateful context
	ReasoningEffort   string // "low", "medium", "high"
	RequestTimeout    time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	EmbeddingModel    string
}

// GetPipelineConfig converts config values to the pipeline tuning struct.
func (c Config) GetPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BatchConcurrency:    c.BatchConcurrency,
		BatchSize:           c.BatchSize,
		ReceiptConcurrency:  c.ReceiptConcurrency,
		ReceiptTimeout:      time.Duration(c.ReceiptTimeout) * time.Second,
		SimilarityThreshold: c.SimilarityThreshold,
		ItemTolerance:       c.ItemTolerance,
		ReceiptTolerance:    c.ReceiptTolerance,
		CacheTTL:            time.Duration(c.CacheTTL) * time.Hour,
		MaxExtractedItems:   c.MaxExtractedItems,
	}
}

// PipelineConfig holds the knobs of the receipt pipeline.
type PipelineConfig struct {
	BatchConcurrency    int
	BatchSize           int
	ReceiptConcurrency  int
	ReceiptTimeout      time.Duration
	SimilarityThreshold float64
	ItemTolerance       string
	ReceiptTolerance    string
	CacheTTL            time.Duration
	MaxExtractedItems   int
}

func isNonNegativeNumber(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && f >= 0
}
