package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Claude      ClaudeConfig   `toml:"claude"`
	Gemini      GeminiConfig   `toml:"gemini"`
	LLM         LLMConfig      `toml:"llm"`
	Analysis    AnalysisConfig `toml:"analysis"`
	Quotes      QuotesConfig   `toml:"quotes"`
	Scrapers    ScraperConfig  `toml:"scrapers"`
	Refresh     RefreshConfig  `toml:"refresh"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// ClaudeConfig contains Anthropic Claude API configuration for AI services
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (request credential takes precedence)
	Model       string  `toml:"model"`       // Model for analysis runs (default: "claude-sonnet-4-20250514")
	ParseModel  string  `toml:"parse_model"` // Cheaper model for free-text parsing (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// GeminiConfig contains Google Gemini API configuration for the alternate provider
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for completions (default: "gemini-2.0-flash")
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // Default provider: "claude" or "gemini" (default: "claude")
}

// AnalysisConfig bounds the analysis orchestrator conversation loop
type AnalysisConfig struct {
	TurnBudget         int    `toml:"turn_budget"`           // Maximum model round-trips per invocation (default: 6)
	MaxToolResultChars int    `toml:"max_tool_result_chars"` // Truncation cap per tool result payload (default: 1500)
	MaxRetries         int    `toml:"max_retries"`           // Extra attempts on a failed model call (default: 0 = fail fast)
	RetryBackoff       string `toml:"retry_backoff"`         // Initial backoff between retries (default: "2s")
}

// QuotesConfig contains price lookup configuration
type QuotesConfig struct {
	AlphaVantageKey string        `toml:"alphavantage_key"` // Optional Alpha Vantage API key (request key takes precedence)
	EODHDKey        string        `toml:"eodhd_key"`        // Optional EODHD API token, enables the last-resort provider
	RequestTimeout  time.Duration `toml:"request_timeout"`  // HTTP request timeout
	RateLimit       int           `toml:"rate_limit"`       // Requests per second against quote providers
}

// ScraperConfig contains shared configuration for the consensus/news scrapers
type ScraperConfig struct {
	UserAgent      string        `toml:"user_agent"`      // Browser-like user agent for scrape requests
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout
	RequestDelay   time.Duration `toml:"request_delay"`   // Spacing between sequential fetches to one host
}

// RefreshConfig controls the scheduled quote refresh of stored stocks
type RefreshConfig struct {
	Enabled  bool   `toml:"enabled"`  // Enable the background refresh job
	Schedule string `toml:"schedule"` // Cron schedule (default: "0 * * * *" = hourly)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in analyst.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY, config, or per-request)
			Model:       "claude-sonnet-4-20250514",
			ParseModel:  "claude-haiku-4-5-20251001",
			MaxTokens:   8192,
			Timeout:     "5m",
			Temperature: 0.7,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-2.0-flash",
			Timeout:     "5m",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Analysis: AnalysisConfig{
			TurnBudget:         6,
			MaxToolResultChars: 1500,
			MaxRetries:         0, // Fail fast for interactive callers
			RetryBackoff:       "2s",
		},
		Quotes: QuotesConfig{
			AlphaVantageKey: "",
			RequestTimeout:  15 * time.Second,
			RateLimit:       5,
		},
		Scrapers: ScraperConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout: 20 * time.Second,
			RequestDelay:   500 * time.Millisecond,
		},
		Refresh: RefreshConfig{
			Enabled:  false, // Disabled by default - user must explicitly opt-in
			Schedule: "0 * * * *",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files; later files override
// earlier files, environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ANALYST_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("ANALYST_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("ANALYST_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("ANALYST_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("ANALYST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("ANALYST_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitAndTrim(output)
	}

	// API keys: service-specific variables first, then the conventional names
	if key := os.Getenv("ANALYST_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("ANALYST_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANALYST_ALPHAVANTAGE_KEY"); key != "" {
		config.Quotes.AlphaVantageKey = key
	}
	if key := os.Getenv("ANALYST_EODHD_KEY"); key != "" {
		config.Quotes.EODHDKey = key
	}

	if provider := os.Getenv("ANALYST_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	if budget := os.Getenv("ANALYST_TURN_BUDGET"); budget != "" {
		if b, err := strconv.Atoi(budget); err == nil && b > 0 {
			config.Analysis.TurnBudget = b
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface as
// obscure runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Analysis.TurnBudget <= 0 {
		return fmt.Errorf("analysis turn_budget must be positive, got %d", c.Analysis.TurnBudget)
	}
	if c.Analysis.MaxToolResultChars <= 0 {
		return fmt.Errorf("analysis max_tool_result_chars must be positive, got %d", c.Analysis.MaxToolResultChars)
	}
	if _, err := time.ParseDuration(c.Claude.Timeout); err != nil {
		return fmt.Errorf("invalid claude timeout %q: %w", c.Claude.Timeout, err)
	}
	switch c.LLM.DefaultProvider {
	case LLMProviderClaude, LLMProviderGemini:
	default:
		return fmt.Errorf("invalid llm default_provider %q: must be 'claude' or 'gemini'", c.LLM.DefaultProvider)
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
