package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Valeamar/tidal2025/services"
	"github.com/Valeamar/tidal2025/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "configs/config.yaml"

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	DatabaseURL string `yaml:"database_url"`
	FrontendURL string `yaml:"frontend_url"`
	UseMockData bool   `yaml:"use_mock_data"`

	Log        LogConfig        `yaml:"log"`
	MarketData MarketDataConfig `yaml:"market_data"`
	AI         AIConfig         `yaml:"ai"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MarketDataConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
}

type AIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type CacheConfig struct {
	QuoteTTL         time.Duration `yaml:"quote_ttl"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	SessionRetention time.Duration `yaml:"session_retention"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

type AnalysisConfig struct {
	MaxProducts       int           `yaml:"max_products"`
	MaxWorkers        int           `yaml:"max_workers"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ProductTimeout    time.Duration `yaml:"product_timeout"`
	MarketDataTimeout time.Duration `yaml:"market_data_timeout"`
	ForecastTimeout   time.Duration `yaml:"forecast_timeout"`
	SentimentTimeout  time.Duration `yaml:"sentiment_timeout"`
	AnalyticsTimeout  time.Duration `yaml:"analytics_timeout"`
	SupplierListSize  int           `yaml:"supplier_list_size"`
	Currency          string        `yaml:"currency"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`
}

func Default() Config {
	a := services.DefaultAnalyzerConfig()
	return Config{
		Port:        "8080",
		Environment: "development",
		FrontendURL: "http://localhost:3000",
		UseMockData: true,
		Log:         LogConfig{Level: "info"},
		MarketData: MarketDataConfig{
			RequestsPerMinute: 120,
			Burst:             10,
			HTTPTimeout:       10 * time.Second,
		},
		Cache: CacheConfig{
			QuoteTTL:         6 * time.Hour,
			CleanupInterval:  time.Hour,
			SessionRetention: 30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 100, Burst: 20},
		Analysis: AnalysisConfig{
			MaxProducts:       a.MaxProducts,
			MaxWorkers:        a.MaxWorkers,
			RequestTimeout:    a.RequestTimeout,
			ProductTimeout:    a.ProductTimeout,
			MarketDataTimeout: a.MarketDataTimeout,
			ForecastTimeout:   a.SignalTimeouts.Forecast,
			SentimentTimeout:  a.SignalTimeouts.Sentiment,
			AnalyticsTimeout:  a.SignalTimeouts.Analytics,
			SupplierListSize:  a.SupplierListSize,
			Currency:          a.Currency,
			RetryAttempts:     a.Retry.MaxAttempts,
			RetryBaseDelay:    a.Retry.BaseDelay,
			RetryMaxDelay:     a.Retry.MaxDelay,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, in that order of precedence (environment wins).
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.Log.Debug("No .env file found, using environment variables")
	}

	cfg := Default()

	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Port)
	setString("ENVIRONMENT", &c.Environment)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("FRONTEND_URL", &c.FrontendURL)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FILE", &c.Log.File)
	setString("MARKET_DATA_BASE_URL", &c.MarketData.BaseURL)
	setString("MARKET_DATA_API_KEY", &c.MarketData.APIKey)
	setString("ANTHROPIC_API_KEY", &c.AI.APIKey)

	if v := strings.TrimSpace(getenv("USE_MOCK_DATA")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid USE_MOCK_DATA %q: %w", v, err)
		}
		c.UseMockData = b
	}
	return nil
}

func (c Config) Validate() error {
	a := c.Analysis
	switch {
	case c.Port == "":
		return errors.New("port is required")
	case a.MaxProducts < 1:
		return errors.New("analysis.max_products must be at least 1")
	case a.MaxWorkers < 1:
		return errors.New("analysis.max_workers must be at least 1")
	case a.RetryAttempts < 1:
		return errors.New("analysis.retry_attempts must be at least 1")
	case a.RequestTimeout <= 0 || a.ProductTimeout <= 0:
		return errors.New("analysis timeouts must be positive")
	case !c.UseMockData && c.MarketData.BaseURL == "":
		return errors.New("MARKET_DATA_BASE_URL is required when USE_MOCK_DATA is false")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// AnalyzerConfig maps the analysis section onto the engine settings.
func (c Config) AnalyzerConfig() services.AnalyzerConfig {
	a := c.Analysis
	cfg := services.DefaultAnalyzerConfig()
	cfg.MaxProducts = a.MaxProducts
	cfg.MaxWorkers = a.MaxWorkers
	cfg.RequestTimeout = a.RequestTimeout
	cfg.ProductTimeout = a.ProductTimeout
	cfg.MarketDataTimeout = a.MarketDataTimeout
	cfg.SignalTimeouts = services.SignalTimeouts{
		Forecast:  a.ForecastTimeout,
		Sentiment: a.SentimentTimeout,
		Analytics: a.AnalyticsTimeout,
	}
	cfg.SupplierListSize = a.SupplierListSize
	if a.Currency != "" {
		cfg.Currency = a.Currency
	}
	cfg.Retry = services.RetryPolicy{
		MaxAttempts: a.RetryAttempts,
		BaseDelay:   a.RetryBaseDelay,
		MaxDelay:    a.RetryMaxDelay,
	}
	return cfg
}
