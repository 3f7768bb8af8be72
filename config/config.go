package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the generation service
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Server      ServerConfig      `mapstructure:"server"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Search      SearchConfig      `mapstructure:"search"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	SearchIndex SearchIndexConfig `mapstructure:"search_index"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DataDir        string        `mapstructure:"data_dir"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// LLMConfig contains the chat-completion provider configuration
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// SearchConfig contains web search provider settings
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serper, brave, duckduckgo
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// FetchConfig contains page fetch and extraction settings
type FetchConfig struct {
	Fetcher  string        `mapstructure:"fetcher"` // http or chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
	MinChars int           `mapstructure:"min_chars"`
	Retries  int           `mapstructure:"retries"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// CacheConfig contains multi-tier cache settings
type CacheConfig struct {
	Memory      MemoryCacheConfig `mapstructure:"memory"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseTier      `mapstructure:"database"`
	ResearchTTL time.Duration     `mapstructure:"research_ttl"`
	AnalysisTTL time.Duration     `mapstructure:"analysis_ttl"`
	CleanupCron string            `mapstructure:"cleanup_cron"`
}

// MemoryCacheConfig bounds the in-process LRU tier
type MemoryCacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// RedisConfig contains Redis connection settings for the middle cache tier
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("cache.redis.host required when redis tier is enabled")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("cache.redis.port required when redis tier is enabled")
	}
	return nil
}

// DatabaseTier toggles the durable Postgres cache tier
type DatabaseTier struct {
	Enabled bool `mapstructure:"enabled"`
}

// StorageConfig contains persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string from either the url or the discrete fields.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// SearchIndexConfig contains full-text index settings
type SearchIndexConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Normalize applies defaults for unset fetch values.
func (f FetchConfig) Normalize() FetchConfig {
	if f.Fetcher == "" {
		f.Fetcher = "http"
	}
	if f.Timeout <= 0 {
		f.Timeout = 15 * time.Second
	}
	if f.MaxChars <= 0 {
		f.MaxChars = 15000
	}
	if f.MinChars <= 0 {
		f.MinChars = 500
	}
	if f.Retries <= 0 {
		f.Retries = 3
	}
	if f.Backoff <= 0 {
		f.Backoff = time.Second
	}
	return f
}

// Normalize applies defaults for unset cache values.
func (c CacheConfig) Normalize() CacheConfig {
	if c.Memory.MaxEntries <= 0 {
		c.Memory.MaxEntries = 1000
	}
	if c.Memory.TTL <= 0 {
		c.Memory.TTL = 15 * time.Minute
	}
	if c.ResearchTTL <= 0 {
		c.ResearchTTL = 24 * time.Hour
	}
	if c.AnalysisTTL <= 0 {
		c.AnalysisTTL = 12 * time.Hour
	}
	return c
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.data_dir", "./data")
	viper.SetDefault("general.default_timeout", "2m")
	viper.SetDefault("server.address", ":9100")
	viper.SetDefault("server.rate_limit_max", 5)
	viper.SetDefault("server.rate_limit_window", "60s")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("search.provider", "duckduckgo")
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("cache.cleanup_cron", "0 * * * *")
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.metrics_path", "/metrics")
	viper.SetDefault("search_index.enabled", true)
	viper.SetDefault("search_index.path", "./data/posts.bleve")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PRESSGEN")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Fetch = config.Fetch.Normalize()
	config.Cache = config.Cache.Normalize()

	if err := config.Cache.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
