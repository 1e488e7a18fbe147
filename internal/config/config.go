// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs. The core packages receive values
// from here at construction time and never read the environment directly.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig governs the HTTP client: endpoint, headers, retry and pacing.
type APIConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	Referer           string  `mapstructure:"referer"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	InitialBackoffMs  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	RequestDelayMs    int     `mapstructure:"request_delay_ms"`
}

// ScraperConfig governs orchestration behavior.
type ScraperConfig struct {
	MaxWorkers int  `mapstructure:"max_workers"`
	Sequential bool `mapstructure:"sequential"`
}

// OutputConfig sets artifact locations.
type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	PartialDir string `mapstructure:"partial_dir"`
	FinalFile  string `mapstructure:"final_file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional file plus FIPE_-prefixed environment
// variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://veiculos.fipe.org.br/api/veiculos/")
	v.SetDefault("api.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("api.referer", "https://veiculos.fipe.org.br/")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("api.max_retries", 5)
	v.SetDefault("api.initial_backoff_ms", 1000)
	v.SetDefault("api.max_backoff_ms", 60000)
	v.SetDefault("api.backoff_multiplier", 2.0)
	v.SetDefault("api.request_delay_ms", 500)
	v.SetDefault("scraper.max_workers", 4)
	v.SetDefault("scraper.sequential", false)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.partial_dir", "output/partial")
	v.SetDefault("output.final_file", "output/fipe_complete.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.API.MaxRetries <= 0 {
		return fmt.Errorf("api.max_retries must be > 0")
	}
	if c.API.MaxBackoffMs < c.API.InitialBackoffMs {
		return fmt.Errorf("api.max_backoff_ms must be >= api.initial_backoff_ms")
	}
	if c.API.BackoffMultiplier < 1 {
		return fmt.Errorf("api.backoff_multiplier must be >= 1")
	}
	if c.Scraper.MaxWorkers <= 0 {
		return fmt.Errorf("scraper.max_workers must be > 0")
	}
	if c.Output.PartialDir == "" || c.Output.FinalFile == "" {
		return fmt.Errorf("output.partial_dir and output.final_file must be set")
	}
	return nil
}

// Timeout returns the request timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry delay as a duration.
func (c APIConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap as a duration.
func (c APIConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// RequestDelay returns the minimum spacing between requests as a duration.
func (c APIConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}
