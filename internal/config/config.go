// Package config provides configuration management for the goaudit
// application. It handles loading, validation, and access to configuration
// values from a YAML file and environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/goaudit/internal/logger"
)

// envPrefix is the prefix for environment variable overrides
// (GOAUDIT_DATABASE_HOST, GOAUDIT_CRAWLER_MAX_PAGES, ...).
const envPrefix = "GOAUDIT"

// weightSumTolerance is the allowed floating point drift when validating
// that category weights sum to 1.0.
const weightSumTolerance = 1e-9

// Config represents the application configuration.
type Config struct {
	Logging    logger.Config    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Lighthouse LighthouseConfig `mapstructure:"lighthouse"`
	Schedules  []ScheduleConfig `mapstructure:"schedules"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// CrawlerConfig holds page discovery settings. Depth and concurrency tune the
// underlying crawl; they are not part of the pipeline's contract.
type CrawlerConfig struct {
	DefaultMaxPages int           `mapstructure:"default_max_pages"`
	Concurrency     int           `mapstructure:"concurrency"`
	Delay           time.Duration `mapstructure:"delay"`
	MaxDepth        int           `mapstructure:"max_depth"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// RetryPolicy is the per-unit-kind attempt budget and job timeout, resolved
// at dispatch time rather than stored on unit instances.
type RetryPolicy struct {
	Attempts int           `mapstructure:"attempts"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig holds the thresholds and retry policies for analysis units.
type AnalysisConfig struct {
	TitleMinLength int `mapstructure:"title_min_length"`
	TitleMaxLength int `mapstructure:"title_max_length"`
	DescMaxLength  int `mapstructure:"desc_max_length"`

	LCPCritical       float64 `mapstructure:"lcp_critical"`
	LCPHigh           float64 `mapstructure:"lcp_high"`
	CLSHigh           float64 `mapstructure:"cls_high"`
	CLSMedium         float64 `mapstructure:"cls_medium"`
	PerfScoreCritical int     `mapstructure:"perf_score_critical"`
	PerfScoreMedium   int     `mapstructure:"perf_score_medium"`

	LinkCheckTimeout    time.Duration `mapstructure:"link_check_timeout"`
	LinkMaxRedirects    int           `mapstructure:"link_max_redirects"`
	BrokenLinksHigh     int           `mapstructure:"broken_links_high"`
	BrokenLinksShown    int           `mapstructure:"broken_links_shown"`
	MaxCheckoutSteps    int           `mapstructure:"max_checkout_steps"`
	MaxTotalFormFields  int           `mapstructure:"max_total_form_fields"`
	MaxStepFormFields   int           `mapstructure:"max_step_form_fields"`
	MaxStepLoadTime     time.Duration `mapstructure:"max_step_load_time"`
	CheckoutPaths       []string      `mapstructure:"checkout_paths"`
	ScreenshotDirectory string        `mapstructure:"screenshot_directory"`

	Metadata    RetryPolicy `mapstructure:"metadata"`
	Performance RetryPolicy `mapstructure:"performance"`
	Links       RetryPolicy `mapstructure:"links"`
	Checkout    RetryPolicy `mapstructure:"checkout"`
}

// ScoringConfig holds category weights and severity penalties for the
// scoring engine. Weights must sum to 1.0.
type ScoringConfig struct {
	Weights struct {
		Performance float64 `mapstructure:"performance"`
		Mobile      float64 `mapstructure:"mobile"`
		SEO         float64 `mapstructure:"seo"`
		Checkout    float64 `mapstructure:"checkout"`
		Links       float64 `mapstructure:"links"`
	} `mapstructure:"weights"`

	Penalties struct {
		Critical float64 `mapstructure:"critical"`
		High     float64 `mapstructure:"high"`
		Medium   float64 `mapstructure:"medium"`
		Low      float64 `mapstructure:"low"`
		Info     float64 `mapstructure:"info"`
	} `mapstructure:"penalties"`

	// MobilePerformanceShare is the fraction of the mobile score contributed
	// by the mean mobile performance sub-score; the remainder comes from the
	// mobile-category finding penalty.
	MobilePerformanceShare float64 `mapstructure:"mobile_performance_share"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	QueueDepth   int           `mapstructure:"queue_depth"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// LighthouseConfig holds settings for the external performance measurement
// tool.
type LighthouseConfig struct {
	BinaryPath string        `mapstructure:"binary_path"`
	ChromePath string        `mapstructure:"chrome_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ScheduleConfig defines one recurring audit.
type ScheduleConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Cron     string `mapstructure:"cron"`
	MaxPages int    `mapstructure:"max_pages"`
}

// Load reads configuration from the given file (optional) and the
// environment, applies defaults, and validates the result.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.goaudit")
		v.AddConfigPath("/etc/goaudit")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine; defaults plus env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for consistency. It is called at load
// time so misconfigured weights or thresholds fail at startup, not mid-audit.
func (c *Config) Validate() error {
	weightSum := c.Scoring.Weights.Performance +
		c.Scoring.Weights.Mobile +
		c.Scoring.Weights.SEO +
		c.Scoring.Weights.Checkout +
		c.Scoring.Weights.Links
	if math.Abs(weightSum-1.0) > weightSumTolerance {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", weightSum)
	}

	for name, w := range map[string]float64{
		"performance": c.Scoring.Weights.Performance,
		"mobile":      c.Scoring.Weights.Mobile,
		"seo":         c.Scoring.Weights.SEO,
		"checkout":    c.Scoring.Weights.Checkout,
		"links":       c.Scoring.Weights.Links,
	} {
		if w < 0 {
			return fmt.Errorf("scoring weight %q must not be negative", name)
		}
	}

	p := c.Scoring.Penalties
	if p.Critical < p.High || p.High < p.Medium || p.Medium < p.Low || p.Low < p.Info || p.Info < 0 {
		return errors.New("severity penalties must be ordered critical >= high >= medium >= low >= info >= 0")
	}

	if c.Scoring.MobilePerformanceShare < 0 || c.Scoring.MobilePerformanceShare > 1 {
		return errors.New("mobile_performance_share must be in [0,1]")
	}

	if c.Analysis.TitleMinLength >= c.Analysis.TitleMaxLength {
		return errors.New("title_min_length must be less than title_max_length")
	}
	if c.Analysis.LCPHigh >= c.Analysis.LCPCritical {
		return errors.New("lcp_high threshold must be below lcp_critical")
	}
	if c.Analysis.CLSMedium >= c.Analysis.CLSHigh {
		return errors.New("cls_medium threshold must be below cls_high")
	}
	if c.Analysis.PerfScoreCritical >= c.Analysis.PerfScoreMedium {
		return errors.New("perf_score_critical threshold must be below perf_score_medium")
	}

	for _, policy := range []struct {
		name string
		rp   RetryPolicy
	}{
		{"metadata", c.Analysis.Metadata},
		{"performance", c.Analysis.Performance},
		{"links", c.Analysis.Links},
		{"checkout", c.Analysis.Checkout},
	} {
		if policy.rp.Attempts < 1 {
			return fmt.Errorf("retry policy %q must allow at least one attempt", policy.name)
		}
		if policy.rp.Timeout <= 0 {
			return fmt.Errorf("retry policy %q must have a positive timeout", policy.name)
		}
	}

	if c.Crawler.DefaultMaxPages < 1 {
		return errors.New("crawler default_max_pages must be at least 1")
	}
	if c.Worker.PoolSize < 1 {
		return errors.New("worker pool_size must be at least 1")
	}

	return nil
}

// setDefaults registers the default value for every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "goaudit")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "goaudit")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("crawler.default_max_pages", 50)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.delay", 100*time.Millisecond)
	v.SetDefault("crawler.max_depth", 3)
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.user_agent", "EcommerceAuditBot/1.0 (Conversion Audit Tool)")

	v.SetDefault("analysis.title_min_length", 30)
	v.SetDefault("analysis.title_max_length", 60)
	v.SetDefault("analysis.desc_max_length", 160)
	v.SetDefault("analysis.lcp_critical", 4.0)
	v.SetDefault("analysis.lcp_high", 2.5)
	v.SetDefault("analysis.cls_high", 0.25)
	v.SetDefault("analysis.cls_medium", 0.1)
	v.SetDefault("analysis.perf_score_critical", 50)
	v.SetDefault("analysis.perf_score_medium", 75)
	v.SetDefault("analysis.link_check_timeout", 5*time.Second)
	v.SetDefault("analysis.link_max_redirects", 3)
	v.SetDefault("analysis.broken_links_high", 5)
	v.SetDefault("analysis.broken_links_shown", 5)
	v.SetDefault("analysis.max_checkout_steps", 5)
	v.SetDefault("analysis.max_total_form_fields", 15)
	v.SetDefault("analysis.max_step_form_fields", 8)
	v.SetDefault("analysis.max_step_load_time", 5*time.Second)
	v.SetDefault("analysis.checkout_paths", []string{"", "/cart", "/checkout"})
	v.SetDefault("analysis.screenshot_directory", "storage/screenshots")
	v.SetDefault("analysis.metadata.attempts", 3)
	v.SetDefault("analysis.metadata.timeout", 300*time.Second)
	v.SetDefault("analysis.performance.attempts", 3)
	v.SetDefault("analysis.performance.timeout", 300*time.Second)
	v.SetDefault("analysis.links.attempts", 3)
	v.SetDefault("analysis.links.timeout", 300*time.Second)
	v.SetDefault("analysis.checkout.attempts", 2)
	v.SetDefault("analysis.checkout.timeout", 300*time.Second)

	v.SetDefault("scoring.weights.performance", 0.30)
	v.SetDefault("scoring.weights.mobile", 0.25)
	v.SetDefault("scoring.weights.seo", 0.20)
	v.SetDefault("scoring.weights.checkout", 0.15)
	v.SetDefault("scoring.weights.links", 0.10)
	v.SetDefault("scoring.penalties.critical", 20)
	v.SetDefault("scoring.penalties.high", 10)
	v.SetDefault("scoring.penalties.medium", 5)
	v.SetDefault("scoring.penalties.low", 2)
	v.SetDefault("scoring.penalties.info", 0)
	v.SetDefault("scoring.mobile_performance_share", 0.60)

	v.SetDefault("worker.pool_size", 8)
	v.SetDefault("worker.queue_depth", 256)
	v.SetDefault("worker.drain_timeout", 30*time.Second)

	v.SetDefault("lighthouse.binary_path", "lighthouse")
	v.SetDefault("lighthouse.chrome_path", "")
	v.SetDefault("lighthouse.timeout", 120*time.Second)
}

// Default returns a validated configuration built purely from defaults.
// Tests and library consumers use it to avoid touching the filesystem.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; this cannot fail unless the struct drifts.
		panic(fmt.Sprintf("default config unmarshal: %v", err))
	}
	return &cfg
}
