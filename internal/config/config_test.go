package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 1.0, cfg.Scoring.Weights.Performance+
		cfg.Scoring.Weights.Mobile+
		cfg.Scoring.Weights.SEO+
		cfg.Scoring.Weights.Checkout+
		cfg.Scoring.Weights.Links, 1e-9)
	assert.Equal(t, []string{"", "/cart", "/checkout"}, cfg.Analysis.CheckoutPaths)
	assert.Equal(t, 3, cfg.Analysis.Metadata.Attempts)
	assert.Equal(t, 2, cfg.Analysis.Checkout.Attempts)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "weights do not sum to one",
			mutate:  func(cfg *Config) { cfg.Scoring.Weights.Performance = 0.5 },
			wantErr: "must sum to 1.0",
		},
		{
			name: "negative weight",
			mutate: func(cfg *Config) {
				cfg.Scoring.Weights.Performance = -0.1
				cfg.Scoring.Weights.Mobile += 0.4
			},
			wantErr: "must not be negative",
		},
		{
			name:    "penalties out of order",
			mutate:  func(cfg *Config) { cfg.Scoring.Penalties.Medium = 50 },
			wantErr: "severity penalties must be ordered",
		},
		{
			name:    "mobile share out of range",
			mutate:  func(cfg *Config) { cfg.Scoring.MobilePerformanceShare = 1.5 },
			wantErr: "mobile_performance_share",
		},
		{
			name:    "title bounds inverted",
			mutate:  func(cfg *Config) { cfg.Analysis.TitleMinLength = 80 },
			wantErr: "title_min_length",
		},
		{
			name:    "lcp thresholds inverted",
			mutate:  func(cfg *Config) { cfg.Analysis.LCPHigh = 5.0 },
			wantErr: "lcp_high",
		},
		{
			name:    "cls thresholds inverted",
			mutate:  func(cfg *Config) { cfg.Analysis.CLSMedium = 0.5 },
			wantErr: "cls_medium",
		},
		{
			name:    "performance score thresholds inverted",
			mutate:  func(cfg *Config) { cfg.Analysis.PerfScoreCritical = 90 },
			wantErr: "perf_score_critical",
		},
		{
			name:    "retry policy without attempts",
			mutate:  func(cfg *Config) { cfg.Analysis.Links.Attempts = 0 },
			wantErr: `retry policy "links"`,
		},
		{
			name:    "retry policy without timeout",
			mutate:  func(cfg *Config) { cfg.Analysis.Checkout.Timeout = 0 },
			wantErr: `retry policy "checkout"`,
		},
		{
			name:    "zero max pages",
			mutate:  func(cfg *Config) { cfg.Crawler.DefaultMaxPages = 0 },
			wantErr: "default_max_pages",
		},
		{
			name:    "zero pool size",
			mutate:  func(cfg *Config) { cfg.Worker.PoolSize = 0 },
			wantErr: "pool_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 50, cfg.Crawler.DefaultMaxPages)
	assert.Equal(t, 8, cfg.Worker.PoolSize)
}

func TestLoadHonoursEnvironment(t *testing.T) {
	t.Setenv("GOAUDIT_SERVER_ADDRESS", ":9090")
	t.Setenv("GOAUDIT_CRAWLER_DEFAULT_MAX_PAGES", "25")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 25, cfg.Crawler.DefaultMaxPages)
}
