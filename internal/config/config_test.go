package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Crawl.MaxDepth)
	assert.Equal(t, 200, cfg.Crawl.MaxPages)
	assert.Equal(t, 3, cfg.Crawl.Concurrency)
	assert.Equal(t, time.Second, cfg.Crawl.RateLimit.Duration)
	assert.Equal(t, 20*time.Second, cfg.Crawl.RequestTimeout.Duration)
	assert.Equal(t, 5, cfg.Crawl.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Crawl.RetryBase.Duration)
	assert.Equal(t, 15*time.Second, cfg.Crawl.RetryCap.Duration)
	assert.True(t, cfg.Robots.Respect)
	assert.Equal(t, 24*time.Hour, cfg.Robots.CacheTTL.Duration)
	assert.False(t, cfg.Rendering.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromReaderOverlaysDefaults(t *testing.T) {
	doc := `
crawl:
  seed: https://shop.example/collections/solar
  max_pages: 50
  rate_limit: 500ms
  request_timeout: 10
robots:
  respect: false
  overrides: [" Shop.Example ", "shop.example", "other.example"]
catalog:
  distributor_id: dist-42
logging:
  level: debug
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example/collections/solar", cfg.Crawl.Seed)
	assert.Equal(t, 50, cfg.Crawl.MaxPages)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Crawl.MaxDepth)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawl.RateLimit.Duration)
	// Bare numbers parse as seconds.
	assert.Equal(t, 10*time.Second, cfg.Crawl.RequestTimeout.Duration)
	assert.False(t, cfg.Robots.Respect)
	assert.Equal(t, []string{"other.example", "shop.example"}, cfg.Robots.Overrides)
	assert.Equal(t, "dist-42", cfg.Catalog.DistributorID)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromReaderRejectsUnknownKeys(t *testing.T) {
	doc := `
crawl:
  seed: https://shop.example/
  max_pagez: 50
`
	_, err := LoadFromReader(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Crawl.Seed = "https://shop.example/"

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing seed", func(c *Config) { c.Crawl.Seed = "  " }, "crawl.seed"},
		{"zero depth", func(c *Config) { c.Crawl.MaxDepth = 0 }, "crawl.max_depth"},
		{"zero pages", func(c *Config) { c.Crawl.MaxPages = 0 }, "crawl.max_pages"},
		{"zero concurrency", func(c *Config) { c.Crawl.Concurrency = 0 }, "crawl.concurrency"},
		{"negative retries", func(c *Config) { c.Crawl.MaxRetries = -1 }, "crawl.max_retries"},
		{"missing user agent", func(c *Config) { c.Crawl.UserAgent = "" }, "crawl.user_agent"},
		{"robots agent required", func(c *Config) { c.Robots.UserAgent = "" }, "robots.user_agent"},
		{"bad render engine", func(c *Config) {
			c.Rendering.Enabled = true
			c.Rendering.Engine = "phantomjs"
		}, "rendering engine"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{`value: 2s`, 2 * time.Second},
		{`value: 1m30s`, 90 * time.Second},
		{`value: 250ms`, 250 * time.Millisecond},
		{`value: 3`, 3 * time.Second},
		{`value: 0.5`, 500 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			var out struct {
				Value Duration `yaml:"value"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tc.in), &out))
			assert.Equal(t, tc.want, out.Value.Duration)
		})
	}

	var out struct {
		Value Duration `yaml:"value"`
	}
	assert.Error(t, yaml.Unmarshal([]byte(`value: soon`), &out))
}
