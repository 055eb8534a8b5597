package lex

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.CacheMaxSize != 256 {
		t.Errorf("DefaultConfig CacheMaxSize = %d, want 256", config.CacheMaxSize)
	}

	if config.CacheTTL != 0 {
		t.Errorf("DefaultConfig CacheTTL = %v, want 0", config.CacheTTL)
	}

	if config.LogLevel != "info" {
		t.Errorf("DefaultConfig LogLevel = %s, want info", config.LogLevel)
	}

	if config.MaxRenderDepth != 100 {
		t.Errorf("DefaultConfig MaxRenderDepth = %d, want 100", config.MaxRenderDepth)
	}

	if config.ScopeGlue != "." {
		t.Errorf("DefaultConfig ScopeGlue = %q, want \".\"", config.ScopeGlue)
	}

	if config.CumulativeNoparse || config.AllowRawCode {
		t.Errorf("DefaultConfig toggles should be off")
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, config *Config)
	}{
		{
			name:    "cache max size",
			envVars: map[string]string{"LEX_CACHE_MAX_SIZE": "50"},
			check: func(t *testing.T, config *Config) {
				if config.CacheMaxSize != 50 {
					t.Errorf("CacheMaxSize = %d, want 50", config.CacheMaxSize)
				}
			},
		},
		{
			name:    "cache TTL",
			envVars: map[string]string{"LEX_CACHE_TTL": "5m"},
			check: func(t *testing.T, config *Config) {
				if config.CacheTTL != 5*time.Minute {
					t.Errorf("CacheTTL = %v, want 5m", config.CacheTTL)
				}
			},
		},
		{
			name:    "scope glue",
			envVars: map[string]string{"LEX_SCOPE_GLUE": "~"},
			check: func(t *testing.T, config *Config) {
				if config.ScopeGlue != "~" {
					t.Errorf("ScopeGlue = %q, want ~", config.ScopeGlue)
				}
			},
		},
		{
			name: "toggles",
			envVars: map[string]string{
				"LEX_CUMULATIVE_NOPARSE": "yes",
				"LEX_ALLOW_RAW_CODE":     "1",
			},
			check: func(t *testing.T, config *Config) {
				if !config.CumulativeNoparse {
					t.Errorf("CumulativeNoparse = false, want true")
				}
				if !config.AllowRawCode {
					t.Errorf("AllowRawCode = false, want true")
				}
			},
		},
		{
			name: "multiple environment variables",
			envVars: map[string]string{
				"LEX_MAX_RENDER_DEPTH": "10",
				"LEX_LOG_LEVEL":        "error",
			},
			check: func(t *testing.T, config *Config) {
				if config.MaxRenderDepth != 10 {
					t.Errorf("MaxRenderDepth = %d, want 10", config.MaxRenderDepth)
				}
				if config.LogLevel != "error" {
					t.Errorf("LogLevel = %s, want error", config.LogLevel)
				}
			},
		},
		{
			name:    "invalid numbers keep defaults",
			envVars: map[string]string{"LEX_CACHE_MAX_SIZE": "invalid", "LEX_CACHE_TTL": "soon"},
			check: func(t *testing.T, config *Config) {
				if config.CacheMaxSize != 256 {
					t.Errorf("CacheMaxSize = %d, want 256 (default)", config.CacheMaxSize)
				}
				if config.CacheTTL != 0 {
					t.Errorf("CacheTTL = %v, want 0 (default)", config.CacheTTL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			tt.check(t, ConfigFromEnvironment())
		})
	}
}

func TestNewConfigWithDefaults(t *testing.T) {
	config := NewConfigWithDefaults(&Config{CacheMaxSize: 5})
	if config.CacheMaxSize != 5 {
		t.Errorf("CacheMaxSize = %d, want 5", config.CacheMaxSize)
	}
	if config.LogLevel != "info" || config.MaxRenderDepth != 100 || config.ScopeGlue != "." {
		t.Errorf("unset fields were not defaulted: %+v", config)
	}

	if got := NewConfigWithDefaults(nil); got.CacheMaxSize != 256 {
		t.Errorf("nil overrides should give defaults, got %+v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative cache size", func(c *Config) { c.CacheMaxSize = -1 }, true},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Second }, true},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"zero depth", func(c *Config) { c.MaxRenderDepth = 0 }, true},
		{"empty glue", func(c *Config) { c.ScopeGlue = "" }, true},
		{"glue with space", func(c *Config) { c.ScopeGlue = " " }, true},
		{"glue with brace", func(c *Config) { c.ScopeGlue = "}" }, true},
		{"custom glue", func(c *Config) { c.ScopeGlue = "::" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGlobalConfig(t *testing.T) {
	original := GetGlobalConfig()
	defer SetGlobalConfig(original)

	SetGlobalConfig(&Config{CacheMaxSize: 7, LogLevel: "off", MaxRenderDepth: 3, ScopeGlue: ":"})

	config := GetGlobalConfig()
	if config.CacheMaxSize != 7 {
		t.Errorf("global CacheMaxSize = %d, want 7", config.CacheMaxSize)
	}

	// The returned value is a copy.
	config.CacheMaxSize = 99
	if GetGlobalConfig().CacheMaxSize != 7 {
		t.Errorf("modifying the returned config changed the global one")
	}

	p := New()
	if p.ScopeGlue() != ":" {
		t.Errorf("New() glue = %q, want :", p.ScopeGlue())
	}
	if p.Config().MaxRenderDepth != 3 {
		t.Errorf("New() MaxRenderDepth = %d, want 3", p.Config().MaxRenderDepth)
	}
}
