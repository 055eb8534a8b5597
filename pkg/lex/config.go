package lex

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config contains all configuration options for a Parser
type Config struct {
	// CacheMaxSize is the maximum number of parsed conditions to keep. 0 disables caching.
	CacheMaxSize int
	// CacheTTL is the time-to-live for cached conditions. 0 means no expiration.
	CacheTTL time.Duration
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string
	// MaxRenderDepth bounds nested parsing through callbacks and recursive markers
	MaxRenderDepth int
	// ScopeGlue separates nested path segments
	ScopeGlue string
	// CumulativeNoparse keeps noparse regions extracted across Parse calls
	// until InjectNoparse is called
	CumulativeNoparse bool
	// AllowRawCode disables escaping of "<?" and "?>" in templates
	AllowRawCode bool
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CacheMaxSize:      256,
		CacheTTL:          0,
		LogLevel:          "info",
		MaxRenderDepth:    100,
		ScopeGlue:         DefaultScopeGlue,
		CumulativeNoparse: false,
		AllowRawCode:      false,
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	// LEX_CACHE_MAX_SIZE
	if val := os.Getenv("LEX_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.CacheMaxSize = size
		}
	}

	// LEX_CACHE_TTL
	if val := os.Getenv("LEX_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.CacheTTL = duration
		}
	}

	// LEX_LOG_LEVEL
	if val := os.Getenv("LEX_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	// LEX_MAX_RENDER_DEPTH
	if val := os.Getenv("LEX_MAX_RENDER_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			config.MaxRenderDepth = depth
		}
	}

	// LEX_SCOPE_GLUE
	if val := os.Getenv("LEX_SCOPE_GLUE"); val != "" {
		config.ScopeGlue = val
	}

	// LEX_CUMULATIVE_NOPARSE
	if val := os.Getenv("LEX_CUMULATIVE_NOPARSE"); val != "" {
		config.CumulativeNoparse = parseBool(val)
	}

	// LEX_ALLOW_RAW_CODE
	if val := os.Getenv("LEX_ALLOW_RAW_CODE"); val != "" {
		config.AllowRawCode = parseBool(val)
	}

	return config
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	config := *overrides

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	if config.MaxRenderDepth == 0 {
		config.MaxRenderDepth = defaults.MaxRenderDepth
	}

	if config.ScopeGlue == "" {
		config.ScopeGlue = defaults.ScopeGlue
	}

	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}

	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.MaxRenderDepth <= 0 {
		return errors.New("max render depth must be positive")
	}

	if c.ScopeGlue == "" {
		return errors.New("scope glue cannot be empty")
	}

	if strings.ContainsAny(c.ScopeGlue, " \t\r\n{}\"'=/*") {
		return errors.New("scope glue cannot contain whitespace, quotes or tag delimiters: " + strconv.Quote(c.ScopeGlue))
	}

	return nil
}

// GetGlobalConfig returns a copy of the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Update logger based on new config (outside the lock to avoid deadlock)
	UpdateLoggerFromConfig()
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
