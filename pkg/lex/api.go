package lex

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// New creates a parser with the global configuration.
func New() *Parser {
	return NewWithConfig(GetGlobalConfig())
}

// NewWithConfig creates a parser with a custom configuration. Unset fields
// fall back to their defaults.
func NewWithConfig(config *Config) *Parser {
	config = NewConfigWithDefaults(config)
	return &Parser{
		glue:       config.ScopeGlue,
		cumulative: config.CumulativeNoparse,
		noparse:    NewStore(),
		config:     config,
		cache: NewExpressionCacheWithConfig(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		}),
		logger: GetLogger(),
	}
}

// Option represents a configuration option for the parser.
type Option func(*Parser)

// WithConfig returns an option that replaces the parser configuration.
func WithConfig(config *Config) Option {
	return func(p *Parser) {
		config = NewConfigWithDefaults(config)
		p.config = config
		p.glue = config.ScopeGlue
		p.cumulative = config.CumulativeNoparse
		p.cache = NewExpressionCacheWithConfig(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		})
	}
}

// WithLogger returns an option that sets the logger used for debug output.
func WithLogger(logger *Logger) Option {
	return func(p *Parser) {
		if logger == nil {
			logger = NewNopLogger()
		}
		p.logger = logger
	}
}

// WithMetrics returns an option that reports parse metrics to reg.
// Registration errors other than duplicate registration are logged and the
// parser runs without metrics.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Parser) {
		m, err := NewMetrics(reg)
		if err != nil {
			p.logger.Warn("Failed to register metrics: %v", err)
			return
		}
		p.metrics = m
	}
}

// WithScopeGlue returns an option that sets the path separator.
func WithScopeGlue(glue string) Option {
	return func(p *Parser) {
		p.ScopeGlue(glue)
	}
}

// WithCumulativeNoparse returns an option that keeps noparse regions hidden
// until InjectNoparse is called.
func WithCumulativeNoparse(enabled bool) Option {
	return func(p *Parser) {
		p.CumulativeNoparse(enabled)
	}
}

// WithCache returns an option that sizes the expression cache (0 disables caching).
func WithCache(maxSize int, ttl time.Duration) Option {
	return func(p *Parser) {
		p.config.CacheMaxSize = maxSize
		p.config.CacheTTL = ttl
		p.cache = NewExpressionCacheWithConfig(CacheConfig{MaxSize: maxSize, TTL: ttl})
	}
}

// NewWithOptions creates a new parser with the specified options.
func NewWithOptions(opts ...Option) *Parser {
	parser := New()
	for _, opt := range opts {
		opt(parser)
	}
	return parser
}

var (
	defaultParser     *Parser
	defaultParserOnce sync.Once
)

// DefaultParser returns the parser used by the package-level functions
func DefaultParser() *Parser {
	defaultParserOnce.Do(func() {
		defaultParser = New()
	})
	return defaultParser
}

// Parse renders text with the default parser.
func Parse(text string, data Value, callback Callback) (string, error) {
	return DefaultParser().Parse(text, data, callback, false)
}
