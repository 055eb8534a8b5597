package lex

import (
	"container/list"
	"sync"
	"time"
)

// CacheConfig contains configuration options for the expression cache
type CacheConfig struct {
	// MaxSize is the maximum number of parsed conditions to cache. 0 disables caching.
	MaxSize int
	// TTL is the time-to-live for cached conditions. 0 means no expiration.
	TTL time.Duration
}

// ExpressionCache keeps parsed conditional expressions so repeated
// conditions, such as the ones inside a loop body, are tokenized once.
type ExpressionCache struct {
	mu     sync.Mutex
	cache  map[string]*cacheEntry
	lru    *list.List
	config CacheConfig
}

type cacheEntry struct {
	key     string
	node    condNode
	expiry  time.Time
	element *list.Element
}

// NewExpressionCache creates a new cache sized from the global configuration
func NewExpressionCache() *ExpressionCache {
	config := GetGlobalConfig()
	return NewExpressionCacheWithConfig(CacheConfig{
		MaxSize: config.CacheMaxSize,
		TTL:     config.CacheTTL,
	})
}

// NewExpressionCacheWithConfig creates a new cache with the given configuration
func NewExpressionCacheWithConfig(config CacheConfig) *ExpressionCache {
	return &ExpressionCache{
		cache:  make(map[string]*cacheEntry),
		lru:    list.New(),
		config: config,
	}
}

func cacheKey(glue, expr string) string {
	return glue + "\x00" + expr
}

// Parse returns the parsed tree for expr, parsing and caching it on a miss.
// Expressions that fail to parse are not cached.
func (ec *ExpressionCache) Parse(expr, glue string) (condNode, error) {
	key := cacheKey(glue, expr)
	if node, ok := ec.get(key); ok {
		return node, nil
	}

	node, err := parseCondition(expr, glue)
	if err != nil {
		return nil, err
	}
	ec.set(key, node)
	return node, nil
}

// Has reports whether expr is cached for glue
func (ec *ExpressionCache) Has(expr, glue string) bool {
	_, ok := ec.get(cacheKey(glue, expr))
	return ok
}

func (ec *ExpressionCache) get(key string) (condNode, bool) {
	if ec == nil {
		return nil, false
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()

	entry, exists := ec.cache[key]
	if !exists {
		return nil, false
	}

	// Check expiry
	if ec.config.TTL > 0 && time.Now().After(entry.expiry) {
		ec.removeLocked(entry)
		return nil, false
	}

	ec.lru.MoveToFront(entry.element)
	return entry.node, true
}

func (ec *ExpressionCache) set(key string, node condNode) {
	if ec == nil || ec.config.MaxSize <= 0 {
		return
	}

	ec.mu.Lock()
	defer ec.mu.Unlock()

	expiry := time.Time{}
	if ec.config.TTL > 0 {
		expiry = time.Now().Add(ec.config.TTL)
	}

	if existing, exists := ec.cache[key]; exists {
		existing.node = node
		existing.expiry = expiry
		ec.lru.MoveToFront(existing.element)
		return
	}

	// Evict least recently used
	for ec.lru.Len() >= ec.config.MaxSize {
		oldest := ec.lru.Back()
		if oldest == nil {
			break
		}
		ec.removeLocked(oldest.Value.(*cacheEntry))
	}

	entry := &cacheEntry{key: key, node: node, expiry: expiry}
	entry.element = ec.lru.PushFront(entry)
	ec.cache[key] = entry
}

func (ec *ExpressionCache) removeLocked(entry *cacheEntry) {
	delete(ec.cache, entry.key)
	ec.lru.Remove(entry.element)
}

// Clear removes every cached expression
func (ec *ExpressionCache) Clear() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.cache = make(map[string]*cacheEntry)
	ec.lru = list.New()
}

// Size returns the current number of cached expressions
func (ec *ExpressionCache) Size() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.cache)
}
