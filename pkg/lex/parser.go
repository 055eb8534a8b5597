package lex

import (
	"sync"
	"time"
)

// Parser renders templates. Its settings (scope glue, cumulative noparse) are
// read once at the start of each Parse, and every Parse gets its own Session,
// so one Parser can serve concurrent callers.
type Parser struct {
	mu         sync.RWMutex
	glue       string
	cumulative bool

	noparse *Store
	config  *Config
	cache   *ExpressionCache
	logger  *Logger
	metrics *Metrics
}

// Parse renders text against data. callback may be nil, in which case
// unresolved tags render as nothing. Unless allowRawCode (or
// Config.AllowRawCode) is set, "<?" and "?>" in the template are escaped.
func (p *Parser) Parse(text string, data Value, callback Callback, allowRawCode bool) (result string, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result, err = "", RecoverError(r)
		}
		p.metrics.observeParse(start, err)
	}()

	s := p.newSession(data, callback, allowRawCode)
	s.logger.WithField("length", len(text)).Debug("Parsing template")

	result, err = s.render(text, data)
	if err != nil {
		s.logger.WithField("error", err).Debug("Parse failed")
		return "", err
	}
	return result, nil
}

// ParseComments removes {{# ... #}} comments and nothing else
func (p *Parser) ParseComments(text string) string {
	return parseComments(text)
}

// ParseVariables substitutes variables and expands loops, without the
// conditional pass of the enclosing text. Loop bodies still evaluate their
// own conditionals.
func (p *Parser) ParseVariables(text string, data Value, callback Callback) (string, error) {
	s := p.newSession(data, callback, true)
	store := NewStore()
	text, err := s.parseVariables(text, data, store)
	if err != nil {
		return "", err
	}
	return store.InjectAll(text), nil
}

// ParseConditionals evaluates the conditional chains of text and keeps the
// selected branches. Other tags are left untouched.
func (p *Parser) ParseConditionals(text string, data Value, callback Callback) (string, error) {
	s := p.newSession(data, callback, true)
	return s.parseConditionals(text, data)
}

// ParseCallbackTags dispatches the tags of text to callback, expanding any
// recursive markers in the results.
func (p *Parser) ParseCallbackTags(text string, data Value, callback Callback) (string, error) {
	if callback == nil {
		return text, nil
	}
	s := p.newSession(data, callback, true)
	return s.parseCallbackTags(text, data)
}

// EvaluateCondition evaluates a single conditional expression against data
func (p *Parser) EvaluateCondition(expr string, data Value, callback Callback) (bool, error) {
	s := p.newSession(data, callback, true)
	return s.evaluate(expr, data)
}

// ScopeGlue returns the path separator, setting it first when one is given.
// An empty glue is ignored.
func (p *Parser) ScopeGlue(glue ...string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(glue) > 0 && glue[0] != "" {
		p.glue = glue[0]
	}
	return p.glue
}

// CumulativeNoparse toggles whether noparse regions stay hidden across Parse
// calls until InjectNoparse is called
func (p *Parser) CumulativeNoparse(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cumulative = enabled
}

// InjectNoparse restores the noparse regions kept back in cumulative mode
func (p *Parser) InjectNoparse(text string) string {
	return p.noparse.Inject(text, CategoryNoparse)
}

// Config returns the parser's configuration
func (p *Parser) Config() *Config {
	return p.config
}

// ClearCache removes all parsed conditions from the cache
func (p *Parser) ClearCache() {
	if p.cache != nil {
		p.cache.Clear()
	}
}

func (p *Parser) newSession(data Value, callback Callback, allowRawCode bool) *Session {
	p.mu.RLock()
	glue, cumulative := p.glue, p.cumulative
	p.mu.RUnlock()

	return &Session{
		parser:     p,
		root:       data,
		ctx:        data,
		callback:   callback,
		allowRaw:   allowRawCode || p.config.AllowRawCode,
		glue:       glue,
		cumulative: cumulative,
		logger:     p.logger.WithField("depth", 0),
	}
}
