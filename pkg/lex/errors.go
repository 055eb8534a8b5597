package lex

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMaxDepth is returned (wrapped in a DepthError) when nested parsing
// exceeds the configured render depth.
var ErrMaxDepth = errors.New("maximum render depth exceeded")

// ParseError reports a conditional that cannot be reduced to a well-formed
// boolean expression, or a conditional chain that is not closed.
type ParseError struct {
	Message  string
	Fragment string
	Position int
}

func (e *ParseError) Error() string {
	if e.Fragment != "" {
		return fmt.Sprintf("parse error at position %d near '%s': %s", e.Position, e.Fragment, e.Message)
	}
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Message)
}

// NewParseError creates a new parse error
func NewParseError(message, fragment string, position int) error {
	return &ParseError{
		Message:  message,
		Fragment: fragment,
		Position: position,
	}
}

// DepthError is raised when recursive expansion or nested parsing goes deeper
// than the limit.
type DepthError struct {
	Depth int
	Limit int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("%v: depth %d exceeds limit %d", ErrMaxDepth, e.Depth, e.Limit)
}

func (e *DepthError) Unwrap() error {
	return ErrMaxDepth
}

// CallbackError wraps an error returned by a tag callback
type CallbackError struct {
	Name  string
	Cause error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback error in '%s': %v", e.Name, e.Cause)
}

func (e *CallbackError) Unwrap() error {
	return e.Cause
}

// ContextError adds context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	var contextParts []string
	for k, v := range e.Context {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
	}

	if len(contextParts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(contextParts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// RecoverError converts a panic recovery value to an error
func RecoverError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic recovered: %w", v)
	case string:
		return fmt.Errorf("panic recovered: %s", v)
	default:
		return fmt.Errorf("panic recovered: %v", v)
	}
}

// IsParseError checks if an error is, or wraps, a parse error
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsDepthError checks if an error is, or wraps, a depth error
func IsDepthError(err error) bool {
	return errors.Is(err, ErrMaxDepth)
}

// IsCallbackError checks if an error is, or wraps, a callback error
func IsCallbackError(err error) bool {
	var ce *CallbackError
	return errors.As(err, &ce)
}
