package lex

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "ParseError",
			err:     &ParseError{Message: "missing {{ endif }}", Fragment: "a", Position: 3},
			wantMsg: "parse error at position 3 near 'a': missing {{ endif }}",
		},
		{
			name:    "ParseError without fragment",
			err:     &ParseError{Message: "empty condition", Position: 0},
			wantMsg: "parse error at position 0: empty condition",
		},
		{
			name:    "DepthError",
			err:     &DepthError{Depth: 101, Limit: 100},
			wantMsg: "maximum render depth exceeded: depth 101 exceeds limit 100",
		},
		{
			name:    "CallbackError",
			err:     &CallbackError{Name: "nav.links", Cause: errors.New("no menu")},
			wantMsg: "callback error in 'nav.links': no menu",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	parseErr := NewParseError("bad", "x", 1)
	depthErr := &DepthError{Depth: 2, Limit: 1}
	cbErr := &CallbackError{Name: "a.b", Cause: depthErr}

	if !IsParseError(fmt.Errorf("wrapped: %w", parseErr)) {
		t.Error("IsParseError should see through wrapping")
	}
	if IsParseError(depthErr) {
		t.Error("IsParseError(DepthError) = true")
	}
	if !IsDepthError(cbErr) {
		t.Error("IsDepthError should find a depth error inside a callback error")
	}
	if !errors.Is(depthErr, ErrMaxDepth) {
		t.Error("DepthError should unwrap to ErrMaxDepth")
	}
	if !IsCallbackError(WithContext(cbErr, "render", nil)) {
		t.Error("IsCallbackError should see through ContextError")
	}
}

func TestNewParseError(t *testing.T) {
	err := NewParseError("unexpected token", "==", 42)

	parseErr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("NewParseError should return *ParseError, got %T", err)
	}
	if parseErr.Fragment != "==" || parseErr.Position != 42 {
		t.Errorf("NewParseError fragment/position = (%s, %d), want (==, 42)", parseErr.Fragment, parseErr.Position)
	}
}

func TestErrorRecovery(t *testing.T) {
	tests := []struct {
		value interface{}
		want  string
	}{
		{"text", "panic recovered: text"},
		{errors.New("err"), "panic recovered: err"},
		{42, "panic recovered: 42"},
	}
	for _, tt := range tests {
		if got := RecoverError(tt.value).Error(); got != tt.want {
			t.Errorf("RecoverError(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestParserRecoversPanics(t *testing.T) {
	p := NewWithOptions(WithLogger(NewNopLogger()))
	_, err := p.Parse("{{ boom.now }}", Map(), func(s *Session, tag Tag) (string, error) {
		var m map[string]int
		m["x"] = 1
		return "", nil
	}, false)
	if err == nil || !strings.Contains(err.Error(), "panic recovered") {
		t.Errorf("expected a recovered panic, got %v", err)
	}
}

func TestErrorContext(t *testing.T) {
	baseErr := errors.New("file not found")

	contextErr := WithContext(baseErr, "loading data", map[string]interface{}{
		"file": "data.yaml",
	})

	if !strings.Contains(contextErr.Error(), "file not found") {
		t.Error("WithContext should preserve original error message")
	}
	if !strings.Contains(contextErr.Error(), "loading data [file=data.yaml]") {
		t.Errorf("WithContext should include operation context, got %q", contextErr.Error())
	}
	if !errors.Is(contextErr, baseErr) {
		t.Error("errors.Is() should return true for wrapped error")
	}
	if WithContext(nil, "noop", nil) != nil {
		t.Error("WithContext(nil) should return nil")
	}
}
