package lex

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name           string
		level          LogLevel
		setupFunc      func(*Logger)
		expectedOutput []string
		notExpected    []string
	}{
		{
			name:  "debug level shows all messages",
			level: LogDebug,
			setupFunc: func(l *Logger) {
				l.Debug("debug message")
				l.Info("info message")
				l.Warn("warn message")
				l.Error("error message")
			},
			expectedOutput: []string{
				"[DEBUG] debug message",
				"[INFO] info message",
				"[WARN] warn message",
				"[ERROR] error message",
			},
		},
		{
			name:  "warn level shows only warnings and errors",
			level: LogWarn,
			setupFunc: func(l *Logger) {
				l.Debug("debug message")
				l.Info("info message")
				l.Warn("warn message")
				l.Error("error message")
			},
			expectedOutput: []string{"[WARN]", "[ERROR]"},
			notExpected:    []string{"[DEBUG]", "[INFO]"},
		},
		{
			name:  "off level shows nothing",
			level: LogOff,
			setupFunc: func(l *Logger) {
				l.Error("error message")
			},
			notExpected: []string{"[ERROR]"},
		},
		{
			name:  "structured fields",
			level: LogDebug,
			setupFunc: func(l *Logger) {
				l.WithFields(Fields{"pass": "variables", "depth": 2}).Debug("processing")
			},
			expectedOutput: []string{"processing", "depth=2", "pass=variables"},
		},
		{
			name:  "debug helpers",
			level: LogDebug,
			setupFunc: func(l *Logger) {
				l.DebugPass("conditionals", "abc")
				l.DebugCondition("age > 18", true)
			},
			expectedOutput: []string{
				"Pass complete",
				"pass=conditionals",
				"length=3",
				"Condition evaluated",
				"expression=age > 18",
				"result=true",
			},
		},
		{
			name:  "debug helpers are silent above debug",
			level: LogInfo,
			setupFunc: func(l *Logger) {
				l.DebugPass("conditionals", "abc")
				l.DebugCondition("x", false)
			},
			notExpected: []string{"Pass complete", "Condition evaluated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)

			tt.setupFunc(logger)

			output := buf.String()
			for _, expected := range tt.expectedOutput {
				if !strings.Contains(output, expected) {
					t.Errorf("Expected output to contain %q, but it didn't.\nOutput: %s", expected, output)
				}
			}
			for _, notExpected := range tt.notExpected {
				if strings.Contains(output, notExpected) {
					t.Errorf("Expected output NOT to contain %q, but it did.\nOutput: %s", notExpected, output)
				}
			}
		})
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, LogDebug))

	Debug("test debug")
	Info("test info")
	WithField("k", "v").Warn("test warn")
	Error("test error")

	output := buf.String()
	for _, expected := range []string{"[DEBUG] test debug", "[INFO] test info", "[WARN] test warn k=v", "[ERROR] test error"} {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected output to contain %q, but it didn't.\nOutput: %s", expected, output)
		}
	}
}

func TestParserDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithOptions(WithLogger(NewLogger(&buf, LogDebug)))

	_, err := p.Parse("{{ if a }}{{ items }}{{ v }}{{ /items }}{{ endif }}", Map(
		P("a", Bool(true)),
		P("items", Seq(Map(P("v", Int(1))))),
	), nil, false)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	output := buf.String()
	for _, expected := range []string{"Parsing template", "Condition evaluated", "loop=items", "depth=0"} {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected debug output to contain %q.\nOutput: %s", expected, output)
		}
	}
}

func TestDebugMode(t *testing.T) {
	logger := NewLogger(nil, LogDebug)
	if !logger.IsDebugMode() {
		t.Error("Expected IsDebugMode() to return true for LogDebug level")
	}

	child := logger.WithField("a", 1)
	logger.SetLevel(LogInfo)
	if logger.IsDebugMode() {
		t.Error("Expected IsDebugMode() to return false for LogInfo level")
	}
	if !child.IsDebugMode() {
		t.Error("child loggers keep the level they were created with")
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogDebug)

	logger.
		WithField("template", "page").
		WithFields(Fields{"depth": 1, "tag": "nav.links"}).
		Info("Dispatching")

	output := buf.String()
	for _, field := range []string{"template=page", "depth=1", "tag=nav.links"} {
		if !strings.Contains(output, field) {
			t.Errorf("Expected output to contain field %q, but it didn't.\nOutput: %s", field, output)
		}
	}
}
