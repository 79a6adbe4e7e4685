package logger_test

import (
	"strings"
	"testing"

	"github.com/leontov-kolibri/kolibri-x/pkg/logger"
)

// TestSimpleLogger tests the simple logger implementation
func TestSimpleLogger(t *testing.T) {
	// Create logger (writes through the standard log package, i.e. stderr)
	log := logger.NewSimpleLogger()
	
	// We can't easily test output without modifying the logger to accept a writer
	// So we'll just test that methods don't panic
	
	log.Debug("debug message", logger.Field{Key: "test", Value: "value"})
	log.Info("info message", logger.Field{Key: "test", Value: "value"})
	log.Warn("warn message", logger.Field{Key: "test", Value: "value"})
	log.Error("error message", logger.Field{Key: "test", Value: "value"})
}

// TestLoggerWith tests the With method
func TestLoggerWith(t *testing.T) {
	log := logger.NewSimpleLogger()
	
	// Create a logger with additional fields
	logWithFields := log.With(
		logger.Field{Key: "component", Value: "test"},
		logger.Field{Key: "version", Value: "1.0"},
	)
	
	// Test that it doesn't panic
	logWithFields.Info("test message")
}

// TestLogLevels tests different log levels
func TestLogLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"Debug", "debug"},
		{"Info", "info"},
		{"Warn", "warn"},
		{"Error", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.NewSimpleLogger()
			log.SetLevel(tt.level)
			
			// Test that logger creation doesn't panic
			if log == nil {
				t.Error("Logger should not be nil")
			}
		})
	}
}

// TestFieldFormatting tests field formatting
func TestFieldFormatting(t *testing.T) {
	tests := []struct {
		name     string
		field    logger.Field
		expected string
	}{
		{
			name:     "String field",
			field:    logger.Field{Key: "message", Value: "hello"},
			expected: "message",
		},
		{
			name:     "Number field",
			field:    logger.Field{Key: "count", Value: 42},
			expected: "count",
		},
		{
			name:     "Boolean field",
			field:    logger.Field{Key: "enabled", Value: true},
			expected: "enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Just verify the field key is accessible
			if tt.field.Key != tt.expected {
				t.Errorf("Field key mismatch: got %s, want %s", tt.field.Key, tt.expected)
			}
		})
	}
}

// BenchmarkLogger benchmarks logger performance
func BenchmarkLogger(b *testing.B) {
	log := logger.NewSimpleLogger()
	log.SetLevel("info")
	
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Info("benchmark message",
			logger.Field{Key: "iteration", Value: i},
			logger.Field{Key: "benchmark", Value: true},
		)
	}
}

// Helper function to check if output contains expected string
func containsString(output, expected string) bool {
	return strings.Contains(output, expected)
}

// TestDomainFieldConstructors checks that the runtime's structured-field
// helpers produce the key vocabulary the journal and SLO tracker use.
func TestDomainFieldConstructors(t *testing.T) {
	tests := []struct {
		name  string
		field logger.Field
		key   string
		value interface{}
	}{
		{"session", logger.SessionField("sess-1"), "session_id", "sess-1"},
		{"stage", logger.StageField("planning"), "stage", "planning"},
		{"skill", logger.SkillField("writer"), "skill", "writer"},
		{"status", logger.StatusField("ok"), "status", "ok"},
		{"event", logger.EventField("session_started"), "event", "session_started"},
		{"duration", logger.DurationMsField(12.5), "duration_ms", 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.key {
				t.Errorf("key mismatch: got %s, want %s", tt.field.Key, tt.key)
			}
			if tt.field.Value != tt.value {
				t.Errorf("value mismatch: got %v, want %v", tt.field.Value, tt.value)
			}
		})
	}
}

// TestWithDomainFieldsChains verifies the field constructors compose with
// With the same way ad-hoc Field literals do.
func TestWithDomainFieldsChains(t *testing.T) {
	log := logger.NewSimpleLogger()
	scoped := log.With(logger.SessionField("sess-1"), logger.StageField("planning"))
	scoped.Info("stage entered")
}