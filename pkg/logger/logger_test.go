package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"zk-attestation/pkg/utilities/timeutil"

	"github.com/rs/zerolog"
)

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   LoggerConfig
		expected zerolog.Level
	}{
		{"Default log level when no level specified", LoggerConfig{LogLevel: zerolog.NoLevel}, zerolog.InfoLevel},
		{"Debug log level", LoggerConfig{LogLevel: zerolog.DebugLevel}, zerolog.DebugLevel},
		{"Error log level", LoggerConfig{LogLevel: zerolog.ErrorLevel}, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewFromConfig(tt.config)
			if got := l.zl.GetLevel(); got != tt.expected {
				t.Errorf("Expected level %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestLoggerWithLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New().WithOutput(&buf).WithLevel(zerolog.ErrorLevel)

	l.Info("info message")
	l.Error(errors.New("test error"), "error message")

	output := buf.String()
	if strings.Contains(output, "info message") {
		t.Error("Info message should not appear when level is set to Error")
	}
	if !strings.Contains(output, "error message") || !strings.Contains(output, "test error") {
		t.Errorf("Expected error line with details, got: %s", output)
	}
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	l := New().WithOutput(&buf).WithField("component", "engine")

	l.Infof("generated %d attestations", 3)

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}
	if entry["component"] != "engine" {
		t.Errorf("Expected component field, got %v", entry["component"])
	}
	if entry["message"] != "generated 3 attestations" {
		t.Errorf("Unexpected message: %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("Expected info level, got %v", entry["level"])
	}
}

func TestLoggerSink(t *testing.T) {
	var buf bytes.Buffer
	l := New().WithOutput(&buf).WithLevel(zerolog.WarnLevel)

	var received []string
	AddSinkToLoggerInstance(l, func(msg string, level zerolog.Level, ts timeutil.TimeUTC) {
		if ts.T == 0 {
			t.Error("Expected sink timestamp to be set")
		}
		received = append(received, level.String()+":"+msg)
	})

	l.Debug("dropped")
	l.Warnf("cache has %d expired entries", 2)
	l.Error(errors.New("boom"), "prover failed")

	if len(received) != 2 {
		t.Fatalf("Expected 2 sink calls, got %d: %v", len(received), received)
	}
	if received[0] != "warn:cache has 2 expired entries" {
		t.Errorf("Unexpected sink message: %s", received[0])
	}
	if received[1] != "error:prover failed" {
		t.Errorf("Unexpected sink message: %s", received[1])
	}
}

func TestLoggerConfigConvertToDomain(t *testing.T) {
	debug := int8(zerolog.DebugLevel)

	if got := (LoggerConfigJson{}).ConvertToDomain(); got.LogLevel != zerolog.InfoLevel {
		t.Errorf("Expected info level for missing log_level, got %v", got.LogLevel)
	}
	if got := (LoggerConfigJson{LogLevel: &debug}).ConvertToDomain(); got.LogLevel != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %v", got.LogLevel)
	}
}

func TestDefaultLogger(t *testing.T) {
	InitDefaultLogger(GlobalLoggerConfig{
		Args: []LoggerArg{{Key: "service", Value: "test"}},
	})

	if Default() == nil {
		t.Fatal("Expected default logger to exist, got nil")
	}
}
