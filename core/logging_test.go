package core

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoobzio/capitan"
)

func TestNewLoggerRespectsLevel(t *testing.T) {
	logger := NewLogger(false, zerolog.WarnLevel)
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", logger.GetLevel())
	}
}

func TestNewCrashLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.log")
	logger, closeFn, err := NewCrashLogger(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()

	logger.Error().Str("stage", "selection").Msg("stage panicked")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error reading crash log: %v", err)
	}
	if !strings.Contains(string(data), "stage panicked") {
		t.Fatalf("expected crash log to contain the logged message, got %q", data)
	}
}

func TestLogBridgeForwardsCycleStarted(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bridge := NewLogBridge(logger)
	defer bridge.Close()

	capitan.Emit(context.Background(), CycleStarted, FieldCycleNumber.Field(5))
	time.Sleep(10 * time.Millisecond)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "cycle started" {
		t.Fatalf("expected message %q, got %v", "cycle started", entry["message"])
	}
	if entry["cycle_number"] != float64(5) {
		t.Fatalf("expected cycle_number 5, got %v", entry["cycle_number"])
	}
}

func TestLogBridgeUsesErrorSeverityForStageFailed(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bridge := NewLogBridge(logger)
	defer bridge.Close()

	capitan.Error(context.Background(), StageFailed,
		FieldStageName.Field("selection"),
		FieldError.Field(ErrMaxWindows),
	)
	time.Sleep(10 * time.Millisecond)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "error" {
		t.Fatalf("expected error level, got %v", entry["level"])
	}
	if entry["stage_name"] != "selection" {
		t.Fatalf("expected stage_name selection, got %v", entry["stage_name"])
	}
}

func TestLogBridgeCloseStopsForwarding(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bridge := NewLogBridge(logger)
	bridge.Close()

	capitan.Emit(context.Background(), CycleStarted, FieldCycleNumber.Field(1))
	time.Sleep(10 * time.Millisecond)

	if buf.Len() != 0 {
		t.Fatalf("expected no log output after Close, got %q", buf.String())
	}
}
