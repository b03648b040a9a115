package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestContextFieldsReachOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	ctx := l.WithContext(context.Background())
	ctx = SetRunID(ctx, "run-1")
	ctx = WithFields(ctx, Fields{FieldProjectID: int64(42)})

	With(Fields{FieldCount: 3}).Info(ctx, "flushed %d", 3)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal log line: %v (%q)", err, buf.String())
	}

	want := map[string]interface{}{
		"message":    "flushed 3",
		"level":      "info",
		"service":    "test",
		"run_id":     "run-1",
		"project_id": float64(42),
		"count":      float64(3),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("field %q = %v, want %v", k, line[k], v)
		}
	}
	if GetRunID(ctx) != "run-1" {
		t.Errorf("GetRunID() = %q, want run-1", GetRunID(ctx))
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Error("FromContext without logger should return the default logger")
	}
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "loud", Output: &buf})
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line written at default level: %q", buf.String())
	}
}
