package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestLoggerWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("api", "info", &buf)

	l.Error("db_transaction_failed", "commit failed", "req-1", map[string]interface{}{"order_id": "o-1"}, errors.New("boom"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v (%s)", err, buf.String())
	}

	for key, want := range map[string]string{
		"level":      "ERROR",
		"service":    "api",
		"action":     "db_transaction_failed",
		"message":    "commit failed",
		"request_id": "req-1",
	} {
		if got, _ := entry[key].(string); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if _, ok := entry["timestamp"].(string); !ok {
		t.Error("timestamp missing")
	}
	details, _ := entry["details"].(map[string]any)
	if details["order_id"] != "o-1" {
		t.Errorf("details = %v", entry["details"])
	}
	errInfo, _ := entry["error"].(map[string]any)
	if errInfo["msg"] != "boom" || errInfo["stack"] == "" {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("api", "info", &buf)

	l.Debug("noise", "hidden", "", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug entry written at info level: %s", buf.String())
	}

	l.Info("order_created", "visible", "", nil)
	if buf.Len() == 0 {
		t.Fatal("info entry not written")
	}
}
