package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newWithWriter(&buf, "info", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("region", "kent").Msg("search")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "popfinder" || line["region"] != "kent" || line["message"] != "search" {
		t.Errorf("unexpected log line: %v", line)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newWithWriter(&buf, "DEBUG", "console")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug().Msg("visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Errorf("expected debug message in console output, got %q", buf.String())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
}
