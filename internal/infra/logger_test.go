package infra

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "production", "")
	l.Debug().Msg("hidden")
	l.Info().Str("entity", "ad").Msg("visible")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "visible" || line["entity"] != "ad" || line["service"] != "adflow" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNewLoggerLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "production", "warn")
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn, got %q", buf.String())
	}

	buf.Reset()
	l = newLogger(&buf, "production", "not-a-level")
	l.Info().Msg("kept")
	if buf.Len() == 0 {
		t.Fatal("invalid level should fall back to info")
	}
}
