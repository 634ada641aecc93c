package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug":   LevelDebug,
		" ERROR ": LevelError,
		"info":    LevelInfo,
		"trace":   LevelInfo,
		"":        LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "json")
	SetLevel(LevelInfo)
	defer SetLevel(LevelInfo)

	l := Named("syncer")
	l.Debug("hidden")
	l.Error("source fetch failed", errors.New("boom"), "source", "Work")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["logger"] != "syncer" || entry["err"] != "boom" || entry["source"] != "Work" {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()
	SetLevel(LevelDebug)
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug line not written after SetLevel")
	}
}
