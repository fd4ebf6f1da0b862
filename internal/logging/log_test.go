package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTextLinesNameTheCallSite(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "text")

	log.WithField("component", "x").Info("hello from entry")
	log.Info("hello from logger")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, "log_test.go") {
			t.Fatalf("line does not name the call site: %s", line)
		}
		if strings.Contains(line, "file=") || strings.Contains(line, "func=") {
			t.Fatalf("caller printed twice: %s", line)
		}
	}
}

func TestJSONLinesCarryCaller(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("structured")

	var fields map[string]any
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	file, _ := fields["file"].(string)
	if !strings.Contains(file, "log_test.go") {
		t.Fatalf("unexpected caller file: %q", file)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "chatty", "text")
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %s", buf.String())
	}
}
