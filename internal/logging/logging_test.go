package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, cleanup, err := Setup(Config{Console: &console})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	logger.Debug("hidden")
	logger.Info("shown", "key", "value")

	out := console.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written without Debug: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") {
		t.Errorf("info record missing: %s", out)
	}
}

func TestSetup_File(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "tbviewer.log")

	logger, cleanup, err := Setup(Config{File: file, Console: &console})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.With("map", "janow").Debug("tile set indexed", "tiles", 4)
	logger.Warn("unexpected file")
	cleanup()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("log file has %d records, want 2:\n%s", len(lines), data)
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "tile set indexed" || rec["map"] != "janow" || rec["level"] != "DEBUG" {
		t.Errorf("unexpected record: %v", rec)
	}

	if strings.Contains(console.String(), "tile set indexed") {
		t.Errorf("debug record reached console: %s", console.String())
	}
	if !strings.Contains(console.String(), "unexpected file") {
		t.Errorf("warning missing from console: %s", console.String())
	}
}
