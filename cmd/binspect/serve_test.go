package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestNewLoggerJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, "json", slog.LevelInfo).Info("started", "address", ":8080")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if line["msg"] != "started" || line["address"] != ":8080" {
		t.Fatalf("unexpected record: %v", line)
	}
}

func TestNewLoggerPretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, "pretty", slog.LevelInfo).Info("started")

	out := buf.String()
	if !strings.Contains(out, "\033[") {
		t.Fatalf("pretty output lacks color codes: %q", out)
	}
	if !strings.Contains(out, "started") {
		t.Fatalf("message missing: %q", out)
	}
}

func TestNewLoggerText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, "text", slog.LevelInfo).Info("started", "address", ":8080")

	out := buf.String()
	if !strings.Contains(out, "msg=started") || !strings.Contains(out, "address=:8080") {
		t.Fatalf("unexpected text output: %q", out)
	}
}

func TestNewLoggerUnknownFormatFallsBackToJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, "", slog.LevelInfo).Info("started")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("fallback is not JSON: %v\n%s", err, buf.String())
	}
}
