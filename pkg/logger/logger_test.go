package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("test", LoggingConfig{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := New("test", LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unsupported level")
	}
}

func TestWithContextAddsIdentifiers(t *testing.T) {
	log, err := New("test", LoggingConfig{Format: "json", Level: "debug"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	var buf bytes.Buffer
	log.Logger.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "maria")
	ctx = WithStudio(ctx, "bribiesca")
	log.WithContext(ctx).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["trace_id"] != "trace-1" || line["user_id"] != "maria" || line["studio"] != "bribiesca" {
		t.Fatalf("missing context fields: %v", line)
	}
	if line["component"] != "test" {
		t.Fatalf("component = %v, want test", line["component"])
	}
}

func TestLogRequestLevels(t *testing.T) {
	log := NewDefault("http")
	log.Logger.SetLevel(logrus.DebugLevel)
	log.Logger.SetFormatter(&logrus.JSONFormatter{})
	var buf bytes.Buffer
	log.Logger.SetOutput(&buf)

	log.LogRequest(context.Background(), http.MethodGet, "/health", http.StatusInternalServerError, time.Millisecond)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["level"] != "error" {
		t.Fatalf("level = %v, want error", line["level"])
	}
}

func TestContextHelpersIgnoreEmpty(t *testing.T) {
	ctx := context.Background()
	if WithTraceID(ctx, "") != ctx {
		t.Fatal("empty trace id should not wrap context")
	}
	if GetRole(WithRole(ctx, "admin")) != "admin" {
		t.Fatal("role not stored")
	}
}
