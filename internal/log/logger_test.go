package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_JSONFormatCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentBus, Output: &buf})
	logger.Info("Signal published", FieldSignal, "data-mutated")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentBus || rec[FieldSignal] != "data-mutated" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
	logger := Discard().WithComponent(ComponentHTTP)
	ctx := IntoContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected logger from context")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelDebug, Output: &buf})
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req_42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			LogError(r.Context(), "Handler failed", errors.New("boom"), OpRead, nil)
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/me", nil))
	out := buf.String()
	for _, want := range []string{"request_id=req_42", "error=boom", "operation=read"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
