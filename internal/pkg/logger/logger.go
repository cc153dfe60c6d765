// Package logger provides structured JSON logging with request and engine
// correlation: request_id ties an HTTP access line to the facade call that
// produced it, engine_id ties dispatcher work to the engine process that ran
// it. No secrets or spec payloads are ever logged.
package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// AccessEntry is the one-line JSON payload written per HTTP request.
type AccessEntry struct {
	Time       string  `json:"time"`
	Level      string  `json:"level"`
	RequestID  string  `json:"request_id,omitempty"`
	ClusterID  string  `json:"cluster_id,omitempty"`
	Method     string  `json:"method,omitempty"`
	Path       string  `json:"path,omitempty"`
	Status     int     `json:"status,omitempty"`
	DurationMs float64 `json:"duration_ms,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// RequestLog writes a single JSON line for a finished HTTP request; called
// from the access-log middleware only. ClusterID is the route's cluster
// identity when one was addressed, empty otherwise.
func RequestLog(out *os.File, reqID, clusterID, method, path string, status int, duration time.Duration, errMsg string) {
	level := "info"
	if status >= 500 {
		level = "error"
	} else if status >= 400 {
		level = "warn"
	}
	entry := AccessEntry{
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		RequestID:  reqID,
		ClusterID:  clusterID,
		Method:     method,
		Path:       path,
		Status:     status,
		DurationMs: float64(duration.Milliseconds()),
		Error:      errMsg,
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(entry)
}

// FromContext returns the request ID from context, or empty string.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// StdLogger returns the slog.Logger used for everything that is not an HTTP
// access line: startup, shutdown, dispatcher workers, recovery sweeps. JSON
// by default; ORCHESTRATOR_LOG_FORMAT=text switches to the text handler for
// local development, ORCHESTRATOR_LOG_LEVEL picks the level.
func StdLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("ORCHESTRATOR_LOG_LEVEL"))}
	if strings.EqualFold(os.Getenv("ORCHESTRATOR_LOG_FORMAT"), "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// ForEngine returns StdLogger carrying the engine_id field, so every line an
// engine process emits is attributable when several engines share a store.
func ForEngine(engineID string) *slog.Logger {
	return StdLogger().With("engine_id", engineID)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
