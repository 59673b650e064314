package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pfs-go/internal/config"
)

func TestPfsHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "fetched",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tfetched\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "computing state",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tcomputing state\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "operation finished",
			attrs:   []slog.Attr{slog.String("project", "tutorial"), slog.Int("completed", 3)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\toperation finished\tproject=tutorial\tcompleted=3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &pfsHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestPfsHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &pfsHandler{w: &buf, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "transport")}).(*pfsHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "pushed", 0)
	r.AddAttrs(slog.String("bucket", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=transport") {
		t.Errorf("expected pre-set attr component=transport, got: %q", got)
	}
	if !strings.Contains(got, "bucket=abc") {
		t.Errorf("expected record attr bucket=abc, got: %q", got)
	}
}

func TestPfsHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &pfsHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*pfsHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestPfsHandler_Enabled(t *testing.T) {
	h := &pfsHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}

	h = &pfsHandler{level: slog.LevelWarn}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled(INFO) = true for a warn handler")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(ERROR) = false for a warn handler")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	logger, closer, err := newLogger(dir, config.LogConfig{Level: "info", MaxSizeMB: 1}, "test-op", &stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Debug("hidden")
	logger.Info("recorded", "project", "tutorial")
	logger.Warn("shown", "project", "tutorial")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "pfs.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	log := string(data)
	if strings.Contains(log, "hidden") {
		t.Errorf("debug record written at info level: %q", log)
	}
	if !strings.Contains(log, "\ttest-op\trecorded\tproject=tutorial") {
		t.Errorf("info record missing from log file: %q", log)
	}
	if strings.Contains(stderr.String(), "recorded") {
		t.Errorf("info record copied to stderr: %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "shown") {
		t.Errorf("warn record missing from stderr: %q", stderr.String())
	}
}
