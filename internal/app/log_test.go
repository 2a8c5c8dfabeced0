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
)

func TestTTHandler_Handle(t *testing.T) {
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
			message: "unit placed",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tunit placed\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "fast path hit",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tfast path hit\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "contract created",
			attrs:   []slog.Attr{slog.String("path", "/media/movie.mp4"), slog.Int("units", 3)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tcontract created\tpath=/media/movie.mp4\tunits=3\n",
		},
		{
			name:    "values with spaces are quoted",
			opID:    "op-1",
			level:   slog.LevelWarn,
			message: "forward failed",
			attrs:   []slog.Attr{slog.String("error", "message gone")},
			want:    "2024-06-15T14:30:45Z\tWARN\top-1\tforward failed\terror=\"message gone\"\n",
		},
		{
			name:    "group attrs are flattened",
			opID:    "op-2",
			level:   slog.LevelInfo,
			message: "placed",
			attrs:   []slog.Attr{slog.Group("unit", slog.Int("seq", 1), slog.Int("of", 3))},
			want:    "2024-06-15T14:30:45Z\tINFO\top-2\tplaced\tunit.seq=1\tunit.of=3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newTTHandler(&buf, tt.opID, nil)

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

func TestTTHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newTTHandler(&buf, "op-1", nil)

	// Add pre-set attrs
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "discovery")}).(*ttHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "revalidate", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=discovery") {
		t.Errorf("expected pre-set attr component=discovery, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
}

func TestTTHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := newTTHandler(&buf, "op-1", nil)
	h.attrs = []slog.Attr{slog.String("a", "1")}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*ttHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestTTHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTTHandler(&buf, "op-1", nil)).WithGroup("transfer").With("dest", -100)
	logger.Info("started", "policy", "smart")

	got := buf.String()
	for _, want := range []string{"transfer.dest=-100", "transfer.policy=smart"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestTTHandler_Enabled(t *testing.T) {
	t.Run("no level enables everything", func(t *testing.T) {
		h := newTTHandler(&bytes.Buffer{}, "", nil)
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
			if !h.Enabled(context.Background(), level) {
				t.Errorf("Enabled(%v) = false, want true", level)
			}
		}
	})

	t.Run("minimum level", func(t *testing.T) {
		h := newTTHandler(&bytes.Buffer{}, "", slog.LevelInfo)
		if h.Enabled(context.Background(), slog.LevelDebug) {
			t.Error("Enabled(DEBUG) = true, want false")
		}
		if !h.Enabled(context.Background(), slog.LevelWarn) {
			t.Error("Enabled(WARN) = false, want true")
		}
	})
}

func TestTeeHandler(t *testing.T) {
	var all, important bytes.Buffer
	logger := slog.New(teeHandler{
		newTTHandler(&all, "op", slog.LevelDebug),
		newTTHandler(&important, "op", slog.LevelInfo),
	})

	logger.Debug("cache hit")
	logger.Info("unit placed")

	if n := strings.Count(all.String(), "\n"); n != 2 {
		t.Errorf("debug sink got %d lines, want 2", n)
	}
	if got := important.String(); strings.Contains(got, "cache hit") || !strings.Contains(got, "unit placed") {
		t.Errorf("info sink = %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-op")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}

	logger.Debug("only in the file")
	data, err := os.ReadFile(filepath.Join(dir, "tt.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "test-op\tonly in the file") {
		t.Errorf("log file = %q", data)
	}
}
