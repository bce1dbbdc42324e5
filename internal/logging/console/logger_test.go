package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/logging/console"
)

func TestConsoleLogger_WritesSortedFields(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	provider := console.NewProvider(console.Options{
		Writer:   &buf,
		TimeFunc: func() time.Time { return now },
		MinLevel: console.LevelDebug,
	})

	logger := provider.GetLogger("contentsync.sync").WithFields(map[string]any{"module": "contentsync.sync"})
	ctx := logging.ContextWithFields(context.Background(), map[string]any{"changeset_id": "cs-1"})
	logger = logger.WithContext(ctx)

	logger.Error("sync.entry.failed", "path", "posts/2024-01-15-hello.md", "error", errors.New("missing title"))

	got := strings.TrimSpace(buf.String())
	want := `2024-01-15T09:30:00Z ERROR sync.entry.failed changeset_id=cs-1 error="missing title" logger=contentsync.sync module=contentsync.sync path=posts/2024-01-15-hello.md`
	if got != want {
		t.Fatalf("unexpected log entry\nwant: %s\ngot:  %s", want, got)
	}
}

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	provider := console.NewProvider(console.Options{
		Writer:   &buf,
		MinLevel: console.ParseLevel("info"),
	})

	logger := provider.GetLogger("contentsync.test")
	logger.Debug("ignored.debug")
	logger.Info("included.info", "count", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected single log line, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "included.info count=3") {
		t.Fatalf("unexpected line %s", lines[0])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]console.Level{
		"":        console.LevelInfo,
		"DEBUG":   console.LevelDebug,
		"warning": console.LevelWarn,
		"error":   console.LevelError,
	}
	for input, want := range cases {
		if got := console.ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
