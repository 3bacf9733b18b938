package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/L1NNA/jupyter-http-terminal/internal/db"
	"github.com/L1NNA/jupyter-http-terminal/internal/model"
	"github.com/L1NNA/jupyter-http-terminal/internal/repository"
)

func setupManager(t *testing.T, cfg Config) *Manager {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	m := NewManager(repository.NewSessionRepository(database), cfg, nil)
	t.Cleanup(func() { m.Close() })
	return m
}

// pollUntil polls the session until the predicate holds or the deadline passes.
func pollUntil(t *testing.T, m *Manager, id string, pred func(output string, closed bool) bool) (string, bool) {
	t.Helper()

	var all strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		chunk, err := m.Poll(id)
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
		all.WriteString(chunk.Output)
		if pred(all.String(), chunk.Closed) {
			return all.String(), chunk.Closed
		}
		if chunk.Closed {
			return all.String(), true
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time; collected %q", all.String())
	return "", false
}

func TestManager_EnsureIsIdempotent(t *testing.T) {
	m := setupManager(t, Config{Command: "/bin/cat"})
	ctx := context.Background()

	if err := m.Ensure(ctx, "sid-a"); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := m.Ensure(ctx, "sid-a"); err != nil {
		t.Fatalf("repeated ensure failed: %v", err)
	}
	if got := m.Count(); got != 1 {
		t.Errorf("expected one live session, got %d", got)
	}
}

func TestManager_EnsureRequiresID(t *testing.T) {
	m := setupManager(t, Config{Command: "/bin/cat"})

	if err := m.Ensure(context.Background(), ""); err != model.ErrSessionIDRequired {
		t.Errorf("expected ErrSessionIDRequired, got %v", err)
	}
}

func TestManager_PollDrainsOutputAndReportsClose(t *testing.T) {
	m := setupManager(t, Config{Command: "/bin/sh -c 'echo hello-poll'"})
	ctx := context.Background()

	if err := m.Ensure(ctx, "sid-b"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	output, closed := pollUntil(t, m, "sid-b", func(out string, closed bool) bool {
		return closed
	})
	if !closed {
		t.Fatal("expected session to report closed")
	}
	if !strings.Contains(output, "hello-poll") {
		t.Errorf("expected final output to contain 'hello-poll', got %q", output)
	}

	// After close the session is reaped.
	if _, err := m.Poll("sid-b"); err != model.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after cleanup, got %v", err)
	}

	// The repository still remembers it as exited.
	sess, err := m.Get(ctx, "sid-b")
	if err != nil {
		t.Fatalf("get after cleanup failed: %v", err)
	}
	if sess.Status != model.SessionStatusExited {
		t.Errorf("expected exited status, got %s", sess.Status)
	}
}

func TestManager_WriteEchoesThroughPTY(t *testing.T) {
	m := setupManager(t, Config{Command: "/bin/cat"})
	ctx := context.Background()

	if err := m.Ensure(ctx, "sid-c"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	if err := m.Write("sid-c", []byte("marco\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	output, _ := pollUntil(t, m, "sid-c", func(out string, closed bool) bool {
		return strings.Contains(out, "marco")
	})
	if !strings.Contains(output, "marco") {
		t.Errorf("expected echoed input, got %q", output)
	}
}

func TestManager_WriteNormalizesCarriageReturn(t *testing.T) {
	m := setupManager(t, Config{Command: "/bin/cat"})
	ctx := context.Background()

	if err := m.Ensure(ctx, "sid-d"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	// A lone CR is delivered to the process as LF.
	if err := m.Write("sid-d", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := m.Write("sid-d", []byte("\r")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	output, _ := pollUntil(t, m, "sid-d", func(out string, closed bool) bool {
		return strings.Contains(out, "x")
	})
	if output == "" {
		t.Error("expected some echoed output")
	}
}

func TestManager_ResizeAndUnknownSession(t *testing.T) {
	m := setupManager(t, Config{Command: "/bin/cat"})
	ctx := context.Background()

	if err := m.Ensure(ctx, "sid-e"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := m.Resize("sid-e", 40, 120); err != nil {
		t.Errorf("resize failed: %v", err)
	}

	if err := m.Resize("nope", 40, 120); err != model.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := m.Write("nope", []byte("x")); err != model.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Poll("nope"); err != model.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_MaxSessions(t *testing.T) {
	m := setupManager(t, Config{Command: "/bin/cat", MaxSessions: 1})
	ctx := context.Background()

	if err := m.Ensure(ctx, "one"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := m.Ensure(ctx, "two"); err == nil {
		t.Error("expected session limit error")
	}
}

func TestManager_RecordingWritten(t *testing.T) {
	recDir := t.TempDir()
	m := setupManager(t, Config{
		Command:      "/bin/sh -c 'echo recorded'",
		RecordingDir: recDir,
	})
	ctx := context.Background()

	if err := m.Ensure(ctx, "sid-f"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	pollUntil(t, m, "sid-f", func(out string, closed bool) bool {
		return closed
	})

	data, err := os.ReadFile(filepath.Join(recDir, "sid-f.cast"))
	if err != nil {
		t.Fatalf("recording not written: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"version":2`) {
		t.Errorf("expected asciinema header, got %q", content)
	}
	if !strings.Contains(content, "recorded") {
		t.Errorf("expected recorded output in cast file, got %q", content)
	}
}
