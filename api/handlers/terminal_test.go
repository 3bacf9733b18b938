package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/L1NNA/jupyter-http-terminal/internal/model"
	"github.com/L1NNA/jupyter-http-terminal/internal/session"
)

func setupRouter(t *testing.T, command string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := session.NewManager(nil, session.Config{Command: command}, nil)
	t.Cleanup(func() { manager.Close() })

	r := gin.New()
	NewTerminalHandler(manager, nil).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTerminalHandler_CreateRequiresSessionID(t *testing.T) {
	r := setupRouter(t, "/bin/cat")

	w := doJSON(t, r, http.MethodGet, "/terminal", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestTerminalHandler_CreateIsIdempotent(t *testing.T) {
	r := setupRouter(t, "/bin/cat")

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodGet, "/terminal?session_id=h1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("create %d: expected 200, got %d (%s)", i+1, w.Code, w.Body.String())
		}

		var status model.StatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if status.Status != "ok" {
			t.Errorf("expected status ok, got %q", status.Status)
		}
	}
}

func TestTerminalHandler_PollUnknownSession(t *testing.T) {
	r := setupRouter(t, "/bin/cat")

	w := doJSON(t, r, http.MethodGet, "/terminal/output?session_id=ghost", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown session, got %d", w.Code)
	}
}

func TestTerminalHandler_InputOutputRoundTrip(t *testing.T) {
	r := setupRouter(t, "/bin/cat")

	if w := doJSON(t, r, http.MethodGet, "/terminal?session_id=h2", nil); w.Code != http.StatusOK {
		t.Fatalf("create failed: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/terminal/input?session_id=h2", model.InputRequest{Input: "ping\n"})
	if w.Code != http.StatusOK {
		t.Fatalf("input failed: %d (%s)", w.Code, w.Body.String())
	}

	var collected strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !strings.Contains(collected.String(), "ping") {
		w := doJSON(t, r, http.MethodGet, "/terminal/output?session_id=h2", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("poll failed: %d", w.Code)
		}
		var chunk model.OutputChunk
		if err := json.Unmarshal(w.Body.Bytes(), &chunk); err != nil {
			t.Fatalf("bad poll body: %v", err)
		}
		collected.WriteString(chunk.Output)
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(collected.String(), "ping") {
		t.Errorf("expected echoed input in poll output, got %q", collected.String())
	}
}

func TestTerminalHandler_PollReportsClose(t *testing.T) {
	r := setupRouter(t, "/bin/sh -c 'echo done-now'")

	if w := doJSON(t, r, http.MethodGet, "/terminal?session_id=h3", nil); w.Code != http.StatusOK {
		t.Fatalf("create failed: %d", w.Code)
	}

	var collected strings.Builder
	closed := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !closed {
		w := doJSON(t, r, http.MethodGet, "/terminal/output?session_id=h3", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("poll failed: %d", w.Code)
		}
		var chunk model.OutputChunk
		if err := json.Unmarshal(w.Body.Bytes(), &chunk); err != nil {
			t.Fatalf("bad poll body: %v", err)
		}
		collected.WriteString(chunk.Output)
		closed = chunk.Closed
		time.Sleep(10 * time.Millisecond)
	}

	if !closed {
		t.Fatal("expected closed=true once the process exited")
	}
	if !strings.Contains(collected.String(), "done-now") {
		t.Errorf("expected output before close, got %q", collected.String())
	}

	// A poll after cleanup is a bad request, like any unknown session.
	w := doJSON(t, r, http.MethodGet, "/terminal/output?session_id=h3", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 after cleanup, got %d", w.Code)
	}
}

func TestTerminalHandler_Resize(t *testing.T) {
	r := setupRouter(t, "/bin/cat")

	if w := doJSON(t, r, http.MethodGet, "/terminal?session_id=h4", nil); w.Code != http.StatusOK {
		t.Fatalf("create failed: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/terminal/resize?session_id=h4", model.ResizeRequest{Rows: 50, Cols: 140})
	if w.Code != http.StatusOK {
		t.Errorf("resize failed: %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/terminal/resize?session_id=ghost", model.ResizeRequest{Rows: 50, Cols: 140})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown session, got %d", w.Code)
	}
}
