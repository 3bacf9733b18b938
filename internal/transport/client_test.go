package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/L1NNA/jupyter-http-terminal/internal/model"
)

// recordingServer captures every request the client issues.
type recordingServer struct {
	mu       sync.Mutex
	requests []recordedRequest

	pollResponse model.OutputChunk
	failWith     int
}

type recordedRequest struct {
	method    string
	path      string
	sessionID string
	body      []byte
}

func (s *recordingServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, 0)
		if r.Body != nil {
			buf := make([]byte, 4096)
			n, _ := r.Body.Read(buf)
			body = buf[:n]
		}

		s.mu.Lock()
		s.requests = append(s.requests, recordedRequest{
			method:    r.Method,
			path:      r.URL.Path,
			sessionID: r.URL.Query().Get("session_id"),
			body:      body,
		})
		failWith := s.failWith
		poll := s.pollResponse
		s.mu.Unlock()

		if failWith != 0 {
			w.WriteHeader(failWith)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/terminal":
			json.NewEncoder(w).Encode(model.StatusResponse{Status: "ok"})
		case "/terminal/output":
			json.NewEncoder(w).Encode(poll)
		default:
			json.NewEncoder(w).Encode(model.StatusResponse{Status: "ok"})
		}
	})
}

func (s *recordingServer) last(t *testing.T) recordedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

func TestClient_CreateSession(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := NewClient(ts.URL, "sid-1")
	require.NoError(t, c.CreateSession(context.Background()))

	req := srv.last(t)
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/terminal", req.path)
	assert.Equal(t, "sid-1", req.sessionID)
}

func TestClient_CreateSession_ServerError(t *testing.T) {
	srv := &recordingServer{failWith: http.StatusBadRequest}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := NewClient(ts.URL, "sid-1")
	assert.Error(t, c.CreateSession(context.Background()))
}

func TestClient_CreateSession_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close() // closed before use

	c := NewClient(ts.URL, "sid-1", WithTimeout(time.Second))
	assert.Error(t, c.CreateSession(context.Background()))
}

func TestClient_PollOutput(t *testing.T) {
	srv := &recordingServer{pollResponse: model.OutputChunk{Output: "hello\n", Closed: false}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := NewClient(ts.URL, "sid-2")
	chunk, err := c.PollOutput(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", chunk.Output)
	assert.False(t, chunk.Closed)

	req := srv.last(t)
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/terminal/output", req.path)
	assert.Equal(t, "sid-2", req.sessionID)
}

func TestClient_PollOutput_Closed(t *testing.T) {
	srv := &recordingServer{pollResponse: model.OutputChunk{Output: "", Closed: true}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := NewClient(ts.URL, "sid-2")
	chunk, err := c.PollOutput(context.Background())
	require.NoError(t, err)
	assert.True(t, chunk.Closed)
}

func TestClient_SendInput(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := NewClient(ts.URL, "sid-3")
	require.NoError(t, c.SendInput(context.Background(), "ls\n"))

	req := srv.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/terminal/input", req.path)

	var in model.InputRequest
	require.NoError(t, json.Unmarshal(req.body, &in))
	assert.Equal(t, "ls\n", in.Input)
}

func TestClient_Resize(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := NewClient(ts.URL, "sid-4")
	require.NoError(t, c.Resize(context.Background(), 40, 120))

	req := srv.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/terminal/resize", req.path)

	var rr model.ResizeRequest
	require.NoError(t, json.Unmarshal(req.body, &rr))
	assert.Equal(t, 40, rr.Rows)
	assert.Equal(t, 120, rr.Cols)
}

func TestClient_ContextCancellationAbortsCall(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		ts.Close()
	}()

	c := NewClient(ts.URL, "sid-5")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.PollOutput(ctx)
	assert.Error(t, err)
}
