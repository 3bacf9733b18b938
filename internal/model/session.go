// Package model defines the shared types for terminal sessions and the
// polling wire protocol.
package model

import "time"

// SessionStatus represents the status of a server-side terminal session.
type SessionStatus string

const (
	SessionStatusRunning SessionStatus = "running"
	SessionStatusExited  SessionStatus = "exited"
	SessionStatusFailed  SessionStatus = "failed"
)

// Session represents a server-side terminal session. The ID is generated by
// the client and attached to every call; the server creates the session record
// the first time it sees an unknown ID.
type Session struct {
	ID            string        `json:"id"`
	Command       string        `json:"command"`
	Status        SessionStatus `json:"status"`
	ExitCode      *int          `json:"exitCode,omitempty"`
	PID           *int          `json:"pid,omitempty"`
	RecordingPath string        `json:"recordingPath,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Duration returns the running duration of the session.
func (s *Session) Duration() time.Duration {
	return time.Since(s.CreatedAt)
}

// OutputChunk is the result of one poll: output produced since the previous
// poll, plus a flag signaling that the remote process has exited. A chunk has
// no ordering key of its own; chunks are applied in the order the poll calls
// that produced them were dispatched.
type OutputChunk struct {
	Output string `json:"output"`
	Closed bool   `json:"closed"`
}

// InputRequest is the body of a send-input call. The payload is an opaque
// keystroke fragment; a lone carriage return is normalized to a newline
// before it reaches the PTY.
type InputRequest struct {
	Input string `json:"input"`
}

// ResizeRequest is the body of a resize call carrying the renderer's current
// viewport dimensions.
type ResizeRequest struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// StatusResponse is the body of a create-session response.
type StatusResponse struct {
	Status string `json:"status"`
}
