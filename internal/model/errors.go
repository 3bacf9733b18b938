package model

import "errors"

var (
	// ErrSessionIDRequired is returned when a request is missing the session_id parameter.
	ErrSessionIDRequired = errors.New("session_id is required")

	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when an operation targets a session whose
	// process has already exited and been reaped.
	ErrSessionClosed = errors.New("session is closed")

	// ErrCommandRequired is returned when the server is configured without a
	// command to run in new sessions.
	ErrCommandRequired = errors.New("command is required")
)
