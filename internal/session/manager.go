// Package session manages server-side terminal sessions: one PTY process per
// client-generated session identifier, with output buffered between polls.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/L1NNA/jupyter-http-terminal/internal/buffer"
	"github.com/L1NNA/jupyter-http-terminal/internal/logger"
	"github.com/L1NNA/jupyter-http-terminal/internal/model"
	"github.com/L1NNA/jupyter-http-terminal/internal/pty"
	"github.com/L1NNA/jupyter-http-terminal/internal/recorder"
	"github.com/L1NNA/jupyter-http-terminal/internal/repository"
)

const (
	// DefaultBufferCap bounds the output pending between two polls (256 KB).
	DefaultBufferCap = 256 * 1024

	// DefaultReadBufferSize is the buffer size for reading PTY output.
	DefaultReadBufferSize = 4096
)

// Config holds configuration for the session manager.
type Config struct {
	// Command is the program spawned for each new session, with optional
	// arguments, e.g. "/bin/bash -l".
	Command string

	// RecordingDir is where asciinema recordings are written. Empty disables
	// recording.
	RecordingDir string

	// BufferCap is the pending-output buffer capacity per session.
	BufferCap int

	// MaxSessions limits concurrently running sessions. Zero means 16.
	MaxSessions int

	// InitialRows and InitialCols size new PTYs before the client's first
	// resize arrives.
	InitialRows uint16
	InitialCols uint16
}

// Manager owns all live sessions.
type Manager struct {
	repo *repository.SessionRepository
	cfg  Config
	log  *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

// liveSession is the runtime state of one running session.
type liveSession struct {
	session *model.Session
	proc    *pty.Process
	buf     *buffer.OutputBuffer
	rec     *recorder.Recorder

	readDone chan struct{}

	mu       sync.Mutex
	exited   bool
	exitCode int
}

// NewManager creates a session manager.
func NewManager(repo *repository.SessionRepository, cfg Config, log *logger.Logger) *Manager {
	if cfg.BufferCap <= 0 {
		cfg.BufferCap = DefaultBufferCap
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 16
	}
	if cfg.InitialRows == 0 {
		cfg.InitialRows = 24
	}
	if cfg.InitialCols == 0 {
		cfg.InitialCols = 80
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		repo:     repo,
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*liveSession),
	}
}

// Ensure creates the session for the given identifier if it does not already
// exist. Repeated calls with the same identifier are no-ops, so session
// creation is idempotent per identifier.
func (m *Manager) Ensure(ctx context.Context, id string) error {
	if id == "" {
		return model.ErrSessionIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return nil
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		return fmt.Errorf("maximum active sessions (%d) reached", m.cfg.MaxSessions)
	}
	if m.cfg.Command == "" {
		return model.ErrCommandRequired
	}

	cmdParts := splitCommand(m.cfg.Command)
	if len(cmdParts) == 0 {
		return model.ErrCommandRequired
	}
	proc, err := pty.Start(pty.StartOptions{
		Command:     cmdParts[0],
		Args:        cmdParts[1:],
		InitialRows: m.cfg.InitialRows,
		InitialCols: m.cfg.InitialCols,
	})
	if err != nil {
		return fmt.Errorf("failed to spawn PTY: %w", err)
	}

	now := time.Now()
	pid := proc.PID()
	sess := &model.Session{
		ID:        id,
		Command:   m.cfg.Command,
		Status:    model.SessionStatusRunning,
		PID:       &pid,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var rec *recorder.Recorder
	if m.cfg.RecordingDir != "" {
		sess.RecordingPath = filepath.Join(m.cfg.RecordingDir, id+".cast")
		rec, err = recorder.NewFile(sess.RecordingPath, int(m.cfg.InitialCols), int(m.cfg.InitialRows))
		if err != nil {
			proc.Kill()
			proc.Close()
			return fmt.Errorf("failed to create recording: %w", err)
		}
	}

	if m.repo != nil {
		if err := m.repo.Create(ctx, sess); err != nil {
			proc.Kill()
			proc.Close()
			if rec != nil {
				rec.Close()
			}
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}

	ls := &liveSession{
		session:  sess,
		proc:     proc,
		buf:      buffer.NewOutputBuffer(m.cfg.BufferCap),
		rec:      rec,
		readDone: make(chan struct{}),
	}
	m.sessions[id] = ls

	go ls.readLoop()
	go m.waitLoop(ls)

	m.log.WithSession(id).Info("session started", zap.Int("pid", pid))
	return nil
}

// readLoop copies PTY output into the pending buffer until EOF.
func (s *liveSession) readLoop() {
	defer close(s.readDone)

	buf := make([]byte, DefaultReadBufferSize)
	for {
		n, err := s.proc.Read(buf)
		if n > 0 {
			s.buf.Write(buf[:n])
			if s.rec != nil {
				s.rec.Output(buf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

// waitLoop observes process exit and updates the stored status. The live
// session stays registered until a poll observes the exit, so the client
// receives the final output and the closed flag.
func (m *Manager) waitLoop(s *liveSession) {
	code, err := s.proc.Wait()

	s.mu.Lock()
	s.exited = true
	s.exitCode = code
	s.mu.Unlock()

	status := model.SessionStatusExited
	if err != nil {
		status = model.SessionStatusFailed
	}
	if m.repo != nil {
		if updateErr := m.repo.UpdateStatus(context.Background(), s.session.ID, status, &code); updateErr != nil {
			m.log.WithSession(s.session.ID).Warn("failed to update session status", zap.Error(updateErr))
		}
	}
	m.log.WithSession(s.session.ID).Info("process exited", zap.Int("exit_code", code))
}

// Poll drains any pending output for the session and reports whether the
// process has exited. Once the exit has been observed and all output drained,
// the session is cleaned up and removed; a later poll for the same identifier
// fails with ErrSessionNotFound.
func (m *Manager) Poll(id string) (*model.OutputChunk, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	out := s.buf.Drain()

	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()

	closed := false
	if exited {
		// Report closed only after the read loop has flushed everything,
		// then take a final drain so no trailing bytes are lost.
		select {
		case <-s.readDone:
			out = append(out, s.buf.Drain()...)
			closed = true
		default:
		}
	}

	if closed {
		m.remove(s)
	}

	return &model.OutputChunk{Output: string(out), Closed: closed}, nil
}

// Write forwards input to the session's PTY. A lone carriage return is
// normalized to a newline, matching the line-feed semantics the shell expects.
func (m *Manager) Write(id string, data []byte) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}

	if len(data) == 1 && data[0] == '\r' {
		data = []byte{'\n'}
	}

	if _, err := s.proc.Write(data); err != nil {
		return fmt.Errorf("failed to write to PTY: %w", err)
	}
	if s.rec != nil {
		s.rec.Input(data)
	}
	return nil
}

// Resize changes the session's PTY window size.
func (m *Manager) Resize(id string, rows, cols uint16) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.proc.Resize(rows, cols)
}

// Get returns the session metadata for the given identifier, falling back to
// the repository for sessions that have already been reaped.
func (m *Manager) Get(ctx context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s.session, nil
	}
	if m.repo != nil {
		return m.repo.GetByID(ctx, id)
	}
	return nil, model.ErrSessionNotFound
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close terminates all live sessions and releases their resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	live := make([]*liveSession, 0, len(m.sessions))
	for id, s := range m.sessions {
		live = append(live, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, s := range live {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.log.WithSession(s.session.ID).Info("session closed on shutdown")
	}
	return firstErr
}

func (m *Manager) get(id string) (*liveSession, error) {
	if id == "" {
		return nil, model.ErrSessionIDRequired
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) remove(s *liveSession) {
	m.mu.Lock()
	delete(m.sessions, s.session.ID)
	m.mu.Unlock()

	if err := s.close(); err != nil {
		m.log.WithSession(s.session.ID).Warn("cleanup failed", zap.Error(err))
	}
	m.log.WithSession(s.session.ID).Info("session cleaned up")
}

func (s *liveSession) close() error {
	var firstErr error
	if err := s.proc.Kill(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.proc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.rec != nil {
		if err := s.rec.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// splitCommand splits a command string into command and arguments, honoring
// single and double quotes.
func splitCommand(cmd string) []string {
	var parts []string
	var current []rune
	inQuote := false
	quoteChar := rune(0)

	for _, r := range cmd {
		switch {
		case r == '"' || r == '\'':
			if inQuote {
				if r == quoteChar {
					inQuote = false
					quoteChar = 0
				} else {
					current = append(current, r)
				}
			} else {
				inQuote = true
				quoteChar = r
			}
		case r == ' ' || r == '\t':
			if inQuote {
				current = append(current, r)
			} else if len(current) > 0 {
				parts = append(parts, string(current))
				current = nil
			}
		default:
			current = append(current, r)
		}
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}
	return parts
}
