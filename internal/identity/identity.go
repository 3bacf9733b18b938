// Package identity provides the client-side session identifier: an opaque
// token generated once per attachment and reused for as long as its storage
// lives, mirroring a browser tab's sessionStorage lifetime.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/L1NNA/jupyter-http-terminal/internal/logger"
)

// Store persists a session identifier between invocations.
type Store interface {
	// Load returns the stored identifier and whether one was present.
	Load() (string, bool)

	// Save persists the identifier.
	Save(id string) error
}

// FileStore persists the identifier in a single file.
type FileStore struct {
	Path string
}

// Load reads the identifier from the file, if present and non-empty.
func (s *FileStore) Load() (string, bool) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

// Save writes the identifier, creating parent directories as needed.
func (s *FileStore) Save(id string) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, []byte(id+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write session id: %w", err)
	}
	return nil
}

// MemStore keeps the identifier in memory. Useful in tests and for one-shot
// attachments that should never reuse a session.
type MemStore struct {
	mu sync.Mutex
	id string
}

func (s *MemStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != ""
}

func (s *MemStore) Save(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

// Provider produces the stable session identifier for this attachment.
type Provider struct {
	store Store
	log   *logger.Logger

	mu     sync.Mutex
	cached string
}

// NewProvider creates a Provider backed by the given store.
func NewProvider(store Store, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{store: store, log: log}
}

// GetOrCreate returns the stored identifier, generating and persisting a fresh
// random one only when none is stored. Generation is infallible; a storage
// write failure is logged and the in-memory identifier is still returned, so
// the attachment proceeds with a session that simply won't survive a restart.
func (p *Provider) GetOrCreate() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached
	}

	if id, ok := p.store.Load(); ok {
		p.cached = id
		return id
	}

	id := uuid.NewString()
	if err := p.store.Save(id); err != nil {
		p.log.Warn("failed to persist session id", zap.Error(err))
	}
	p.cached = id
	return id
}
