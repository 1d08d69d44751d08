package memory

import (
	"sync"

	"github.com/google/uuid"
)

// Store keeps one Buffer per session. Buffers are created lazily on
// first access so every session starts with an empty history.
type Store struct {
	mu      sync.Mutex
	buffers map[uuid.UUID]*Buffer
	factory func() *Buffer
}

// NewStore creates a Store that builds missing buffers with factory.
func NewStore(factory func() *Buffer) *Store {
	return &Store{
		buffers: make(map[uuid.UUID]*Buffer),
		factory: factory,
	}
}

// Buffer returns the buffer for session, creating it if needed.
func (s *Store) Buffer(session uuid.UUID) *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[session]
	if !ok {
		buf = s.factory()
		s.buffers[session] = buf
	}
	return buf
}

// Remove drops the buffer for session, if any.
func (s *Store) Remove(session uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, session)
}
