// ABOUTME: Thread-safe store holding the active database handle
// ABOUTME: Atomic swap on install, never-blocking reads, ErrNotReady before first fetch

package geodb

import (
	"sync"
)

// Store holds the currently active database handle. Readers never
// observe a partially installed handle: Current and Acquire return
// either the previous or the new handle in full.
//
// Only the Updater calls Install; handles are replaced, never mutated.
type Store struct {
	mu      sync.RWMutex
	current *Handle
}

// NewStore creates an empty store. Lookups receive ErrNotReady until
// the first Install.
func NewStore() *Store {
	return &Store{}
}

// Current returns the active handle without pinning it. Intended for
// metadata reads (status reporting); lookup callers must use Acquire.
func (s *Store) Current() (*Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, ErrNotReady
	}
	return s.current, nil
}

// Ready reports whether a handle has been installed.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Acquire pins the active handle for a lookup and returns it along
// with a release function. The handle stays queryable until released,
// even if a newer handle is installed meanwhile. Release is safe to
// call exactly once per acquire; a sync.Once guards double calls.
func (s *Store) Acquire() (*Handle, func(), error) {
	s.mu.RLock()
	h := s.current
	if h == nil {
		s.mu.RUnlock()
		return nil, nil, ErrNotReady
	}
	h.acquire()
	s.mu.RUnlock()

	var once sync.Once
	return h, func() {
		once.Do(h.release)
	}, nil
}

// Install atomically swaps in a new handle and retires the previous
// one. The previous handle is closed, and its owned artifact removed,
// only after the last in-flight lookup releases it.
func (s *Store) Install(h *Handle) {
	s.mu.Lock()
	prev := s.current
	s.current = h
	s.mu.Unlock()

	if prev != nil && prev != h {
		prev.retire()
	}
}
