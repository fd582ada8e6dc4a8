package common

import "sync"

// PauseSet is a concurrency-safe PauseView backed by an in-memory set. The
// daemon seeds it from configuration and flips modules at runtime through
// its admin surface.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseSet returns a switchboard with the supplied modules paused.
func NewPauseSet(paused ...string) *PauseSet {
	set := &PauseSet{paused: make(map[string]bool)}
	for _, module := range paused {
		set.paused[module] = true
	}
	return set
}

// IsPaused implements PauseView.
func (s *PauseSet) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused[module]
}

// SetPaused pauses or resumes a module.
func (s *PauseSet) SetPaused(module string, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paused {
		s.paused[module] = true
		return
	}
	delete(s.paused, module)
}
