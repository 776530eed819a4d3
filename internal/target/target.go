// Package target holds the id of the user the bot follows.
//
// The value is written by the set_target command and may be read from any
// goroutine. Zero means no target has been set.
package target

import "sync"

// State is the shared followed-user id. The zero value is ready to use.
type State struct {
	mu sync.RWMutex
	id uint64
}

// Get returns the current target id, or zero when unset.
func (s *State) Get() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Set replaces the target id. Last writer wins.
func (s *State) Set(id uint64) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}
