package rls

import (
	"math/rand/v2"
	"sync"
)

// SharedContext is the state the UDP and control sub-tasks both touch. It is
// the only task state shared across goroutines.
type SharedContext struct {
	mu  sync.Mutex
	sti uint64
}

func NewSharedContext() *SharedContext {
	return &SharedContext{sti: rand.Uint64()}
}

// Sti is the current session token stamped on outbound datagrams.
func (s *SharedContext) Sti() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sti
}

// ResetSti draws a new token and returns it.
func (s *SharedContext) ResetSti() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sti = rand.Uint64()
	return s.sti
}
