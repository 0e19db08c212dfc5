package groundctl

import (
	"sync"
	"time"
)

// Slot holds the most recent value of one telemetry kind. Writers overwrite,
// readers copy out; nothing is ever queued.
type Slot[T any] struct {
	mu      sync.Mutex
	v       T
	ok      bool
	updated time.Time
}

func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	s.v = v
	s.ok = true
	s.updated = time.Now()
	s.mu.Unlock()
}

// Get returns the current value and whether one has been set.
func (s *Slot[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v, s.ok
}

// Take returns the current value and empties the slot.
func (s *Slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.v, s.ok
	var zero T
	s.v = zero
	s.ok = false
	return v, ok
}

// Updated is the time of the last Set, zero if never set.
func (s *Slot[T]) Updated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}
