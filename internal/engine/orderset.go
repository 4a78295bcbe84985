package engine

import "sync"

// orderSet is a grow-only set of order ids. Only the poll loop adds to it;
// the mutex makes concurrent reads from the command surface safe.
type orderSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func newOrderSet() *orderSet {
	return &orderSet{ids: make(map[string]struct{})}
}

func (s *orderSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add reports whether id was newly inserted.
func (s *orderSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *orderSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
