package lifecycle

import "sync"

// idSet remembers the most recent order IDs, evicting the oldest first.
type idSet struct {
	mu    sync.Mutex
	limit int
	order []int64
	seen  map[int64]struct{}
}

func newIDSet(limit int) *idSet {
	return &idSet{limit: limit, seen: make(map[int64]struct{}, limit)}
}

// add reports false if id was already present.
func (s *idSet) add(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	return true
}
