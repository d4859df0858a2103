// Package trend holds the last observed indicator value per
// exchange/pair/frame/indicator.
package trend

import (
	"sort"
	"sync"

	"signalbot/internal/signal"
)

// Store maps a TrendKey to its most recent value. No history, no TTL.
type Store struct {
	mu   sync.RWMutex
	data map[signal.TrendKey]float64
}

func NewStore() *Store {
	return &Store{data: make(map[signal.TrendKey]float64)}
}

func (s *Store) Set(key signal.TrendKey, value float64) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

// Get reports ok=false for keys never written, which callers must treat as
// missing data rather than zero.
func (s *Store) Get(key signal.TrendKey) (float64, bool) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *Store) Has(key signal.TrendKey) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *Store) Delete(key signal.TrendKey) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.data = make(map[signal.TrendKey]float64)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Entry is one key/value pair of a snapshot.
type Entry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Snapshot copies the store, sorted by key.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.data))
	for k, v := range s.data {
		out = append(out, Entry{Key: k.String(), Value: v})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
