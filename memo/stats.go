package memo

import (
	"sync"
	"sync/atomic"
)

// Statistics tracks memo table usage.
type Statistics struct {
	hits   atomic.Int64
	misses atomic.Int64
	stores atomic.Int64
	clears atomic.Int64

	mu          sync.RWMutex
	currentSize int64
	maxSize     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) Hit()   { s.hits.Add(1) }
func (s *Statistics) Miss()  { s.misses.Add(1) }
func (s *Statistics) Store() { s.stores.Add(1) }
func (s *Statistics) Clear() { s.clears.Add(1) }

// UpdateSize updates the current table size.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

func (s *Statistics) Hits() int64   { return s.hits.Load() }
func (s *Statistics) Misses() int64 { return s.misses.Load() }
func (s *Statistics) Stores() int64 { return s.stores.Load() }
func (s *Statistics) Clears() int64 { return s.clears.Load() }

// CurrentSize returns the current number of entries in the table.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the maximum number of entries the table has held.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// HitRatio returns hits / (hits + misses), 0 when there were no lookups.
func (s *Statistics) HitRatio() float64 {
	hits, misses := s.Hits(), s.Misses()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// StatsSummary is a snapshot of all statistics.
type StatsSummary struct {
	Hits        int64   `json:"hits" yaml:"hits"`
	Misses      int64   `json:"misses" yaml:"misses"`
	Stores      int64   `json:"stores" yaml:"stores"`
	Clears      int64   `json:"clears" yaml:"clears"`
	CurrentSize int64   `json:"current_size" yaml:"current_size"`
	MaxSize     int64   `json:"max_size" yaml:"max_size"`
	HitRatio    float64 `json:"hit_ratio" yaml:"hit_ratio"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Hits:        s.Hits(),
		Misses:      s.Misses(),
		Stores:      s.Stores(),
		Clears:      s.Clears(),
		CurrentSize: s.CurrentSize(),
		MaxSize:     s.MaxSize(),
		HitRatio:    s.HitRatio(),
	}
}
