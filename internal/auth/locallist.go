package auth

import (
	"context"
	"sync"
	"time"
)

// ListEntry is one record of the station's local authorization list.
type ListEntry struct {
	Status    Status
	ParentId  string
	ExpiresAt time.Time
}

// LocalListStrategy answers from the station's local authorization list.
type LocalListStrategy struct {
	mu      sync.RWMutex
	enabled func() bool
	entries map[string]ListEntry
}

// NewLocalListStrategy builds the strategy. The enabled callback reads the
// station's LocalAuthListEnabled configuration at request time so that a
// ChangeConfiguration takes effect without rebuilding the chain.
func NewLocalListStrategy(enabled func() bool) *LocalListStrategy {
	return &LocalListStrategy{
		enabled: enabled,
		entries: make(map[string]ListEntry),
	}
}

func (s *LocalListStrategy) Name() string  { return "local-list" }
func (s *LocalListStrategy) Priority() int { return PriorityLocalList }

// Put inserts or replaces a list entry.
func (s *LocalListStrategy) Put(value string, e ListEntry) {
	s.mu.Lock()
	s.entries[value] = e
	s.mu.Unlock()
}

// Remove drops a list entry.
func (s *LocalListStrategy) Remove(value string) {
	s.mu.Lock()
	delete(s.entries, value)
	s.mu.Unlock()
}

func (s *LocalListStrategy) CanHandle(req *Request) bool {
	if s.enabled != nil && !s.enabled() {
		return false
	}
	s.mu.RLock()
	_, ok := s.entries[req.Identifier.Value]
	s.mu.RUnlock()
	return ok
}

func (s *LocalListStrategy) Authorize(_ context.Context, req *Request) (*Result, error) {
	s.mu.RLock()
	e, ok := s.entries[req.Identifier.Value]
	s.mu.RUnlock()
	if !ok {
		return nil, nil // raced with Remove, let the next strategy decide
	}

	status := e.Status
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		status = StatusExpired
	}
	return &Result{
		Status:    status,
		ParentId:  e.ParentId,
		ExpiresAt: e.ExpiresAt,
		Timestamp: time.Now(),
	}, nil
}
