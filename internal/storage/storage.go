package storage

import (
	"context"
	"sync"
)

const defaultAuditCapacity = 1000

// InMemoryAuditStore keeps the most recent runs in memory.
type InMemoryAuditStore struct {
	mu       sync.RWMutex
	runs     []*ToolRun
	capacity int
}

// NewInMemoryAuditStore creates a store holding at most capacity runs (1000 if <= 0).
func NewInMemoryAuditStore(capacity int) *InMemoryAuditStore {
	if capacity <= 0 {
		capacity = defaultAuditCapacity
	}
	return &InMemoryAuditStore{capacity: capacity}
}

// RecordRun stores a copy of run, evicting the oldest entry when full.
func (s *InMemoryAuditStore) RecordRun(ctx context.Context, run *ToolRun) error {
	if run == nil {
		return nil
	}
	cp := *run

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) >= s.capacity {
		s.runs = s.runs[1:]
	}
	s.runs = append(s.runs, &cp)
	return nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *InMemoryAuditStore) ListRuns(ctx context.Context, limit int) ([]*ToolRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*ToolRun, 0, n)
	for i := len(s.runs) - 1; i >= 0 && len(out) < n; i-- {
		cp := *s.runs[i]
		out = append(out, &cp)
	}
	return out, nil
}
