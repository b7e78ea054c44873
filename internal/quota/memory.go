package quota

import (
	"context"
	"sync"

	"swiftapply/internal/domain"
)

// MemoryPlans is an in-memory PlanStore for tests and local development.
type MemoryPlans struct {
	mu    sync.Mutex
	plans map[string]domain.PlanRecord
}

func NewMemoryPlans() *MemoryPlans {
	return &MemoryPlans{plans: make(map[string]domain.PlanRecord)}
}

// Set stores a plan record for the user.
func (s *MemoryPlans) Set(userID string, rec domain.PlanRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[userID] = rec
}

func (s *MemoryPlans) PlanFor(ctx context.Context, userID string) (domain.PlanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.plans[userID]
	if !ok {
		return domain.PlanRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *MemoryPlans) Downgrade(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[userID] = domain.PlanRecord{Plan: domain.PlanFree}
	return nil
}

// MemoryCounters is an in-memory CounterStore. The mutex makes the
// check-and-increment a single atomic step, mirroring the durable stores.
type MemoryCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{counts: make(map[string]int)}
}

func (s *MemoryCounters) Count(ctx context.Context, identity string, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[identity+"/"+day], nil
}

func (s *MemoryCounters) Increment(ctx context.Context, id domain.Identity, day string, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.ID + "/" + day
	current := s.counts[key]
	if limit >= 0 && current >= limit {
		return current, false, nil
	}
	s.counts[key] = current + 1
	return current + 1, true, nil
}

var (
	_ PlanStore    = (*MemoryPlans)(nil)
	_ CounterStore = (*MemoryCounters)(nil)
)
