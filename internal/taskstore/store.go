// Package taskstore is the caller-side container for in-flight and recent
// generation tasks. It replaces ambient global progress state: whoever
// drives the pipeline owns a Store and passes it where needed, and the
// server knows nothing about it.
package taskstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"swiftapply/internal/ai"
	"swiftapply/internal/domain"
)

// Status tracks a task or a stage within it.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// StageOutput tracks one stage's progress within a task.
type StageOutput struct {
	Status   Status
	Content  string
	Result   domain.StageResult
	Tokens   *ai.TokenUsage
	Duration time.Duration
}

// Entry is one tracked generation task.
type Entry struct {
	ID           string
	Label        string
	Status       Status
	ActiveStage  domain.Stage
	StageOutputs map[domain.Stage]StageOutput
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultCap bounds how many tasks a store keeps before evicting the
// oldest.
const DefaultCap = 5

// Store is a bounded, observable task container. Newest tasks sit first;
// adding past the cap drops the oldest.
type Store struct {
	mu      sync.Mutex
	cap     int
	tasks   []Entry
	current string
	subs    map[int]func([]Entry)
	nextSub int
	now     func() time.Time
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{cap: capacity, subs: make(map[int]func([]Entry)), now: time.Now}
}

// NewDeviceID generates a fresh opaque device identifier. Callers persist
// it locally, one per installation.
func NewDeviceID() string {
	return uuid.NewString()
}

// Add prepends a task, evicts beyond the cap, and makes it current.
func (s *Store) Add(entry Entry) {
	s.mu.Lock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = StatusPending
	}
	if entry.StageOutputs == nil {
		entry.StageOutputs = make(map[domain.Stage]StageOutput)
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = s.now()
	}
	entry.UpdatedAt = s.now()

	s.tasks = append([]Entry{entry}, s.tasks...)
	if len(s.tasks) > s.cap {
		s.tasks = s.tasks[:s.cap]
	}
	s.current = entry.ID
	s.notifyLocked()
}

// Update applies fn to the matching entry, bumps UpdatedAt, and re-derives
// the task's overall status from its stages. It is a no-op when the id is
// gone (already evicted). Reports whether the entry was found.
func (s *Store) Update(id string, fn func(*Entry)) bool {
	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		fn(&s.tasks[i])
		s.tasks[i].UpdatedAt = s.now()
		s.tasks[i].Status = deriveStatus(s.tasks[i])
		s.notifyLocked()
		return true
	}
	s.mu.Unlock()
	return false
}

// SetCurrent marks the task the UI focuses on.
func (s *Store) SetCurrent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
}

// Current returns the focused task.
func (s *Store) Current() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.ID == s.current {
			return cloneEntry(task), true
		}
	}
	return Entry{}, false
}

// Remove drops the task with the given id.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			if s.current == id {
				s.current = ""
			}
			break
		}
	}
	s.notifyLocked()
}

// Clear drops every task.
func (s *Store) Clear() {
	s.mu.Lock()
	s.tasks = nil
	s.current = ""
	s.notifyLocked()
}

// Tasks returns a snapshot, newest first.
func (s *Store) Tasks() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to run with a snapshot after every mutation. The
// returned cancel func unregisters it.
func (s *Store) Subscribe(fn func([]Entry)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notifyLocked snapshots state, releases the lock, and invokes subscribers
// so they may call back into the store.
func (s *Store) notifyLocked() {
	snapshot := s.snapshotLocked()
	subs := make([]func([]Entry), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

func (s *Store) snapshotLocked() []Entry {
	out := make([]Entry, len(s.tasks))
	for i, task := range s.tasks {
		out[i] = cloneEntry(task)
	}
	return out
}

func cloneEntry(e Entry) Entry {
	outputs := make(map[domain.Stage]StageOutput, len(e.StageOutputs))
	for stage, output := range e.StageOutputs {
		outputs[stage] = output
	}
	e.StageOutputs = outputs
	return e
}

// deriveStatus computes the task's overall status: error if any stage
// errored, completed only once the final stage completed, pending until a
// stage starts, running otherwise.
func deriveStatus(e Entry) Status {
	anyStarted := false
	for _, output := range e.StageOutputs {
		if output.Status == StatusError {
			return StatusError
		}
		if output.Status != StatusPending && output.Status != "" {
			anyStarted = true
		}
	}
	if final, ok := e.StageOutputs[domain.StageReviewer]; ok && final.Status == StatusCompleted {
		return StatusCompleted
	}
	if !anyStarted {
		return StatusPending
	}
	return StatusRunning
}
