package runner

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"b3-dataflow/internal/errors"
)

// MemoryJobStore keeps job runs in memory.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

// Create adds a new job.
func (s *MemoryJobStore) Create(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	job.Args = maps.Clone(job.Args)
	s.jobs[job.ID] = &job
	return nil
}

// Get returns a copy of the job.
func (s *MemoryJobStore) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return Job{}, fmt.Errorf("job %s: %w", id, errors.ErrNotFound)
	}
	return clone(job), nil
}

// Update applies fn to the stored job under the lock.
func (s *MemoryJobStore) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job %s: %w", id, errors.ErrNotFound)
	}
	fn(job)
	return nil
}

// List returns copies of every job, oldest first.
func (s *MemoryJobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, clone(job))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clone(j *Job) Job {
	c := *j
	c.Args = maps.Clone(j.Args)
	return c
}
