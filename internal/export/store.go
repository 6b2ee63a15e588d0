package export

import (
	"sync"

	"github.com/google/uuid"
)

// JobStore is a concurrent-safe map from job id to job. Iteration returns
// live pointers; callers wanting caller-safe copies take Snapshot on each.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*Job)}
}

func (s *JobStore) Add(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *JobStore) Get(id uuid.UUID) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

func (s *JobStore) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// All returns the stored jobs in unspecified order.
func (s *JobStore) All() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
