package job

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. It carries the reference semantics for
// the guarded write and ownership rules and backs tests and single-shot tools.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id, ownerID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok || j.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for _, j := range s.jobs {
		if j.OwnerID == ownerID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateTerminal(_ context.Context, id string, status Status, title, artifactRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	j.Status = status
	j.Title = title
	j.ArtifactRef = artifactRef
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) Counts(_ context.Context, ownerID string) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c Counts
	for _, j := range s.jobs {
		if j.OwnerID != ownerID {
			continue
		}
		c.Total++
		switch j.Status {
		case StatusProcessing:
			c.Processing++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	return c, nil
}
