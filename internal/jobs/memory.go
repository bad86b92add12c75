package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/appforge/forge/internal/db/models"
)

// MemoryStore is the reference Store implementation backed by a mutex-guarded
// map. It is used by tests and by single-process deployments that do not
// need Postgres.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// NewMemoryStore creates an empty in-memory job store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.Job)}
}

var _ Store = (*MemoryStore)(nil)

// Create stores a new job record
func (s *MemoryStore) Create(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

// Get returns a copy of the job with the given id
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *job
	return &clone, nil
}

// Update applies the mutator to the stored record under the store lock. A
// mutator error aborts the write and is returned unchanged.
func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*models.Job) error) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := *job
	if err := mutate(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	s.jobs[id] = &working
	clone := working
	return &clone, nil
}

// List returns jobs ordered by creation time descending, filtered by the
// given options
func (s *MemoryStore) List(_ context.Context, opts *models.ListOptions) ([]models.Job, error) {
	if opts == nil {
		opts = &models.ListOptions{}
	}
	opts.Normalize()

	s.mu.RLock()
	matched := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if opts.Status != nil && job.Status != *opts.Status {
			continue
		}
		if opts.OwnerID != "" && job.OwnerID != opts.OwnerID {
			continue
		}
		if opts.Query != "" && !strings.Contains(strings.ToLower(job.Prompt), strings.ToLower(opts.Query)) {
			continue
		}
		matched = append(matched, *job)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if opts.Offset >= len(matched) {
		return []models.Job{}, nil
	}
	matched = matched[opts.Offset:]
	if len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}
