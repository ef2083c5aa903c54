// Package memory implements the job repository with a process local map.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dacirco/dacirco/internal/model"
	"github.com/dacirco/dacirco/internal/storage"
)

// Repository is an in-memory storage.JobRepository implementation.
// Safe for concurrent use.
type Repository struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

// NewRepository returns an empty in-memory job repository.
func NewRepository() *Repository {
	return &Repository{
		jobs: map[string]model.Job{},
	}
}

func (r *Repository) CreateJob(ctx context.Context, job model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("job %q: %w", job.ID, storage.ErrAlreadyExists)
	}
	r.jobs[job.ID] = job

	return nil
}

func (r *Repository) UpdateJob(ctx context.Context, job model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return fmt.Errorf("job %q: %w", job.ID, storage.ErrNotFound)
	}
	r.jobs[job.ID] = job

	return nil
}

func (r *Repository) GetJob(ctx context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", id, storage.ErrNotFound)
	}

	return &job, nil
}

func (r *Repository) ListJobs(ctx context.Context) ([]model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}

	return jobs, nil
}
