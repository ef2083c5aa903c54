package storage

import (
	"context"
	"errors"

	"github.com/dacirco/dacirco/internal/model"
)

var (
	// ErrNotFound will be used when a job is missing from the repository.
	ErrNotFound = errors.New("job not found")
	// ErrAlreadyExists will be used when creating a job whose ID is taken.
	ErrAlreadyExists = errors.New("job already exists")
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name JobRepository

// JobRepository knows how to store and retrieve transcoding jobs.
type JobRepository interface {
	CreateJob(ctx context.Context, job model.Job) error
	UpdateJob(ctx context.Context, job model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context) ([]model.Job, error)
}
