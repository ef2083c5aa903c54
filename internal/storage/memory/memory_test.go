package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dacirco/dacirco/internal/model"
	"github.com/dacirco/dacirco/internal/storage"
	"github.com/dacirco/dacirco/internal/storage/memory"
)

func TestRepositoryCreateGet(t *testing.T) {
	tests := map[string]struct {
		seed   []model.Job
		create model.Job
		expErr error
	}{
		"Creating a new job should store it.": {
			create: model.Job{ID: "16618131131234", State: model.JobStateWaiting},
		},

		"Creating a job twice should fail.": {
			seed:   []model.Job{{ID: "16618131131234"}},
			create: model.Job{ID: "16618131131234"},
			expErr: storage.ErrAlreadyExists,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := memory.NewRepository()
			for _, j := range test.seed {
				require.NoError(t, repo.CreateJob(context.TODO(), j))
			}

			err := repo.CreateJob(context.TODO(), test.create)

			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)

			got, err := repo.GetJob(context.TODO(), test.create.ID)
			require.NoError(t, err)
			assert.Equal(t, test.create, *got)
		})
	}
}

func TestRepositoryUpdate(t *testing.T) {
	repo := memory.NewRepository()
	job := model.Job{ID: "1", State: model.JobStateWaiting}
	require.NoError(t, repo.CreateJob(context.TODO(), job))

	job.State = model.JobStateCompleted
	job.Duration = 42 * time.Second
	require.NoError(t, repo.UpdateJob(context.TODO(), job))

	got, err := repo.GetJob(context.TODO(), "1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStateCompleted, got.State)
	assert.Equal(t, 42*time.Second, got.Duration)

	err = repo.UpdateJob(context.TODO(), model.Job{ID: "unknown"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := memory.NewRepository()

	_, err := repo.GetJob(context.TODO(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepositoryList(t *testing.T) {
	repo := memory.NewRepository()
	require.NoError(t, repo.CreateJob(context.TODO(), model.Job{ID: "1"}))
	require.NoError(t, repo.CreateJob(context.TODO(), model.Job{ID: "2"}))

	jobs, err := repo.ListJobs(context.TODO())
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
