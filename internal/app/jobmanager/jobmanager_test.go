package jobmanager_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dacirco/dacirco/internal/app/jobmanager"
	"github.com/dacirco/dacirco/internal/app/jobmanager/jobmanagermock"
	"github.com/dacirco/dacirco/internal/model"
	"github.com/dacirco/dacirco/internal/storage/memory"
	"github.com/dacirco/dacirco/internal/storage/storagemock"
)

// Always now is an specific time for tests idempotency.
var testTimeNow, _ = time.Parse(time.RFC3339, "2026-08-25T01:02:03Z")

var testRequest = model.TranscodeRequest{VideoID: "bbb_0.mp4", Bitrate: 7000, Speed: "ultrafast"}

func TestCreateJob(t *testing.T) {
	tests := map[string]struct {
		request  model.TranscodeRequest
		mock     func(mr *storagemock.JobRepository)
		expState model.JobState
		expErr   bool
	}{
		"Creating a valid job should store it in waiting state and queue it.": {
			request: testRequest,
			mock: func(mr *storagemock.JobRepository) {
				mr.On("CreateJob", mock.Anything, mock.MatchedBy(func(j model.Job) bool {
					return j.State == model.JobStateWaiting && j.Request == testRequest
				})).Once().Return(nil)
			},
			expState: model.JobStateWaiting,
		},

		"An invalid request should not reach the repository.": {
			request: model.TranscodeRequest{VideoID: "bbb_0.mp4", Bitrate: 100, Speed: "fast"},
			mock:    func(mr *storagemock.JobRepository) {},
			expErr:  true,
		},

		"A repository failure should fail the creation.": {
			request: testRequest,
			mock: func(mr *storagemock.JobRepository) {
				mr.On("CreateJob", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("something"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			mrepo := storagemock.NewJobRepository(t)
			test.mock(mrepo)

			svc, err := jobmanager.NewService(jobmanager.ServiceConfig{
				Runner:      jobmanagermock.NewRunner(t),
				Repository:  mrepo,
				TimeNowFunc: func() time.Time { return testTimeNow },
			})
			require.NoError(t, err)

			job, err := svc.CreateJob(context.TODO(), test.request)

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expState, job.State)
			assert.NotEmpty(t, job.ID)
		})
	}
}

func TestCreateJobIDsAreUnique(t *testing.T) {
	svc, err := jobmanager.NewService(jobmanager.ServiceConfig{
		Runner:     jobmanagermock.NewRunner(t),
		Repository: memory.NewRepository(),
		// Frozen clock, IDs must still not collide.
		TimeNowFunc: func() time.Time { return testTimeNow },
	})
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		job, err := svc.CreateJob(context.TODO(), testRequest)
		require.NoError(t, err)

		_, ok := seen[job.ID]
		require.False(t, ok, "duplicated job ID %s", job.ID)
		seen[job.ID] = struct{}{}
	}
}

func TestCreateJobQueueFull(t *testing.T) {
	svc, err := jobmanager.NewService(jobmanager.ServiceConfig{
		Runner:     jobmanagermock.NewRunner(t),
		Repository: memory.NewRepository(),
		QueueSize:  1,
	})
	require.NoError(t, err)

	// No dispatcher running, so only the first job fits in the queue.
	job1, err := svc.CreateJob(context.TODO(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateWaiting, job1.State)

	job2, err := svc.CreateJob(context.TODO(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateError, job2.State)
	assert.Equal(t, "dispatch queue full", job2.FailureReason)
}

func TestGetJob(t *testing.T) {
	repo := memory.NewRepository()
	require.NoError(t, repo.CreateJob(context.TODO(), model.Job{ID: "1234", State: model.JobStateStarted}))

	svc, err := jobmanager.NewService(jobmanager.ServiceConfig{
		Runner:     jobmanagermock.NewRunner(t),
		Repository: repo,
	})
	require.NoError(t, err)

	job, err := svc.GetJob(context.TODO(), "1234")
	require.NoError(t, err)
	assert.Equal(t, model.JobStateStarted, job.State)

	_, err = svc.GetJob(context.TODO(), "9999")
	assert.ErrorIs(t, err, jobmanager.ErrJobNotFound)
}

func TestDispatcherProcessesJobs(t *testing.T) {
	tests := map[string]struct {
		mock     func(mr *jobmanagermock.Runner)
		expState model.JobState
	}{
		"A successful run should complete the job with a duration.": {
			mock: func(mr *jobmanagermock.Runner) {
				mr.On("Name").Maybe().Return("fake")
				mr.On("RunTranscode", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expState: model.JobStateCompleted,
		},

		"A failed run should mark the job as errored.": {
			mock: func(mr *jobmanagermock.Runner) {
				mr.On("Name").Maybe().Return("fake")
				mr.On("RunTranscode", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("boom"))
			},
			expState: model.JobStateError,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			mrunner := jobmanagermock.NewRunner(t)
			test.mock(mrunner)
			repo := memory.NewRepository()

			svc, err := jobmanager.NewService(jobmanager.ServiceConfig{
				Runner:     mrunner,
				Repository: repo,
				Workers:    1,
			})
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = svc.RunDispatcher(ctx) }()

			job, err := svc.CreateJob(ctx, testRequest)
			require.NoError(t, err)

			require.Eventually(t, func() bool {
				got, err := repo.GetJob(ctx, job.ID)
				return err == nil && got.State == test.expState
			}, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestDispatcherDrainsQueueOnShutdown(t *testing.T) {
	repo := memory.NewRepository()
	svc, err := jobmanager.NewService(jobmanager.ServiceConfig{
		Runner:     jobmanagermock.NewRunner(t),
		Repository: repo,
		Workers:    1,
	})
	require.NoError(t, err)

	// Queue jobs with no dispatcher running yet.
	job1, err := svc.CreateJob(context.TODO(), testRequest)
	require.NoError(t, err)
	job2, err := svc.CreateJob(context.TODO(), testRequest)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.RunDispatcher(ctx))

	for _, id := range []string{job1.ID, job2.ID} {
		got, err := repo.GetJob(context.TODO(), id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStateError, got.State)
		assert.Equal(t, "service stopped before the job ran", got.FailureReason)
	}
}

func TestStats(t *testing.T) {
	tests := map[string]struct {
		jobs     []model.Job
		expStats model.Stats
	}{
		"No jobs should report zeroes.": {
			jobs:     []model.Job{},
			expStats: model.Stats{},
		},

		"No completed jobs should report zero durations and ratio.": {
			jobs: []model.Job{
				{ID: "1", State: model.JobStateWaiting},
				{ID: "2", State: model.JobStateError},
			},
			expStats: model.Stats{TotalJobs: 2, ErroredJobs: 1},
		},

		"Completed jobs should report ratio, average and percentile.": {
			jobs: []model.Job{
				{ID: "1", State: model.JobStateCompleted, Duration: 10 * time.Second},
				{ID: "2", State: model.JobStateCompleted, Duration: 20 * time.Second},
				{ID: "3", State: model.JobStateError},
				{ID: "4", State: model.JobStateStarted},
			},
			expStats: model.Stats{
				TotalJobs:      4,
				CompletedJobs:  2,
				ErroredJobs:    1,
				CompletedRatio: 0.5,
				DurationAvg:    15 * time.Second,
				DurationP95:    19500 * time.Millisecond,
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := memory.NewRepository()
			for _, j := range test.jobs {
				require.NoError(t, repo.CreateJob(context.TODO(), j))
			}

			svc, err := jobmanager.NewService(jobmanager.ServiceConfig{
				Runner:     jobmanagermock.NewRunner(t),
				Repository: repo,
			})
			require.NoError(t, err)

			stats, err := svc.Stats(context.TODO())
			require.NoError(t, err)
			assert.Equal(t, test.expStats, *stats)
		})
	}
}
