package jobmanager

import (
	"context"
	"sync"

	"github.com/dacirco/dacirco/internal/log"
	"github.com/dacirco/dacirco/internal/model"
)

// RunDispatcher runs the queued job dispatch loop with the configured number
// of concurrent workers. It blocks until the context is done and all workers
// have returned.
func (s *Service) RunDispatcher(ctx context.Context) error {
	s.logger.WithValues(log.Kv{"workers": s.workers}).Infof("Dispatcher running")
	defer s.logger.Infof("Dispatcher stopped")

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(ctx)
		}()
	}
	wg.Wait()

	// The workers are gone, fail whatever is still queued so no job is left
	// waiting forever.
	drainCtx := context.WithoutCancel(ctx)
	for {
		select {
		case id := <-s.queue:
			s.metricsRec.MeasureJobDequeued(drainCtx)
			s.failJob(drainCtx, id, "service stopped before the job ran")
		default:
			return nil
		}
	}
}

func (s *Service) workerLoop(ctx context.Context) {
	for {
		// Stop has priority over picking up more work.
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			s.metricsRec.MeasureJobDequeued(ctx)
			s.processJob(ctx, id)
		}
	}
}

func (s *Service) failJob(ctx context.Context, id, reason string) {
	logger := s.logger.WithValues(log.Kv{"job-id": id})

	job, err := s.repository.GetJob(ctx, id)
	if err != nil {
		logger.Errorf("Could not get queued job: %s", err)
		return
	}

	job.State = model.JobStateError
	job.FailureReason = reason
	err = s.repository.UpdateJob(ctx, *job)
	if err != nil {
		logger.Errorf("Could not store job result: %s", err)
	}
}

// processJob executes a single job on the runner and tracks its state
// transitions. Runner failures mark the job as Error, they never stop the
// worker.
func (s *Service) processJob(ctx context.Context, id string) {
	logger := s.logger.WithCtxValues(ctx).WithValues(log.Kv{"job-id": id})

	job, err := s.repository.GetJob(ctx, id)
	if err != nil {
		logger.Errorf("Could not get queued job: %s", err)
		return
	}

	job.State = model.JobStateStarted
	err = s.repository.UpdateJob(ctx, *job)
	if err != nil {
		logger.Errorf("Could not mark job as started: %s", err)
		return
	}

	logger.Infof("Transcoding started")
	runErr := s.runner.RunTranscode(ctx, *job)
	duration := s.timeNowFunc().Sub(job.CreatedAt)
	s.metricsRec.MeasureTranscodeDuration(ctx, s.runner.Name(), duration, runErr)

	if runErr != nil {
		job.State = model.JobStateError
		job.FailureReason = runErr.Error()
		logger.Errorf("Transcoding failed: %s", runErr)
	} else {
		job.State = model.JobStateCompleted
		job.Duration = duration
		logger.WithValues(log.Kv{"duration": duration}).Infof("Transcoding completed")
	}

	err = s.repository.UpdateJob(ctx, *job)
	if err != nil {
		logger.Errorf("Could not store job result: %s", err)
	}
}
