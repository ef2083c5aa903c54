// Package jobmanager implements the application service that tracks and
// dispatches transcoding jobs.
package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dacirco/dacirco/internal/log"
	"github.com/dacirco/dacirco/internal/metrics"
	"github.com/dacirco/dacirco/internal/model"
	"github.com/dacirco/dacirco/internal/storage"
)

// ErrJobNotFound will be used when the requested job is unknown.
var ErrJobNotFound = errors.New("job not found")

// Runner knows how to execute a transcoding job on some backend (Kubernetes
// pod, OpenStack VM...).
type Runner interface {
	Name() string
	RunTranscode(ctx context.Context, job model.Job) error
}

//go:generate mockery --case underscore --output jobmanagermock --outpkg jobmanagermock --name Runner

// ServiceConfig is the configuration of the job manager service.
type ServiceConfig struct {
	Runner          Runner
	Repository      storage.JobRepository
	MetricsRecorder metrics.Recorder
	// Workers is the number of concurrent transcoding executions.
	Workers int
	// QueueSize is the capacity of the dispatch queue. Job creations over a
	// full queue are rejected.
	QueueSize   int
	TimeNowFunc func() time.Time
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("job repository is required")
	}

	if c.MetricsRecorder == nil {
		c.MetricsRecorder = metrics.NoopRecorder
	}

	if c.Workers <= 0 {
		c.Workers = 5
	}

	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}

	if c.TimeNowFunc == nil {
		c.TimeNowFunc = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"service": "jobmanager.Service"})

	return nil
}

// Service is the job manager. It accepts transcoding requests, keeps track of
// their jobs and dispatches them to the configured runner.
type Service struct {
	runner      Runner
	repository  storage.JobRepository
	metricsRec  metrics.Recorder
	workers     int
	timeNowFunc func() time.Time
	logger      log.Logger

	queue chan string

	mu     sync.Mutex
	lastID uint64
}

// NewService returns a new job manager service.
func NewService(config ServiceConfig) (*Service, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Service{
		runner:      config.Runner,
		repository:  config.Repository,
		metricsRec:  config.MetricsRecorder,
		workers:     config.Workers,
		timeNowFunc: config.TimeNowFunc,
		logger:      config.Logger,
		queue:       make(chan string, config.QueueSize),
	}, nil
}

// CreateJob registers a new transcoding job and queues it for dispatch. The
// returned job is in Waiting state, or in Error state if it could not be
// queued.
func (s *Service) CreateJob(ctx context.Context, req model.TranscodeRequest) (*model.Job, error) {
	err := req.Validate()
	if err != nil {
		return nil, err
	}

	job := model.Job{
		ID:        s.newJobID(),
		Request:   req,
		State:     model.JobStateWaiting,
		CreatedAt: s.timeNowFunc(),
	}

	err = s.repository.CreateJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("could not store job: %w", err)
	}

	select {
	case s.queue <- job.ID:
		s.metricsRec.MeasureJobQueued(ctx)
		s.logger.WithCtxValues(ctx).WithValues(log.Kv{"job-id": job.ID}).Infof("Job created")
	default:
		// Queue saturated. There is no retry at job level, the job dies here.
		job.State = model.JobStateError
		job.FailureReason = "dispatch queue full"
		err = s.repository.UpdateJob(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("could not store rejected job: %w", err)
		}
		s.logger.WithCtxValues(ctx).WithValues(log.Kv{"job-id": job.ID}).Warningf("Dispatch queue full, job rejected")
	}

	return &job, nil
}

// GetJob returns a single job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repository.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("could not get job: %w", err)
	}

	return job, nil
}

// ListJobs returns all known jobs.
func (s *Service) ListJobs(ctx context.Context) ([]model.Job, error) {
	jobs, err := s.repository.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list jobs: %w", err)
	}

	return jobs, nil
}

// newJobID creates a unique digits-only job ID derived from the current time.
// Digits-only keeps the ID usable as a pod name suffix.
func (s *Service) newJobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uint64(s.timeNowFunc().UnixMicro())
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	return strconv.FormatUint(id, 10)
}
