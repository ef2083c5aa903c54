package kubernetes

import (
	"context"
	"fmt"
	"net"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/dacirco/dacirco/internal/log"
	"github.com/dacirco/dacirco/internal/model"
)

// RunMode selects how the runner executes transcodings on the cluster.
type RunMode string

const (
	// PodRunMode runs each transcoding as a bare pod.
	PodRunMode RunMode = "pod"
	// BatchJobRunMode runs each transcoding as a batch/v1 Job.
	BatchJobRunMode RunMode = "job"
)

// RunnerConfig is the configuration of the Kubernetes transcoding runner.
type RunnerConfig struct {
	PodManager PodManager
	Pod        PodConfig
	// PodConfigFunc, when set, is called on every job instead of using Pod,
	// so the pod settings can change while the service runs.
	PodConfigFunc func() PodConfig
	Mode          RunMode
	// ScheduleTimeout is the maximum wait for a created pod to leave Pending.
	ScheduleTimeout time.Duration
	// RunTimeout is the maximum wait for the transcoding itself.
	RunTimeout   time.Duration
	PollInterval time.Duration
	// LookupHostFunc resolves the controller hostname into IPs when the
	// controller IP is not set explicitly.
	LookupHostFunc func(ctx context.Context, host string) ([]string, error)
	Logger         log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.PodManager == nil {
		return fmt.Errorf("pod manager is required")
	}

	if c.PodConfigFunc == nil {
		if c.Pod.Image == "" {
			return fmt.Errorf("transcoder image is required")
		}

		if c.Pod.Namespace == "" {
			c.Pod.Namespace = "default"
		}

		if c.Pod.CPULimit == "" {
			c.Pod.CPULimit = "4"
		}

		if c.Pod.MemoryLimit == "" {
			c.Pod.MemoryLimit = "2Gi"
		}

		if c.Pod.ControllerHost == "" {
			c.Pod.ControllerHost = "controller"
		}

		pod := c.Pod
		c.PodConfigFunc = func() PodConfig { return pod }
	}

	if c.Mode == "" {
		c.Mode = PodRunMode
	}

	if c.ScheduleTimeout == 0 {
		c.ScheduleTimeout = 180 * time.Second
	}

	if c.RunTimeout == 0 {
		c.RunTimeout = 30 * time.Minute
	}

	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}

	if c.LookupHostFunc == nil {
		c.LookupHostFunc = net.DefaultResolver.LookupHost
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"service": "kubernetes.Runner"})

	return nil
}

// Runner executes transcoding jobs as pods on a Kubernetes cluster.
type Runner struct {
	manager         PodManager
	podConfigFunc   func() PodConfig
	mode            RunMode
	scheduleTimeout time.Duration
	runTimeout      time.Duration
	pollInterval    time.Duration
	lookupHostFunc  func(ctx context.Context, host string) ([]string, error)
	logger          log.Logger
}

// NewRunner returns a new Kubernetes transcoding runner.
func NewRunner(config RunnerConfig) (*Runner, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Runner{
		manager:         config.PodManager,
		podConfigFunc:   config.PodConfigFunc,
		mode:            config.Mode,
		scheduleTimeout: config.ScheduleTimeout,
		runTimeout:      config.RunTimeout,
		pollInterval:    config.PollInterval,
		lookupHostFunc:  config.LookupHostFunc,
		logger:          config.Logger,
	}, nil
}

func (r *Runner) Name() string { return "kubernetes" }

// RunTranscode executes the transcoding of a job as a pod (or batch job):
// create, wait until scheduled, wait until done, collect logs and delete.
func (r *Runner) RunTranscode(ctx context.Context, job model.Job) error {
	podCfg, err := r.podConfig(ctx)
	if err != nil {
		return err
	}

	if r.mode == BatchJobRunMode {
		return r.runBatchJob(ctx, podCfg, job)
	}

	return r.runPod(ctx, podCfg, job)
}

func (r *Runner) runPod(ctx context.Context, podCfg PodConfig, job model.Job) (err error) {
	logger := r.logger.WithCtxValues(ctx).WithValues(log.Kv{"job-id": job.ID})

	pod := NewTranscodePod(podCfg, job)
	err = r.manager.CreatePod(ctx, pod)
	if err != nil {
		return fmt.Errorf("could not create transcode pod: %w", err)
	}

	// The pod is never reused, remove it whatever the outcome was.
	defer func() {
		delErr := r.manager.DeletePod(context.WithoutCancel(ctx), podCfg.Namespace, pod.Name)
		if delErr != nil {
			logger.Errorf("Could not delete transcode pod: %s", delErr)
			if err == nil {
				err = delErr
			}
		}
	}()

	err = r.manager.WaitPodScheduled(ctx, podCfg.Namespace, pod.Name, r.pollInterval, r.scheduleTimeout)
	if err != nil {
		return fmt.Errorf("transcode pod was not scheduled: %w", err)
	}
	logger.Debugf("Pod %s scheduled, waiting for transcoding", pod.Name)

	donePod, err := r.manager.WaitPodDone(ctx, podCfg.Namespace, pod.Name, r.pollInterval, r.runTimeout)
	if err != nil {
		return fmt.Errorf("transcode pod did not finish: %w", err)
	}

	logs, err := r.manager.PodLogs(ctx, podCfg.Namespace, pod.Name, TranscodeContainerName)
	if err != nil {
		logger.Warningf("Could not get transcode pod logs: %s", err)
	} else {
		logger.Debugf("Pod output:\n%s", logs)
	}

	if donePod.Status.Phase == corev1.PodFailed {
		return fmt.Errorf("transcode pod failed: %s", podFailureReason(donePod))
	}

	return nil
}

// podFailureReason digs the failure cause out of a failed pod. The pod level
// reason is empty most of the time, the detail lives in the terminated
// container state.
func podFailureReason(pod *corev1.Pod) string {
	for _, cs := range pod.Status.ContainerStatuses {
		term := cs.State.Terminated
		if term == nil {
			continue
		}

		if term.Message != "" {
			return term.Message
		}
		if term.Reason != "" {
			return fmt.Sprintf("%s (exit code %d)", term.Reason, term.ExitCode)
		}

		return fmt.Sprintf("exit code %d", term.ExitCode)
	}

	if pod.Status.Reason != "" {
		return pod.Status.Reason
	}

	return "unknown"
}

func (r *Runner) runBatchJob(ctx context.Context, podCfg PodConfig, job model.Job) (err error) {
	logger := r.logger.WithCtxValues(ctx).WithValues(log.Kv{"job-id": job.ID})

	batchJob := NewTranscodeJob(podCfg, job)
	err = r.manager.CreateBatchJob(ctx, batchJob)
	if err != nil {
		return fmt.Errorf("could not create transcode batch job: %w", err)
	}

	defer func() {
		delErr := r.manager.DeleteBatchJob(context.WithoutCancel(ctx), podCfg.Namespace, batchJob.Name)
		if delErr != nil {
			logger.Errorf("Could not delete transcode batch job: %s", delErr)
			if err == nil {
				err = delErr
			}
		}
	}()

	doneJob, err := r.manager.WaitBatchJobDone(ctx, podCfg.Namespace, batchJob.Name, r.pollInterval, r.runTimeout)
	if err != nil {
		return fmt.Errorf("transcode batch job did not finish: %w", err)
	}

	logs, err := r.manager.BatchJobLogs(ctx, podCfg.Namespace, batchJob.Name)
	if err != nil {
		logger.Warningf("Could not get transcode batch job logs: %s", err)
	} else {
		logger.Debugf("Batch job output:\n%s", logs)
	}

	if doneJob.Status.Failed > 0 {
		return fmt.Errorf("transcode batch job failed")
	}

	return nil
}

// podConfig resolves the controller host alias IP when it was not set.
func (r *Runner) podConfig(ctx context.Context) (PodConfig, error) {
	cfg := r.podConfigFunc()
	if cfg.ControllerIP != "" {
		return cfg, nil
	}

	addrs, err := r.lookupHostFunc(ctx, cfg.ControllerHost)
	if err != nil {
		return cfg, fmt.Errorf("could not resolve controller host %q: %w", cfg.ControllerHost, err)
	}
	if len(addrs) == 0 {
		return cfg, fmt.Errorf("controller host %q resolved to no addresses", cfg.ControllerHost)
	}
	cfg.ControllerIP = addrs[0]

	return cfg, nil
}
