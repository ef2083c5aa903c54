package kubernetes

import (
	"context"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/dacirco/dacirco/internal/log"
)

type dryRunPodManager struct {
	PodManager
	logger log.Logger
}

// NewDryRunPodManager returns a PodManager that ignores all the cluster write
// operations and resolves all the waits instantly.
func NewDryRunPodManager(manager PodManager, logger log.Logger) PodManager {
	return dryRunPodManager{
		PodManager: manager,
		logger:     logger.WithValues(log.Kv{"service": "kubernetes.PodManager", "mode": "dry-run"}),
	}
}

func (d dryRunPodManager) CreatePod(ctx context.Context, pod *corev1.Pod) error {
	d.logger.WithCtxValues(ctx).WithValues(log.Kv{"pod": pod.Name}).Infof("Create pod ignored")
	return nil
}

func (d dryRunPodManager) DeletePod(ctx context.Context, ns, name string) error {
	d.logger.WithCtxValues(ctx).WithValues(log.Kv{"pod": name}).Infof("Delete pod ignored")
	return nil
}

func (d dryRunPodManager) WaitPodScheduled(ctx context.Context, ns, name string, interval, timeout time.Duration) error {
	return nil
}

func (d dryRunPodManager) WaitPodDone(ctx context.Context, ns, name string, interval, timeout time.Duration) (*corev1.Pod, error) {
	return &corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodSucceeded}}, nil
}

func (d dryRunPodManager) PodLogs(ctx context.Context, ns, name, container string) (string, error) {
	return "", nil
}

func (d dryRunPodManager) CreateBatchJob(ctx context.Context, job *batchv1.Job) error {
	d.logger.WithCtxValues(ctx).WithValues(log.Kv{"job": job.Name}).Infof("Create batch job ignored")
	return nil
}

func (d dryRunPodManager) DeleteBatchJob(ctx context.Context, ns, name string) error {
	d.logger.WithCtxValues(ctx).WithValues(log.Kv{"job": name}).Infof("Delete batch job ignored")
	return nil
}

func (d dryRunPodManager) WaitBatchJobDone(ctx context.Context, ns, name string, interval, timeout time.Duration) (*batchv1.Job, error) {
	return &batchv1.Job{Status: batchv1.JobStatus{Succeeded: 1}}, nil
}

func (d dryRunPodManager) BatchJobLogs(ctx context.Context, ns, name string) (string, error) {
	return "", nil
}
