package kubernetes

import (
	"context"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/dacirco/dacirco/internal/log"
)

type fakePodManager struct {
	logger log.Logger
}

// NewFakePodManager returns a PodManager that fakes all the cluster calls so
// the service can run without a Kubernetes cluster.
func NewFakePodManager(logger log.Logger) PodManager {
	return fakePodManager{
		logger: logger.WithValues(log.Kv{"service": "kubernetes.PodManager", "mode": "fake"}),
	}
}

func (f fakePodManager) CreatePod(ctx context.Context, pod *corev1.Pod) error {
	f.logger.WithCtxValues(ctx).WithValues(log.Kv{"pod": pod.Name}).Infof("Fake pod created")
	return nil
}

func (f fakePodManager) DeletePod(ctx context.Context, ns, name string) error {
	f.logger.WithCtxValues(ctx).WithValues(log.Kv{"pod": name}).Infof("Fake pod deleted")
	return nil
}

func (f fakePodManager) PodLogs(ctx context.Context, ns, name, container string) (string, error) {
	return "fake transcode logs", nil
}

func (f fakePodManager) WaitPodScheduled(ctx context.Context, ns, name string, interval, timeout time.Duration) error {
	return nil
}

func (f fakePodManager) WaitPodDone(ctx context.Context, ns, name string, interval, timeout time.Duration) (*corev1.Pod, error) {
	// Fake transcodings take a bit of time so states can be observed.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	return &corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodSucceeded}}, nil
}

func (f fakePodManager) CreateBatchJob(ctx context.Context, job *batchv1.Job) error {
	f.logger.WithCtxValues(ctx).WithValues(log.Kv{"job": job.Name}).Infof("Fake batch job created")
	return nil
}

func (f fakePodManager) DeleteBatchJob(ctx context.Context, ns, name string) error {
	f.logger.WithCtxValues(ctx).WithValues(log.Kv{"job": name}).Infof("Fake batch job deleted")
	return nil
}

func (f fakePodManager) WaitBatchJobDone(ctx context.Context, ns, name string, interval, timeout time.Duration) (*batchv1.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	return &batchv1.Job{Status: batchv1.JobStatus{Succeeded: 1}}, nil
}

func (f fakePodManager) BatchJobLogs(ctx context.Context, ns, name string) (string, error) {
	return "fake transcode logs", nil
}
