// Package kubernetes implements the transcoding runner that executes each
// job as a pod (or batch job) on a Kubernetes cluster.
package kubernetes

import (
	"context"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/dacirco/dacirco/internal/log"
)

//go:generate mockery --case underscore --output kubernetesmock --outpkg kubernetesmock --name PodManager

// PodManager knows how to drive transcode pods and batch jobs on a cluster.
type PodManager interface {
	CreatePod(ctx context.Context, pod *corev1.Pod) error
	DeletePod(ctx context.Context, ns, name string) error
	PodLogs(ctx context.Context, ns, name, container string) (string, error)
	// WaitPodScheduled waits for a pod to leave the Pending phase.
	WaitPodScheduled(ctx context.Context, ns, name string, interval, timeout time.Duration) error
	// WaitPodDone waits for a pod to reach a terminal phase and returns it.
	WaitPodDone(ctx context.Context, ns, name string, interval, timeout time.Duration) (*corev1.Pod, error)

	CreateBatchJob(ctx context.Context, job *batchv1.Job) error
	// DeleteBatchJob deletes a job and its dependant pods.
	DeleteBatchJob(ctx context.Context, ns, name string) error
	// WaitBatchJobDone waits for a job to have no active pods left and
	// returns it.
	WaitBatchJobDone(ctx context.Context, ns, name string, interval, timeout time.Duration) (*batchv1.Job, error)
	// BatchJobLogs returns the logs of the pod owned by a job.
	BatchJobLogs(ctx context.Context, ns, name string) (string, error)
}

type podManager struct {
	client kubernetes.Interface
	logger log.Logger
}

// NewPodManager returns a PodManager working against a real cluster through
// the received client.
func NewPodManager(client kubernetes.Interface, logger log.Logger) PodManager {
	return podManager{
		client: client,
		logger: logger.WithValues(log.Kv{"service": "kubernetes.PodManager"}),
	}
}

func (p podManager) CreatePod(ctx context.Context, pod *corev1.Pod) error {
	p.logger.WithCtxValues(ctx).WithValues(log.Kv{"pod": pod.Name}).Debugf("Creating pod")
	_, err := p.client.CoreV1().Pods(pod.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("could not create pod %q: %w", pod.Name, err)
	}

	return nil
}

func (p podManager) DeletePod(ctx context.Context, ns, name string) error {
	p.logger.WithCtxValues(ctx).WithValues(log.Kv{"pod": name}).Debugf("Deleting pod")
	err := p.client.CoreV1().Pods(ns).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		return fmt.Errorf("could not delete pod %q: %w", name, err)
	}

	return nil
}

func (p podManager) PodLogs(ctx context.Context, ns, name, container string) (string, error) {
	req := p.client.CoreV1().Pods(ns).GetLogs(name, &corev1.PodLogOptions{Container: container})
	logs, err := req.DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("could not get pod %q logs: %w", name, err)
	}

	return string(logs), nil
}

func (p podManager) WaitPodScheduled(ctx context.Context, ns, name string, interval, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		pod, err := p.client.CoreV1().Pods(ns).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}

		return pod.Status.Phase != corev1.PodPending, nil
	})
	if err != nil {
		return fmt.Errorf("pod %q did not leave pending phase: %w", name, err)
	}

	return nil
}

func (p podManager) WaitPodDone(ctx context.Context, ns, name string, interval, timeout time.Duration) (*corev1.Pod, error) {
	var pod *corev1.Pod
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		gotPod, err := p.client.CoreV1().Pods(ns).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}

		switch gotPod.Status.Phase {
		case corev1.PodSucceeded, corev1.PodFailed:
			pod = gotPod
			return true, nil
		}

		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pod %q did not finish: %w", name, err)
	}

	return pod, nil
}

func (p podManager) CreateBatchJob(ctx context.Context, job *batchv1.Job) error {
	p.logger.WithCtxValues(ctx).WithValues(log.Kv{"job": job.Name}).Debugf("Creating batch job")
	_, err := p.client.BatchV1().Jobs(job.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("could not create batch job %q: %w", job.Name, err)
	}

	return nil
}

func (p podManager) DeleteBatchJob(ctx context.Context, ns, name string) error {
	p.logger.WithCtxValues(ctx).WithValues(log.Kv{"job": name}).Debugf("Deleting batch job")

	// Delete all dependant pods as well.
	propagation := metav1.DeletePropagationBackground
	err := p.client.BatchV1().Jobs(ns).Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if err != nil {
		return fmt.Errorf("could not delete batch job %q: %w", name, err)
	}

	return nil
}

func (p podManager) WaitBatchJobDone(ctx context.Context, ns, name string, interval, timeout time.Duration) (*batchv1.Job, error) {
	var job *batchv1.Job
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		gotJob, err := p.client.BatchV1().Jobs(ns).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}

		if gotJob.Status.Active == 0 && gotJob.Status.Succeeded+gotJob.Status.Failed > 0 {
			job = gotJob
			return true, nil
		}

		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch job %q did not finish: %w", name, err)
	}

	return job, nil
}

func (p podManager) BatchJobLogs(ctx context.Context, ns, name string) (string, error) {
	pods, err := p.client.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + name,
	})
	if err != nil {
		return "", fmt.Errorf("could not list pods of batch job %q: %w", name, err)
	}
	if len(pods.Items) == 0 {
		return "", fmt.Errorf("batch job %q has no pods", name)
	}

	return p.PodLogs(ctx, ns, pods.Items[0].Name, TranscodeContainerName)
}
