package kubernetes_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	kubernetesfake "k8s.io/client-go/kubernetes/fake"

	"github.com/dacirco/dacirco/internal/log"
	"github.com/dacirco/dacirco/internal/transcoder/kubernetes"
)

func TestPodManagerCreatePod(t *testing.T) {
	tests := map[string]struct {
		cluster []runtime.Object
		pod     *corev1.Pod
		expErr  bool
	}{
		"Creating a pod on an empty cluster should work.": {
			pod: &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"}},
		},

		"Creating a pod that already exists should fail.": {
			cluster: []runtime.Object{
				&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"}},
			},
			pod:    &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"}},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := kubernetesfake.NewSimpleClientset(test.cluster...)
			manager := kubernetes.NewPodManager(client, log.Noop)

			err := manager.CreatePod(context.TODO(), test.pod)

			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPodManagerWaitPodDone(t *testing.T) {
	tests := map[string]struct {
		pod      *corev1.Pod
		expPhase corev1.PodPhase
		expErr   bool
	}{
		"A succeeded pod should be returned.": {
			pod: &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"},
				Status:     corev1.PodStatus{Phase: corev1.PodSucceeded},
			},
			expPhase: corev1.PodSucceeded,
		},

		"A failed pod should be returned so the caller can inspect it.": {
			pod: &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"},
				Status:     corev1.PodStatus{Phase: corev1.PodFailed},
			},
			expPhase: corev1.PodFailed,
		},

		"A pod that never finishes should time out.": {
			pod: &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"},
				Status:     corev1.PodStatus{Phase: corev1.PodRunning},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := kubernetesfake.NewSimpleClientset(test.pod)
			manager := kubernetes.NewPodManager(client, log.Noop)

			pod, err := manager.WaitPodDone(context.TODO(), "default", "tst-transcode1", 10*time.Millisecond, 100*time.Millisecond)

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expPhase, pod.Status.Phase)
		})
	}
}

func TestPodManagerWaitPodScheduled(t *testing.T) {
	pendingPod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}

	client := kubernetesfake.NewSimpleClientset(pendingPod)
	manager := kubernetes.NewPodManager(client, log.Noop)

	err := manager.WaitPodScheduled(context.TODO(), "default", "tst-transcode1", 10*time.Millisecond, 100*time.Millisecond)
	assert.Error(t, err)

	runningPod := pendingPod.DeepCopy()
	runningPod.Status.Phase = corev1.PodRunning
	client = kubernetesfake.NewSimpleClientset(runningPod)
	manager = kubernetes.NewPodManager(client, log.Noop)

	err = manager.WaitPodScheduled(context.TODO(), "default", "tst-transcode1", 10*time.Millisecond, 100*time.Millisecond)
	assert.NoError(t, err)
}

func TestPodManagerDeletePod(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"}}
	client := kubernetesfake.NewSimpleClientset(pod)
	manager := kubernetes.NewPodManager(client, log.Noop)

	err := manager.DeletePod(context.TODO(), "default", "tst-transcode1")
	require.NoError(t, err)

	_, err = client.CoreV1().Pods("default").Get(context.TODO(), "tst-transcode1", metav1.GetOptions{})
	assert.Error(t, err)

	err = manager.DeletePod(context.TODO(), "default", "tst-transcode1")
	assert.Error(t, err)
}

func TestPodManagerWaitBatchJobDone(t *testing.T) {
	tests := map[string]struct {
		job       *batchv1.Job
		expFailed int32
		expErr    bool
	}{
		"A finished batch job should be returned.": {
			job: &batchv1.Job{
				ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"},
				Status:     batchv1.JobStatus{Succeeded: 1},
			},
		},

		"A failed batch job should be returned with its failures.": {
			job: &batchv1.Job{
				ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"},
				Status:     batchv1.JobStatus{Failed: 1},
			},
			expFailed: 1,
		},

		"An active batch job should time out.": {
			job: &batchv1.Job{
				ObjectMeta: metav1.ObjectMeta{Name: "tst-transcode1", Namespace: "default"},
				Status:     batchv1.JobStatus{Active: 1},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := kubernetesfake.NewSimpleClientset(test.job)
			manager := kubernetes.NewPodManager(client, log.Noop)

			job, err := manager.WaitBatchJobDone(context.TODO(), "default", "tst-transcode1", 10*time.Millisecond, 100*time.Millisecond)

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expFailed, job.Status.Failed)
		})
	}
}
