package kubernetes_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/dacirco/dacirco/internal/transcoder/kubernetes"
	"github.com/dacirco/dacirco/internal/transcoder/kubernetes/kubernetesmock"
)

func newTestRunner(t *testing.T, m *kubernetesmock.PodManager, mode kubernetes.RunMode) *kubernetes.Runner {
	runner, err := kubernetes.NewRunner(kubernetes.RunnerConfig{
		PodManager: m,
		Mode:       mode,
		Pod: kubernetes.PodConfig{
			Image:        "registry.example.org/shared/transcode",
			ControllerIP: "10.30.9.12",
		},
	})
	require.NoError(t, err)

	return runner
}

func TestRunnerRunTranscodePod(t *testing.T) {
	tests := map[string]struct {
		mock   func(m *kubernetesmock.PodManager)
		expErr bool
	}{
		"A full successful pod lifecycle should not fail.": {
			mock: func(m *kubernetesmock.PodManager) {
				m.On("CreatePod", mock.Anything, mock.MatchedBy(func(p *corev1.Pod) bool {
					return p.Name == "tst-transcode1234" && p.Spec.RestartPolicy == corev1.RestartPolicyNever
				})).Once().Return(nil)
				m.On("WaitPodScheduled", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(nil)
				m.On("WaitPodDone", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(
					&corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodSucceeded}}, nil)
				m.On("PodLogs", mock.Anything, "default", "tst-transcode1234", "transcode").Once().Return("done", nil)
				m.On("DeletePod", mock.Anything, "default", "tst-transcode1234").Once().Return(nil)
			},
		},

		"A pod creation failure should fail without waiting.": {
			mock: func(m *kubernetesmock.PodManager) {
				m.On("CreatePod", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("already exists"))
			},
			expErr: true,
		},

		"A pod stuck in pending should fail and still delete the pod.": {
			mock: func(m *kubernetesmock.PodManager) {
				m.On("CreatePod", mock.Anything, mock.Anything).Once().Return(nil)
				m.On("WaitPodScheduled", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("timed out"))
				m.On("DeletePod", mock.Anything, "default", "tst-transcode1234").Once().Return(nil)
			},
			expErr: true,
		},

		"A failed pod should fail the job and still delete the pod.": {
			mock: func(m *kubernetesmock.PodManager) {
				m.On("CreatePod", mock.Anything, mock.Anything).Once().Return(nil)
				m.On("WaitPodScheduled", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(nil)
				m.On("WaitPodDone", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(
					&corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodFailed, Reason: "OOMKilled"}}, nil)
				m.On("PodLogs", mock.Anything, "default", "tst-transcode1234", "transcode").Once().Return("", nil)
				m.On("DeletePod", mock.Anything, "default", "tst-transcode1234").Once().Return(nil)
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := kubernetesmock.NewPodManager(t)
			test.mock(m)

			runner := newTestRunner(t, m, kubernetes.PodRunMode)

			err := runner.RunTranscode(context.TODO(), testJob)

			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunnerPodFailureReason(t *testing.T) {
	tests := map[string]struct {
		status    corev1.PodStatus
		expReason string
	}{
		"The terminated container message should be preferred.": {
			status: corev1.PodStatus{
				Phase: corev1.PodFailed,
				ContainerStatuses: []corev1.ContainerStatus{{
					State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{
						ExitCode: 1,
						Reason:   "Error",
						Message:  "movie not found in the object store",
					}},
				}},
			},
			expReason: "movie not found in the object store",
		},

		"Without a message the terminated reason and exit code should be used.": {
			status: corev1.PodStatus{
				Phase: corev1.PodFailed,
				ContainerStatuses: []corev1.ContainerStatus{{
					State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{
						ExitCode: 137,
						Reason:   "OOMKilled",
					}},
				}},
			},
			expReason: "OOMKilled (exit code 137)",
		},

		"Without container statuses the pod level reason should be used.": {
			status: corev1.PodStatus{
				Phase:  corev1.PodFailed,
				Reason: "Evicted",
			},
			expReason: "Evicted",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := kubernetesmock.NewPodManager(t)
			m.On("CreatePod", mock.Anything, mock.Anything).Once().Return(nil)
			m.On("WaitPodScheduled", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(nil)
			m.On("WaitPodDone", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(
				&corev1.Pod{Status: test.status}, nil)
			m.On("PodLogs", mock.Anything, "default", "tst-transcode1234", "transcode").Once().Return("", nil)
			m.On("DeletePod", mock.Anything, "default", "tst-transcode1234").Once().Return(nil)

			runner := newTestRunner(t, m, kubernetes.PodRunMode)

			err := runner.RunTranscode(context.TODO(), testJob)
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.expReason)
		})
	}
}

func TestRunnerRunTranscodeBatchJob(t *testing.T) {
	tests := map[string]struct {
		mock   func(m *kubernetesmock.PodManager)
		expErr bool
	}{
		"A full successful batch job lifecycle should not fail.": {
			mock: func(m *kubernetesmock.PodManager) {
				m.On("CreateBatchJob", mock.Anything, mock.MatchedBy(func(j *batchv1.Job) bool {
					return j.Name == "tst-transcode1234" && *j.Spec.BackoffLimit == 0
				})).Once().Return(nil)
				m.On("WaitBatchJobDone", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(
					&batchv1.Job{Status: batchv1.JobStatus{Succeeded: 1}}, nil)
				m.On("BatchJobLogs", mock.Anything, "default", "tst-transcode1234").Once().Return("done", nil)
				m.On("DeleteBatchJob", mock.Anything, "default", "tst-transcode1234").Once().Return(nil)
			},
		},

		"A failed batch job should fail the job and still delete it.": {
			mock: func(m *kubernetesmock.PodManager) {
				m.On("CreateBatchJob", mock.Anything, mock.Anything).Once().Return(nil)
				m.On("WaitBatchJobDone", mock.Anything, "default", "tst-transcode1234", mock.Anything, mock.Anything).Once().Return(
					&batchv1.Job{Status: batchv1.JobStatus{Failed: 1}}, nil)
				m.On("BatchJobLogs", mock.Anything, "default", "tst-transcode1234").Once().Return("", nil)
				m.On("DeleteBatchJob", mock.Anything, "default", "tst-transcode1234").Once().Return(nil)
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := kubernetesmock.NewPodManager(t)
			test.mock(m)

			runner := newTestRunner(t, m, kubernetes.BatchJobRunMode)

			err := runner.RunTranscode(context.TODO(), testJob)

			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
