package kubernetes

import (
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/dacirco/dacirco/internal/model"
	"github.com/dacirco/dacirco/internal/transcoder"
)

const (
	// TranscodeContainerName is the name of the container running the transcoder.
	TranscodeContainerName = "transcode"

	// JobIDLabelKey is the pod label carrying the DaCirco job ID.
	JobIDLabelKey = "dacirco.io/job-id"

	podNamePrefix = "tst-transcode"
)

// PodConfig is the static part of the transcode pod manifests.
type PodConfig struct {
	// Image is the transcoder container image.
	Image     string
	Namespace string
	// CPULimit and MemoryLimit are the container resource limits.
	CPULimit    string
	MemoryLimit string
	// ControllerHost is the hostname the transcoder uses to reach the
	// OpenStack controller, injected as a host alias for ControllerIP.
	ControllerHost string
	ControllerIP   string
	OpenStack      transcoder.OpenStackEnv
}

// PodName returns the name of the pod in charge of a job.
func PodName(jobID string) string { return podNamePrefix + jobID }

// NewTranscodePod returns the pod manifest that transcodes the received job.
func NewTranscodePod(cfg PodConfig, job model.Job) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      PodName(job.ID),
			Namespace: cfg.Namespace,
			Labels: map[string]string{
				JobIDLabelKey: job.ID,
			},
		},
		Spec: newTranscodePodSpec(cfg, job),
	}
}

// NewTranscodeJob returns a batch Job manifest equivalent to the transcode
// pod. Backoff limit 0: the transcoder is never retried.
func NewTranscodeJob(cfg PodConfig, job model.Job) *batchv1.Job {
	backoffLimit := int32(0)
	parallelism := int32(1)

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      PodName(job.ID),
			Namespace: cfg.Namespace,
			Labels: map[string]string{
				JobIDLabelKey: job.ID,
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Parallelism:  &parallelism,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						JobIDLabelKey: job.ID,
					},
				},
				Spec: newTranscodePodSpec(cfg, job),
			},
		},
	}
}

func newTranscodePodSpec(cfg PodConfig, job model.Job) corev1.PodSpec {
	env := make([]corev1.EnvVar, 0, 7)
	for _, v := range cfg.OpenStack.Vars() {
		env = append(env, corev1.EnvVar{Name: v.Name, Value: v.Value})
	}

	return corev1.PodSpec{
		Containers: []corev1.Container{
			{
				Name:    TranscodeContainerName,
				Image:   cfg.Image,
				Command: transcoder.Command(job),
				Env:     env,
				Resources: corev1.ResourceRequirements{
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse(cfg.CPULimit),
						corev1.ResourceMemory: resource.MustParse(cfg.MemoryLimit),
					},
				},
			},
		},
		HostAliases: []corev1.HostAlias{
			{
				IP:        cfg.ControllerIP,
				Hostnames: []string{cfg.ControllerHost},
			},
		},
		RestartPolicy: corev1.RestartPolicyNever,
	}
}
