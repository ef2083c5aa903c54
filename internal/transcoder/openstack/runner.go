package openstack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dacirco/dacirco/internal/log"
	"github.com/dacirco/dacirco/internal/model"
	"github.com/dacirco/dacirco/internal/transcoder"
)

const workerNamePrefix = "dacirco-worker-"

// WorkerName returns the name of the VM in charge of a job.
func WorkerName(jobID string) string { return workerNamePrefix + jobID }

// RunnerConfig is the configuration of the OpenStack runner.
type RunnerConfig struct {
	VMManager   VMManager
	ObjectStore ObjectStore
	// NewRemote builds the SSH channel to a freshly booted VM.
	NewRemote RemoteFactory

	// Worker describes the VM booted per job. Its Name is derived from
	// the job ID and must be left empty.
	Worker VMSpec
	// SSHUser is the login user of the worker image.
	SSHUser string
	// KeyFile is where the keypair private key is persisted.
	KeyFile string
	// TranscoderScript is an optional local copy of the transcode program
	// uploaded to the VM before running it. When empty the program
	// already baked in the worker image is used.
	TranscoderScript string
	// ControllerHost and ControllerIP are appended to the VM hosts file
	// so the transcoder can reach the OpenStack controller by name.
	ControllerHost string
	ControllerIP   string
	OpenStack      transcoder.OpenStackEnv

	// BootTimeout bounds VM boot plus SSH reachability.
	BootTimeout time.Duration
	// RunTimeout bounds the transcode itself.
	RunTimeout time.Duration

	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.VMManager == nil {
		return fmt.Errorf("a VM manager is required")
	}
	if c.ObjectStore == nil {
		return fmt.Errorf("an object store is required")
	}
	if c.NewRemote == nil {
		c.NewRemote = NewSSHRemote
	}

	if c.Worker.Name != "" {
		return fmt.Errorf("the worker VM name is derived from the job ID and cannot be set")
	}
	if len(c.Worker.SecurityGroups) == 0 {
		c.Worker.SecurityGroups = []string{ICMPSecurityGroup, SSHSecurityGroup}
	}
	if c.Worker.KeypairName == "" {
		c.Worker.KeypairName = "dacirco"
	}

	if c.SSHUser == "" {
		c.SSHUser = "ubuntu"
	}
	if c.KeyFile == "" {
		c.KeyFile = "dacirco.pem"
	}
	if c.ControllerHost == "" {
		c.ControllerHost = "controller"
	}

	if c.BootTimeout == 0 {
		c.BootTimeout = 5 * time.Minute
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = 30 * time.Minute
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"service": "openstack.Runner"})

	return nil
}

// Runner executes transcode jobs on dedicated OpenStack worker VMs: one VM is
// booted per job, the transcoder runs on it over SSH and the VM is deleted
// when the job is done, whatever the outcome.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner returns an OpenStack VM runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	err := cfg.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Runner{cfg: cfg}, nil
}

// Name satisfies the job manager runner interface.
func (r *Runner) Name() string { return "openstack" }

// RunTranscode boots a worker VM, runs the transcoder on it and checks the
// result landed in the object store.
func (r *Runner) RunTranscode(ctx context.Context, job model.Job) error {
	logger := r.cfg.Logger.WithCtxValues(ctx).WithValues(log.Kv{"job-id": job.ID})

	err := r.cfg.VMManager.EnsureSecurityGroups(ctx)
	if err != nil {
		return fmt.Errorf("could not ensure security groups: %w", err)
	}

	key, err := r.cfg.VMManager.EnsureKeypair(ctx, r.cfg.Worker.KeypairName, r.cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("could not ensure keypair: %w", err)
	}

	spec := r.cfg.Worker
	spec.Name = WorkerName(job.ID)

	bootCtx, cancelBoot := context.WithTimeout(ctx, r.cfg.BootTimeout)
	defer cancelBoot()

	vm, err := r.cfg.VMManager.CreateVM(bootCtx, spec)
	if err != nil {
		return fmt.Errorf("could not create worker VM: %w", err)
	}

	// The VM is deleted even when the job is cancelled or fails.
	defer func() {
		err := r.cfg.VMManager.DeleteVM(context.WithoutCancel(ctx), vm)
		if err != nil {
			logger.Errorf("Could not delete worker VM %q: %s", vm.Name, err)
		}
	}()

	remote := r.cfg.NewRemote(vm.IP, r.cfg.SSHUser, key)
	err = remote.WaitReachable(bootCtx)
	if err != nil {
		return fmt.Errorf("worker VM not reachable: %w", err)
	}

	err = r.prepareVM(ctx, remote)
	if err != nil {
		return err
	}

	runCtx, cancelRun := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancelRun()

	logger.Infof("Running transcoder on VM %q", vm.Name)
	output, err := remote.Execute(runCtx, r.transcodeCommand(job))
	logger.Debugf("Transcoder output: %s", output)
	if err != nil {
		return fmt.Errorf("transcoder failed on VM %q: %w", vm.Name, err)
	}

	// The transcoder uploads the result under the job ID, not the source
	// movie name.
	ok, err := r.cfg.ObjectStore.Exists(ctx, TranscodedVideosContainer, job.ID)
	if err != nil {
		return fmt.Errorf("could not check transcode result: %w", err)
	}
	if !ok {
		return fmt.Errorf("transcoder finished but %s/%s is missing", TranscodedVideosContainer, job.ID)
	}

	return nil
}

func (r *Runner) prepareVM(ctx context.Context, remote Remote) error {
	if r.cfg.ControllerIP != "" {
		cmd := fmt.Sprintf("echo '%s %s' | sudo tee -a /etc/hosts", r.cfg.ControllerIP, r.cfg.ControllerHost)
		_, err := remote.Execute(ctx, cmd)
		if err != nil {
			return fmt.Errorf("could not register controller host on the VM: %w", err)
		}
	}

	if r.cfg.TranscoderScript != "" {
		err := remote.UploadFile(ctx, r.cfg.TranscoderScript, "transcode.py")
		if err != nil {
			return fmt.Errorf("could not upload transcoder to the VM: %w", err)
		}
	}

	return nil
}

// transcodeCommand is the transcoder argv prefixed with the OpenStack
// environment so the program can reach the Swift object store.
func (r *Runner) transcodeCommand(job model.Job) string {
	var sb strings.Builder
	for _, v := range r.cfg.OpenStack.Vars() {
		fmt.Fprintf(&sb, "export %s='%s'; ", v.Name, v.Value)
	}
	sb.WriteString(strings.Join(transcoder.Command(job), " "))

	return sb.String()
}
