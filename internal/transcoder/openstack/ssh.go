package openstack

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"time"

	"golang.org/x/crypto/ssh"
)

//go:generate mockery --case underscore --output openstackmock --outpkg openstackmock --name Remote

// Remote executes commands on a worker VM.
type Remote interface {
	// WaitReachable blocks until the SSH port of the VM accepts
	// connections or the context is done.
	WaitReachable(ctx context.Context) error
	// Execute runs a command on the VM and returns its combined output.
	Execute(ctx context.Context, command string) (string, error)
	// UploadFile copies a local file to the VM.
	UploadFile(ctx context.Context, localPath, remotePath string) error
}

// RemoteFactory builds a Remote for a freshly booted VM.
type RemoteFactory func(host, user string, privateKey []byte) Remote

type sshRemote struct {
	host       string
	user       string
	privateKey []byte
}

// NewSSHRemote returns a Remote that talks to the VM over SSH with public key
// authentication.
func NewSSHRemote(host, user string, privateKey []byte) Remote {
	return &sshRemote{
		host:       host,
		user:       user,
		privateKey: privateKey,
	}
}

// addr returns the SSH address of the VM, port 22 unless the host already
// carries one.
func (r *sshRemote) addr() string {
	_, _, err := net.SplitHostPort(r.host)
	if err == nil {
		return r.host
	}

	return net.JoinHostPort(r.host, "22")
}

func (r *sshRemote) WaitReachable(ctx context.Context) error {
	addr := r.addr()
	for {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("VM %q never became reachable: %w", r.host, ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}

func (r *sshRemote) dial(ctx context.Context) (*ssh.Client, error) {
	signer, err := ssh.ParsePrivateKey(r.privateKey)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            r.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	var client *ssh.Client
	for i := 0; i < 10; i++ {
		client, err = ssh.Dial("tcp", r.addr(), config)
		if err == nil {
			return client, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}

	return nil, fmt.Errorf("could not dial ssh: %w", err)
}

func (r *sshRemote) Execute(ctx context.Context, command string) (string, error) {
	client, err := r.dial(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("could not create session: %w", err)
	}
	defer session.Close()

	type result struct {
		output []byte
		err    error
	}
	resC := make(chan result, 1)
	go func() {
		output, err := session.CombinedOutput(command)
		resC <- result{output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		// Closing unblocks CombinedOutput. The remote command may keep
		// running, the VM it runs on is reclaimed by the caller.
		session.Close()
		client.Close()
		return "", fmt.Errorf("command interrupted: %w", ctx.Err())
	case res := <-resC:
		if res.err != nil {
			return string(res.output), fmt.Errorf("command failed: %w, output: %s", res.err, res.output)
		}

		return string(res.output), nil
	}
}

func (r *sshRemote) UploadFile(ctx context.Context, localPath, remotePath string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("could not read %q: %w", localPath, err)
	}

	client, err := r.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("could not create session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("could not open stdin pipe: %w", err)
	}

	err = session.Start(fmt.Sprintf("cat > %q", path.Clean(remotePath)))
	if err != nil {
		return fmt.Errorf("could not start upload: %w", err)
	}

	_, err = stdin.Write(content)
	if err != nil {
		return fmt.Errorf("could not write %q to the VM: %w", remotePath, err)
	}
	stdin.Close()

	err = session.Wait()
	if err != nil {
		return fmt.Errorf("upload of %q failed: %w", remotePath, err)
	}

	return nil
}
