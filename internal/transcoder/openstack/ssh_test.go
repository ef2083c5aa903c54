package openstack_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/dacirco/dacirco/internal/transcoder/openstack"
)

// startSSHServer runs a minimal in-process SSH server that hands every
// session channel to the received handler. It returns the listen address.
func startSSHServer(t *testing.T, handle func(ch ssh.Channel, reqs <-chan *ssh.Request)) string {
	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	config := &ssh.ServerConfig{NoClientAuth: true}
	config.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			go func() {
				sconn, chans, reqs, err := ssh.NewServerConn(conn, config)
				if err != nil {
					return
				}
				defer sconn.Close()
				go ssh.DiscardRequests(reqs)

				for newCh := range chans {
					ch, chReqs, err := newCh.Accept()
					if err != nil {
						continue
					}
					go handle(ch, chReqs)
				}
			}()
		}
	}()

	return ln.Addr().String()
}

func testClientKey(t *testing.T) []byte {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(key, "")
	require.NoError(t, err)

	return pem.EncodeToMemory(block)
}

func TestSSHRemoteExecute(t *testing.T) {
	addr := startSSHServer(t, func(ch ssh.Channel, reqs <-chan *ssh.Request) {
		for req := range reqs {
			if req.Type != "exec" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			_, _ = ch.Write([]byte("hello"))
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{Status: 0}))
			ch.Close()
		}
	})

	remote := openstack.NewSSHRemote(addr, "ubuntu", testClientKey(t))

	output, err := remote.Execute(context.TODO(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", output)
}

func TestSSHRemoteExecuteContextCancel(t *testing.T) {
	// The server accepts the command but never finishes it.
	addr := startSSHServer(t, func(ch ssh.Channel, reqs <-chan *ssh.Request) {
		for req := range reqs {
			req.Reply(req.Type == "exec", nil)
		}
	})

	remote := openstack.NewSSHRemote(addr, "ubuntu", testClientKey(t))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	doneC := make(chan error, 1)
	go func() {
		_, err := remote.Execute(ctx, "sleep 9999")
		doneC <- err
	}()

	select {
	case err := <-doneC:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after the context was cancelled")
	}
}
