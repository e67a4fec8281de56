package sftp

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/gobeaver/netfs/internal/session"
)

// Client is the subset of an SFTP session the backend uses.
type Client interface {
	Getwd() (string, error)
	Stat(p string) (os.FileInfo, error)
	ReadDir(p string) ([]os.FileInfo, error)
	Open(p string) (io.ReadCloser, error)
	Create(p string) (io.WriteCloser, error)
	Remove(p string) error
	Rename(oldname, newname string) error

	// Connected reports false once the SSH transport has terminated.
	Connected() bool
	Close() error
}

// Dialer opens an authenticated SFTP session to addr.
type Dialer func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Client, error)

// DefaultTimeout bounds the TCP dial and the SSH handshake.
const DefaultTimeout = 30 * time.Second

// DialSSH connects over TCP, performs the SSH handshake and starts the
// sftp subsystem.
func DialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Client, error) {
	d := net.Dialer{Timeout: DefaultTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(nc, addr, cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}
	_ = nc.SetDeadline(time.Time{})
	sshConn := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, err
	}

	sc := &sshClient{client: client, ssh: sshConn}
	go func() {
		_ = sshConn.Wait()
		sc.lost.Store(true)
	}()
	return sc, nil
}

// sshClient adapts *sftp.Client to Client.
type sshClient struct {
	client *sftp.Client
	ssh    *ssh.Client
	lost   atomic.Bool
}

func (c *sshClient) Getwd() (string, error)                  { return c.client.Getwd() }
func (c *sshClient) Stat(p string) (os.FileInfo, error)      { return c.client.Stat(p) }
func (c *sshClient) ReadDir(p string) ([]os.FileInfo, error) { return c.client.ReadDir(p) }
func (c *sshClient) Remove(p string) error                   { return c.client.Remove(p) }
func (c *sshClient) Rename(oldname, newname string) error    { return c.client.Rename(oldname, newname) }

func (c *sshClient) Open(p string) (io.ReadCloser, error) {
	f, err := c.client.Open(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *sshClient) Create(p string) (io.WriteCloser, error) {
	f, err := c.client.Create(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *sshClient) Connected() bool {
	return !c.lost.Load()
}

// Close closes the SFTP and SSH connections
func (c *sshClient) Close() error {
	c.lost.Store(true)
	return errors.Join(c.client.Close(), c.ssh.Close())
}

// isClosed reports whether err means the SSH transport is gone.
func isClosed(err error) bool {
	return session.IsClosed(err) ||
		errors.Is(err, sftp.ErrSSHFxConnectionLost) ||
		errors.Is(err, sftp.ErrSSHFxNoConnection)
}
