package smb

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/hirochachacha/go-smb2"

	"github.com/gobeaver/netfs/internal/session"
)

// Share is the subset of a mounted SMB share the backend uses. Paths are
// relative to the share root, "" being the root itself.
type Share interface {
	Stat(name string) (os.FileInfo, error)
	ReadDir(dir string) ([]os.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error

	// Connected reports false once the transport failed or Close was called.
	Connected() bool
	Close() error
}

// Credentials for NTLM authentication.
type Credentials struct {
	Domain   string
	User     string
	Password string
}

// Dialer connects to addr, authenticates and mounts share.
type Dialer func(ctx context.Context, addr string, cred Credentials, share string) (Share, error)

// DefaultTimeout bounds the TCP dial.
const DefaultTimeout = 30 * time.Second

// DialShare connects with github.com/hirochachacha/go-smb2.
func DialShare(ctx context.Context, addr string, cred Credentials, share string) (Share, error) {
	d := net.Dialer{Timeout: DefaultTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	sd := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     cred.User,
			Password: cred.Password,
			Domain:   cred.Domain,
		},
	}
	s, err := sd.DialContext(ctx, nc)
	if err != nil {
		nc.Close()
		return nil, err
	}

	fs, err := s.Mount(share)
	if err != nil {
		_ = s.Logoff()
		_ = closeConn(nc)
		return nil, err
	}
	return &mountedShare{session: s, share: fs, nc: nc}, nil
}

// smbShare is the part of *smb2.Share behind mountedShare.
type smbShare interface {
	Stat(name string) (os.FileInfo, error)
	ReadDir(dirname string) ([]os.FileInfo, error)
	Open(name string) (*smb2.File, error)
	Create(name string) (*smb2.File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Umount() error
}

// smbSession is the part of *smb2.Session behind mountedShare.
type smbSession interface {
	Logoff() error
}

// mountedShare adapts *smb2.Share to Share and tracks connection loss.
// go-smb2 closes the transport only after a successful LOGOFF, so nc is
// closed here as well.
type mountedShare struct {
	session smbSession
	share   smbShare
	nc      net.Conn
	lost    bool
}

func (m *mountedShare) track(err error) error {
	if isClosed(err) {
		m.lost = true
	}
	return err
}

func (m *mountedShare) Stat(name string) (os.FileInfo, error) {
	fi, err := m.share.Stat(name)
	return fi, m.track(err)
}

func (m *mountedShare) ReadDir(dir string) ([]os.FileInfo, error) {
	entries, err := m.share.ReadDir(dir)
	return entries, m.track(err)
}

func (m *mountedShare) Open(name string) (io.ReadCloser, error) {
	f, err := m.share.Open(name)
	if err != nil {
		return nil, m.track(err)
	}
	return f, nil
}

func (m *mountedShare) Create(name string) (io.WriteCloser, error) {
	f, err := m.share.Create(name)
	if err != nil {
		return nil, m.track(err)
	}
	return f, nil
}

func (m *mountedShare) Remove(name string) error {
	return m.track(m.share.Remove(name))
}

func (m *mountedShare) Rename(oldpath, newpath string) error {
	return m.track(m.share.Rename(oldpath, newpath))
}

func (m *mountedShare) Connected() bool {
	return !m.lost
}

// Close unmounts the share, logs off and closes the TCP connection.
func (m *mountedShare) Close() error {
	m.lost = true
	return errors.Join(m.share.Umount(), m.session.Logoff(), closeConn(m.nc))
}

// closeConn closes nc, ignoring a connection go-smb2 already closed.
func closeConn(nc net.Conn) error {
	if err := nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// ============================================================================
// NTSTATUS codes
// ============================================================================

const (
	statusNoSuchFile         = 0xC000000F
	statusObjectNameNotFound = 0xC0000034
	statusObjectPathNotFound = 0xC000003A
	statusLogonFailure       = 0xC000006D
	statusAccountDisabled    = 0xC0000072
	statusBadNetworkName     = 0xC00000CC
	statusNotADirectory      = 0xC0000103
	statusNetworkNameDeleted = 0xC00000C9
)

func ntStatus(err error) uint32 {
	var re *smb2.ResponseError
	if errors.As(err, &re) {
		return re.Code
	}
	return 0
}

func isNotExist(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	switch ntStatus(err) {
	case statusNoSuchFile, statusObjectNameNotFound, statusObjectPathNotFound, statusNotADirectory:
		return true
	}
	return false
}

func isAuthFailure(err error) bool {
	switch ntStatus(err) {
	case statusLogonFailure, statusAccountDisabled:
		return true
	}
	return false
}

func isClosed(err error) bool {
	return session.IsClosed(err) || errors.Is(err, os.ErrClosed) || ntStatus(err) == statusNetworkNameDeleted
}
