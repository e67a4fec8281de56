package ftp

import (
	"context"
	"errors"
	"io"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/gobeaver/netfs/internal/session"
)

// Conn is the subset of an FTP control connection the backend uses.
// Paths are relative to the current working directory unless absolute.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	CurrentDir() (string, error)
	List(path string) ([]*ftp.Entry, error)
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	Rename(from, to string) error
	Delete(path string) error
	Binary() error

	// Connected reports false once the server closed the control
	// connection or Close was called.
	Connected() bool
	Close() error
}

// Dialer opens a control connection to addr (host:port).
type Dialer func(ctx context.Context, addr string) (Conn, error)

// DefaultTimeout bounds dialing and each control exchange.
const DefaultTimeout = 30 * time.Second

// DialServer connects with github.com/jlaffaye/ftp in passive mode.
func DialServer(ctx context.Context, addr string) (Conn, error) {
	c, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(DefaultTimeout),
	)
	if err != nil {
		return nil, err
	}
	return &serverConn{c: c}, nil
}

// serverConn adapts *ftp.ServerConn to Conn and tracks connection loss.
type serverConn struct {
	c    *ftp.ServerConn
	lost bool
}

func (s *serverConn) track(err error) error {
	if isClosed(err) {
		s.lost = true
	}
	return err
}

func (s *serverConn) Login(user, password string) error {
	return s.track(s.c.Login(user, password))
}

func (s *serverConn) ChangeDir(path string) error {
	return s.track(s.c.ChangeDir(path))
}

func (s *serverConn) CurrentDir() (string, error) {
	dir, err := s.c.CurrentDir()
	return dir, s.track(err)
}

func (s *serverConn) List(path string) ([]*ftp.Entry, error) {
	entries, err := s.c.List(path)
	return entries, s.track(err)
}

func (s *serverConn) Retr(path string) (io.ReadCloser, error) {
	resp, err := s.c.Retr(path)
	if err != nil {
		return nil, s.track(err)
	}
	return resp, nil
}

func (s *serverConn) Stor(path string, r io.Reader) error {
	return s.track(s.c.Stor(path, r))
}

func (s *serverConn) Rename(from, to string) error {
	return s.track(s.c.Rename(from, to))
}

func (s *serverConn) Delete(path string) error {
	return s.track(s.c.Delete(path))
}

func (s *serverConn) Binary() error {
	return s.track(s.c.Type(ftp.TransferTypeBinary))
}

func (s *serverConn) Connected() bool {
	return !s.lost
}

func (s *serverConn) Close() error {
	s.lost = true
	return s.c.Quit()
}

// ============================================================================
// Reply codes
// ============================================================================

func replyCode(err error) int {
	var te *textproto.Error
	if errors.As(err, &te) {
		return te.Code
	}
	return 0
}

// isClosed reports whether err means the control connection is gone.
func isClosed(err error) bool {
	return session.IsClosed(err) || replyCode(err) == ftp.StatusNotAvailable
}

func isUnavailable(err error) bool {
	return replyCode(err) == ftp.StatusFileUnavailable
}
