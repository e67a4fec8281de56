// Package session implements the lazily reconnecting connection guard
// shared by the remote backends.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"syscall"
)

// ErrClosed is reported by connections the peer or the session has closed.
var ErrClosed = errors.New("connection closed")

// Conn is a live client connection.
type Conn interface {
	// Connected reports whether the client still considers itself connected.
	Connected() bool
	Close() error
}

// State of a Session
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Config describes how a Session dials and probes its connection.
type Config[C Conn] struct {
	// Name identifies the endpoint in log records. It must not contain
	// credentials.
	Name string

	// Dial opens, authenticates and prepares a new connection.
	Dial func(ctx context.Context) (C, error)

	// Probe checks a connection that reports itself connected. A nil Probe
	// trusts Connected.
	Probe func(ctx context.Context, c C) error

	Logger *slog.Logger
}

// Session owns at most one connection and rebuilds it when it goes stale.
// A Session is not safe for concurrent use.
type Session[C Conn] struct {
	cfg    Config[C]
	conn   C
	live   bool
	closed bool
	dials  int
}

// New returns a disconnected Session.
func New[C Conn](cfg Config[C]) *Session[C] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session[C]{cfg: cfg}
}

// Acquire returns a usable connection. A connection that reports itself
// connected and passes the probe is reused. Otherwise the session dials
// exactly once; a dial failure is returned unchanged.
func (s *Session[C]) Acquire(ctx context.Context) (C, error) {
	var zero C
	if s.closed {
		return zero, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if s.live {
		if s.conn.Connected() {
			if s.cfg.Probe == nil {
				return s.conn, nil
			}
			err := s.cfg.Probe(ctx, s.conn)
			if err == nil {
				return s.conn, nil
			}
			if IsClosed(err) {
				s.cfg.Logger.Info("connection closed by peer, reconnecting", "endpoint", s.cfg.Name)
			} else {
				s.cfg.Logger.Warn("connection probe failed, reconnecting", "endpoint", s.cfg.Name, "error", err)
			}
		} else {
			s.cfg.Logger.Debug("connection lost, reconnecting", "endpoint", s.cfg.Name)
		}
		s.drop()
	}

	c, err := s.cfg.Dial(ctx)
	if err != nil {
		return zero, err
	}
	s.conn = c
	s.live = true
	s.dials++
	s.cfg.Logger.Debug("connected", "endpoint", s.cfg.Name, "dials", s.dials)
	return c, nil
}

// Invalidate discards the current connection so the next Acquire dials.
func (s *Session[C]) Invalidate() {
	if s.live {
		s.drop()
	}
}

// State reports whether a connection is held.
func (s *Session[C]) State() State {
	if s.live && s.conn.Connected() {
		return Connected
	}
	return Disconnected
}

// Dials returns how many connections were established.
func (s *Session[C]) Dials() int {
	return s.dials
}

// Close releases the connection. Later calls to Acquire fail with ErrClosed.
func (s *Session[C]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.live {
		return nil
	}
	err := s.conn.Close()
	s.reset()
	return err
}

func (s *Session[C]) drop() {
	if err := s.conn.Close(); err != nil {
		s.cfg.Logger.Debug("closing stale connection", "endpoint", s.cfg.Name, "error", err)
	}
	s.reset()
}

func (s *Session[C]) reset() {
	var zero C
	s.conn = zero
	s.live = false
}

// IsClosed reports whether err means the transport is gone.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}
