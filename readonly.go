package netfs

import (
	"context"
	"errors"
	"io"
)

// ErrReadOnly is returned when a write operation is attempted on a read-only filesystem.
var ErrReadOnly = errors.New("filesystem is read-only")

// ============================================================================
// ReadOnly decorator
// ============================================================================

// ReadOnlyFileSystem wraps a FileSystem so that the files it hands out
// reject Write, Delete and Rename.
//
// Example:
//
//	fs, _ := factory.CreateFileSystem(ctx, "ftp://mirror.example.org/pub")
//	ro := netfs.NewReadOnly(fs)
//
//	f, _ := ro.Create(ctx, "", "README")
//	_, err := f.Write(ctx)
//	// errors.Is(err, netfs.ErrReadOnly)
type ReadOnlyFileSystem struct {
	fs   FileSystem
	opts ReadOnlyOptions
}

// ReadOnlyOptions configures the ReadOnlyFileSystem behavior.
type ReadOnlyOptions struct {
	// AllowDelete permits file deletion in read-only mode.
	// Default: false
	AllowDelete bool

	// OnWriteAttempt is called when a write operation is attempted.
	// If it returns nil the operation is allowed.
	OnWriteAttempt func(op, path string) error
}

// ReadOnlyOption is a functional option for configuring ReadOnlyFileSystem.
type ReadOnlyOption func(*ReadOnlyOptions)

// WithAllowDelete allows file deletion in read-only mode.
func WithAllowDelete(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowDelete = allow
	}
}

// WithOnWriteAttempt sets a callback for write attempts.
func WithOnWriteAttempt(fn func(op, path string) error) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.OnWriteAttempt = fn
	}
}

// NewReadOnly wraps fs.
func NewReadOnly(fs FileSystem, opts ...ReadOnlyOption) *ReadOnlyFileSystem {
	ro := &ReadOnlyFileSystem{fs: fs}
	for _, opt := range opts {
		opt(&ro.opts)
	}
	return ro
}

// Unwrap returns the underlying FileSystem.
func (ro *ReadOnlyFileSystem) Unwrap() FileSystem {
	return ro.fs
}

// deny returns the error for a write attempt, or nil when it is allowed.
func (ro *ReadOnlyFileSystem) deny(op, path string) error {
	if ro.opts.OnWriteAttempt != nil {
		return ro.opts.OnWriteAttempt(op, path)
	}
	return &PathError{Op: op, Path: path, Err: ErrReadOnly}
}

// Kind implements FileSystem
func (ro *ReadOnlyFileSystem) Kind() Kind { return ro.fs.Kind() }

// Base implements FileSystem
func (ro *ReadOnlyFileSystem) Base() string { return ro.fs.Base() }

// Init implements FileSystem
func (ro *ReadOnlyFileSystem) Init(ctx context.Context, uri *URI) error {
	return ro.fs.Init(ctx, uri)
}

// Create implements FileSystem
func (ro *ReadOnlyFileSystem) Create(ctx context.Context, dir, name string) (File, error) {
	f, err := ro.fs.Create(ctx, dir, name)
	if err != nil {
		return nil, err
	}
	return &readOnlyFile{File: f, ro: ro}, nil
}

// List implements FileSystem
func (ro *ReadOnlyFileSystem) List(ctx context.Context, dir string, filter NameFilter) ([]string, error) {
	return ro.fs.List(ctx, dir, filter)
}

// ListDirs implements FileSystem
func (ro *ReadOnlyFileSystem) ListDirs(ctx context.Context, dir string, filter NameFilter) ([]string, error) {
	return ro.fs.ListDirs(ctx, dir, filter)
}

// Close implements FileSystem
func (ro *ReadOnlyFileSystem) Close() error {
	return ro.fs.Close()
}

type readOnlyFile struct {
	File
	ro *ReadOnlyFileSystem
}

func (f *readOnlyFile) path() string {
	return Join(f.Dir(), f.Name())
}

func (f *readOnlyFile) Write(ctx context.Context) (io.WriteCloser, error) {
	if err := f.ro.deny("write", f.path()); err != nil {
		return nil, err
	}
	return f.File.Write(ctx)
}

func (f *readOnlyFile) Delete(ctx context.Context) error {
	if !f.ro.opts.AllowDelete {
		if err := f.ro.deny("delete", f.path()); err != nil {
			return err
		}
	}
	return f.File.Delete(ctx)
}

func (f *readOnlyFile) Rename(ctx context.Context, newName string) error {
	if err := f.ro.deny("rename", f.path()); err != nil {
		return err
	}
	return f.File.Rename(ctx, newName)
}

// IsReadOnly reports whether an error is a rejected write on a read-only
// filesystem.
func IsReadOnly(err error) bool {
	return errors.Is(err, ErrReadOnly)
}

var _ FileSystem = (*ReadOnlyFileSystem)(nil)
