package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gobeaver/netfs"
)

// FileSystem provides a local disk implementation of netfs.FileSystem
type FileSystem struct {
	base string
}

// New creates an uninitialized local filesystem. Settings carry nothing the
// local backend needs; the parameter keeps the constructor shape shared by
// all backends.
func New(_ *netfs.Settings) *FileSystem {
	return &FileSystem{}
}

// Kind implements netfs.FileSystem
func (fs *FileSystem) Kind() netfs.Kind { return netfs.KindLocal }

// Base implements netfs.FileSystem
func (fs *FileSystem) Base() string { return fs.base }

// Init implements netfs.FileSystem. The base directory is the URI path, or
// the raw string for plain and drive-letter paths. It need not exist yet.
func (fs *FileSystem) Init(ctx context.Context, uri *netfs.URI) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if uri == nil {
		return &netfs.PathError{Op: "init", Err: netfs.ErrInvalidArgument}
	}

	base := netfs.Normalize(uri.Path)
	if base == "" && strings.HasPrefix(uri.Path, "/") {
		base = "/"
	}
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return &netfs.PathError{Op: "init", Path: uri.Raw, Err: err}
		}
		base = netfs.Normalize(filepath.ToSlash(wd))
	}
	fs.base = base
	netfs.Logger().Debug("local filesystem ready", "base", base)
	return nil
}

// resolve maps a base-relative directory to an OS path.
func (fs *FileSystem) resolve(dir string) string {
	return filepath.FromSlash(netfs.Join(fs.base, dir))
}

// Create implements netfs.FileSystem. The directory is created on disk if
// it is missing.
func (fs *FileSystem) Create(ctx context.Context, dir, name string) (netfs.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := netfs.ValidName(name); err != nil {
		return nil, &netfs.PathError{Op: "create", Path: netfs.Join(dir, name), Err: err}
	}

	if err := os.MkdirAll(fs.resolve(dir), 0o755); err != nil {
		return nil, &netfs.PathError{Op: "create", Path: dir, Err: err}
	}
	return &File{fs: fs, dir: netfs.Relative(dir), name: name}, nil
}

// List implements netfs.FileSystem
func (fs *FileSystem) List(ctx context.Context, dir string, filter netfs.NameFilter) ([]string, error) {
	return fs.list(ctx, "list", dir, filter, false)
}

// ListDirs implements netfs.FileSystem
func (fs *FileSystem) ListDirs(ctx context.Context, dir string, filter netfs.NameFilter) ([]string, error) {
	return fs.list(ctx, "listdirs", dir, filter, true)
}

func (fs *FileSystem) list(ctx context.Context, op, dir string, filter netfs.NameFilter, dirs bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := fs.resolve(dir)
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, mapError(op, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		isDir := e.IsDir()
		if e.Type()&os.ModeSymlink != 0 {
			fi, err := os.Stat(filepath.Join(full, e.Name()))
			if err != nil {
				// dangling link
				continue
			}
			isDir = fi.IsDir()
		}
		if isDir != dirs {
			continue
		}
		if netfs.Accepts(filter, dir, e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Close implements netfs.FileSystem
func (fs *FileSystem) Close() error {
	return nil
}

// ============================================================================
// File
// ============================================================================

// File is a local netfs.File
type File struct {
	fs   *FileSystem
	dir  string
	name string
}

// Dir implements netfs.File
func (f *File) Dir() string { return f.dir }

// Name implements netfs.File
func (f *File) Name() string { return f.name }

// Path returns the OS path of the file.
func (f *File) Path() string {
	return filepath.Join(f.fs.resolve(f.dir), f.name)
}

func (f *File) rel() string {
	return netfs.Join(f.dir, f.name)
}

func (f *File) stat(ctx context.Context) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := os.Stat(f.Path())
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, os.ErrNotExist
	}
	return fi, nil
}

// Exists implements netfs.File. Directories do not count as files.
func (f *File) Exists(ctx context.Context) (bool, error) {
	_, err := f.stat(ctx)
	if err == nil {
		return true, nil
	}
	if isMissing(err) {
		return false, nil
	}
	return false, mapError("exists", f.rel(), err)
}

// Length implements netfs.File
func (f *File) Length(ctx context.Context) (int64, error) {
	fi, err := f.stat(ctx)
	if err != nil {
		if isMissing(err) {
			return 0, nil
		}
		return 0, mapError("length", f.rel(), err)
	}
	return fi.Size(), nil
}

// LastModified implements netfs.File
func (f *File) LastModified(ctx context.Context) (time.Time, error) {
	fi, err := f.stat(ctx)
	if err != nil {
		if isMissing(err) {
			return time.Time{}, nil
		}
		return time.Time{}, mapError("lastmodified", f.rel(), err)
	}
	return fi.ModTime(), nil
}

// Read implements netfs.File
func (f *File) Read(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path())
	if err != nil {
		return nil, mapError("read", f.rel(), err)
	}
	return file, nil
}

// Write implements netfs.File
func (f *File) Write(ctx context.Context) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.fs.resolve(f.dir), 0o755); err != nil {
		return nil, mapError("write", f.rel(), err)
	}
	file, err := os.Create(f.Path())
	if err != nil {
		return nil, mapError("write", f.rel(), err)
	}
	return file, nil
}

// Delete implements netfs.File
func (f *File) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.Path()); err != nil && !isMissing(err) {
		return mapError("delete", f.rel(), err)
	}
	return nil
}

// Rename implements netfs.File
func (f *File) Rename(ctx context.Context, newName string) error {
	if err := netfs.ValidName(newName); err != nil {
		return &netfs.PathError{Op: "rename", Path: f.rel(), Err: err}
	}
	ok, err := f.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &netfs.PathError{Op: "rename", Path: f.rel(), Err: netfs.ErrNotExist}
	}

	target := filepath.Join(f.fs.resolve(f.dir), newName)
	if err := os.Rename(f.Path(), target); err != nil {
		return mapError("rename", f.rel(), err)
	}
	f.name = newName
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func isMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// mapError maps os errors to netfs errors
func mapError(op, path string, err error) error {
	switch {
	case errors.Is(err, syscall.ENOTDIR):
		return &netfs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", netfs.ErrNotExist, netfs.ErrNotDir)}
	case errors.Is(err, os.ErrNotExist):
		return &netfs.PathError{Op: op, Path: path, Err: netfs.ErrNotExist}
	}
	return &netfs.PathError{Op: op, Path: path, Err: err}
}

var _ netfs.FileSystem = (*FileSystem)(nil)
var _ netfs.File = (*File)(nil)
