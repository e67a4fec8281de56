package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gobeaver/netfs"
	"github.com/gobeaver/netfs/internal/session"
)

// DefaultPort is used when the URI carries none.
const DefaultPort = 22

// FileSystem provides an SFTP implementation of netfs.FileSystem
type FileSystem struct {
	settings *netfs.Settings
	dial     Dialer
	uri      *netfs.URI
	base     string
	sess     *session.Session[Client]
}

// New creates an SFTP filesystem using pkg/sftp over x/crypto/ssh.
func New(settings *netfs.Settings) *FileSystem {
	return NewWithDialer(settings, DialSSH)
}

// NewWithDialer creates an SFTP filesystem using dial for every connection.
func NewWithDialer(settings *netfs.Settings, dial Dialer) *FileSystem {
	if settings == nil {
		settings = netfs.DefaultSettings()
	}
	return &FileSystem{settings: settings, dial: dial}
}

// Kind implements netfs.FileSystem
func (fs *FileSystem) Kind() netfs.Kind { return netfs.KindSFTP }

// Base implements netfs.FileSystem
func (fs *FileSystem) Base() string { return fs.base }

// Init implements netfs.FileSystem. It connects and verifies that the base
// directory exists.
func (fs *FileSystem) Init(ctx context.Context, uri *netfs.URI) error {
	if uri == nil || uri.Host == "" {
		return &netfs.PathError{Op: "init", Path: uri.Redacted(), Err: fmt.Errorf("%w: missing host", netfs.ErrInvalidURI)}
	}
	fs.uri = uri
	fs.base = netfs.Normalize(uri.Path)
	if fs.base == "" {
		fs.base = "/"
	}

	fs.sess = session.New(session.Config[Client]{
		Name:   uri.Redacted(),
		Dial:   fs.connect,
		Probe:  probe,
		Logger: netfs.Logger(),
	})
	if _, err := fs.sess.Acquire(ctx); err != nil {
		return netfs.WrapPathErr("init", uri.Redacted(), err)
	}
	return nil
}

func (fs *FileSystem) connect(ctx context.Context) (Client, error) {
	addr := fs.uri.Addr(DefaultPort)
	cfg, err := clientConfig(fs.uri, fs.settings)
	if err != nil {
		return nil, &netfs.PathError{Op: "connect", Path: addr, Err: err}
	}

	client, err := fs.dial(ctx, addr, cfg)
	if err != nil {
		return nil, &netfs.PathError{Op: "connect", Path: addr, Err: classifyDialError(err)}
	}

	fi, err := client.Stat(fs.base)
	if err != nil || !fi.IsDir() {
		_ = client.Close()
		return nil, &netfs.PathError{Op: "connect", Path: fs.base, Err: fmt.Errorf("%w: base directory", netfs.ErrNotExist)}
	}

	netfs.Logger().Info("sftp connected", "endpoint", fs.uri.Redacted(), "user", cfg.User, "base", fs.base)
	return client, nil
}

func probe(_ context.Context, c Client) error {
	_, err := c.Getwd()
	return err
}

func classifyDialError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain") {
		return fmt.Errorf("%w: %v", netfs.ErrAuth, err)
	}
	if errors.Is(err, netfs.ErrAuth) {
		return err
	}
	return fmt.Errorf("%w: %v", netfs.ErrConnection, err)
}

// client acquires a live session.
func (fs *FileSystem) client(ctx context.Context) (Client, error) {
	if fs.sess == nil {
		return nil, netfs.ErrInvalidArgument
	}
	return fs.sess.Acquire(ctx)
}

func (fs *FileSystem) fullPath(dir, name string) string {
	return netfs.Join(netfs.Join(fs.base, dir), name)
}

// mapError maps SFTP errors to netfs errors and drops a dead session.
func (fs *FileSystem) mapError(op, path string, err error) error {
	switch {
	case isClosed(err):
		fs.sess.Invalidate()
		return &netfs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", netfs.ErrConnection, err)}
	case errors.Is(err, os.ErrNotExist):
		return &netfs.PathError{Op: op, Path: path, Err: netfs.ErrNotExist}
	}
	return &netfs.PathError{Op: op, Path: path, Err: err}
}

// Create implements netfs.FileSystem
func (fs *FileSystem) Create(ctx context.Context, dir, name string) (netfs.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := netfs.ValidName(name); err != nil {
		return nil, &netfs.PathError{Op: "create", Path: netfs.Join(dir, name), Err: err}
	}
	return &File{fs: fs, dir: netfs.Relative(dir), name: name}, nil
}

// List implements netfs.FileSystem. Directories and symbolic links are
// not listed.
func (fs *FileSystem) List(ctx context.Context, dir string, filter netfs.NameFilter) ([]string, error) {
	entries, err := fs.readDir(ctx, "list", dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if netfs.Accepts(filter, dir, e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListDirs implements netfs.FileSystem
func (fs *FileSystem) ListDirs(ctx context.Context, dir string, filter netfs.NameFilter) ([]string, error) {
	entries, err := fs.readDir(ctx, "listdirs", dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "." || e.Name() == ".." {
			continue
		}
		if netfs.Accepts(filter, dir, e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (fs *FileSystem) readDir(ctx context.Context, op, dir string) ([]os.FileInfo, error) {
	client, err := fs.client(ctx)
	if err != nil {
		return nil, netfs.WrapPathErr(op, dir, err)
	}
	entries, err := client.ReadDir(netfs.Join(fs.base, dir))
	if err != nil {
		return nil, fs.mapError(op, dir, err)
	}
	return entries, nil
}

// Close implements netfs.FileSystem
func (fs *FileSystem) Close() error {
	if fs.sess == nil {
		return nil
	}
	if err := fs.sess.Close(); err != nil && !isClosed(err) {
		return &netfs.PathError{Op: "close", Path: fs.uri.Redacted(), Err: err}
	}
	return nil
}

// ============================================================================
// File
// ============================================================================

// File is an SFTP netfs.File
type File struct {
	fs   *FileSystem
	dir  string
	name string
}

// Dir implements netfs.File
func (f *File) Dir() string { return f.dir }

// Name implements netfs.File
func (f *File) Name() string { return f.name }

func (f *File) rel() string {
	return netfs.Join(f.dir, f.name)
}

// attrs finds the file in a listing of its directory. A missing file or
// directory yields nil.
func (f *File) attrs(ctx context.Context, op string) (os.FileInfo, error) {
	entries, err := f.fs.readDir(ctx, op, f.dir)
	if err != nil {
		if netfs.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.Name() == f.name && !e.IsDir() {
			return e, nil
		}
	}
	return nil, nil
}

// Exists implements netfs.File
func (f *File) Exists(ctx context.Context) (bool, error) {
	fi, err := f.attrs(ctx, "exists")
	return fi != nil, err
}

// Length implements netfs.File
func (f *File) Length(ctx context.Context) (int64, error) {
	fi, err := f.attrs(ctx, "length")
	if err != nil || fi == nil {
		return 0, err
	}
	return fi.Size(), nil
}

// LastModified implements netfs.File
func (f *File) LastModified(ctx context.Context) (time.Time, error) {
	fi, err := f.attrs(ctx, "lastmodified")
	if err != nil || fi == nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Read implements netfs.File
func (f *File) Read(ctx context.Context) (io.ReadCloser, error) {
	client, err := f.fs.client(ctx)
	if err != nil {
		return nil, netfs.WrapPathErr("read", f.rel(), err)
	}
	rc, err := client.Open(f.fs.fullPath(f.dir, f.name))
	if err != nil {
		return nil, f.fs.mapError("read", f.rel(), err)
	}
	return rc, nil
}

// Write implements netfs.File
func (f *File) Write(ctx context.Context) (io.WriteCloser, error) {
	client, err := f.fs.client(ctx)
	if err != nil {
		return nil, netfs.WrapPathErr("write", f.rel(), err)
	}
	wc, err := client.Create(f.fs.fullPath(f.dir, f.name))
	if err != nil {
		return nil, f.fs.mapError("write", f.rel(), err)
	}
	return wc, nil
}

// Delete implements netfs.File
func (f *File) Delete(ctx context.Context) error {
	ok, err := f.Exists(ctx)
	if err != nil || !ok {
		return err
	}
	client, err := f.fs.client(ctx)
	if err != nil {
		return netfs.WrapPathErr("delete", f.rel(), err)
	}
	if err := client.Remove(f.fs.fullPath(f.dir, f.name)); err != nil {
		return f.fs.mapError("delete", f.rel(), err)
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

	client, err := f.fs.client(ctx)
	if err != nil {
		return netfs.WrapPathErr("rename", f.rel(), err)
	}
	if err := client.Rename(f.fs.fullPath(f.dir, f.name), f.fs.fullPath(f.dir, newName)); err != nil {
		return f.fs.mapError("rename", f.rel(), err)
	}
	f.name = newName
	return nil
}

var _ netfs.FileSystem = (*FileSystem)(nil)
var _ netfs.File = (*File)(nil)
