package ftp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/gobeaver/netfs"
	"github.com/gobeaver/netfs/internal/session"
)

// DefaultPort is used when the URI carries none.
const DefaultPort = 21

// Anonymous login identity used when the URI has no user.
const (
	AnonymousUser     = "anonymous"
	AnonymousPassword = "anonymous@"
)

// FileSystem provides an FTP implementation of netfs.FileSystem
type FileSystem struct {
	settings *netfs.Settings
	dial     Dialer
	uri      *netfs.URI
	root     string
	sess     *session.Session[Conn]
}

// New creates an FTP filesystem using the jlaffaye/ftp client.
func New(settings *netfs.Settings) *FileSystem {
	return NewWithDialer(settings, DialServer)
}

// NewWithDialer creates an FTP filesystem using dial for every connection.
func NewWithDialer(settings *netfs.Settings, dial Dialer) *FileSystem {
	if settings == nil {
		settings = netfs.DefaultSettings()
	}
	return &FileSystem{settings: settings, dial: dial}
}

// Kind implements netfs.FileSystem
func (fs *FileSystem) Kind() netfs.Kind { return netfs.KindFTP }

// Base implements netfs.FileSystem. For URIs without a path it is the
// login directory reported by the server.
func (fs *FileSystem) Base() string { return fs.root }

// Init implements netfs.FileSystem. It connects, logs in and enters the
// base directory.
func (fs *FileSystem) Init(ctx context.Context, uri *netfs.URI) error {
	if uri == nil || uri.Host == "" {
		return &netfs.PathError{Op: "init", Path: uri.Redacted(), Err: fmt.Errorf("%w: missing host", netfs.ErrInvalidURI)}
	}
	fs.uri = uri
	fs.root = netfs.Normalize(uri.Path)
	if uri.Path == "/" {
		fs.root = "/"
	}
	if !fs.settings.FTPUsePassive {
		netfs.Logger().Warn("active FTP mode is not supported, using passive mode", "endpoint", uri.Redacted())
	}

	fs.sess = session.New(session.Config[Conn]{
		Name:   uri.Redacted(),
		Dial:   fs.connect,
		Probe:  fs.probe,
		Logger: netfs.Logger(),
	})
	if _, err := fs.sess.Acquire(ctx); err != nil {
		return netfs.WrapPathErr("init", uri.Redacted(), err)
	}
	return nil
}

// connect dials, logs in, enters the base directory and switches to binary
// transfers.
func (fs *FileSystem) connect(ctx context.Context) (Conn, error) {
	addr := fs.uri.Addr(DefaultPort)
	conn, err := fs.dial(ctx, addr)
	if err != nil {
		return nil, &netfs.PathError{Op: "connect", Path: addr, Err: fmt.Errorf("%w: %v", netfs.ErrConnection, err)}
	}

	user, password := AnonymousUser, AnonymousPassword
	if fs.uri.User != "" {
		user, password = fs.uri.User, fs.uri.Password
	}
	if err := conn.Login(user, password); err != nil {
		_ = conn.Close()
		return nil, &netfs.PathError{Op: "login", Path: addr, Err: fmt.Errorf("%w: %v", netfs.ErrAuth, err)}
	}

	if fs.root == "" {
		home, err := conn.CurrentDir()
		if err != nil {
			_ = conn.Close()
			return nil, &netfs.PathError{Op: "connect", Path: addr, Err: err}
		}
		fs.root = netfs.Normalize(home)
		if fs.root == "" {
			fs.root = "/"
		}
	}
	if err := conn.ChangeDir(fs.root); err != nil {
		_ = conn.Close()
		return nil, &netfs.PathError{Op: "connect", Path: fs.root, Err: fmt.Errorf("%w: base directory: %v", netfs.ErrNotExist, err)}
	}

	if err := conn.Binary(); err != nil {
		_ = conn.Close()
		return nil, &netfs.PathError{Op: "connect", Path: addr, Err: err}
	}

	netfs.Logger().Info("ftp connected", "endpoint", fs.uri.Redacted(), "base", fs.root)
	return conn, nil
}

func (fs *FileSystem) probe(_ context.Context, conn Conn) error {
	return conn.ChangeDir(fs.root)
}

// enter acquires a live connection and changes into dir below the base.
func (fs *FileSystem) enter(ctx context.Context, dir string) (Conn, error) {
	if fs.sess == nil {
		return nil, netfs.ErrInvalidArgument
	}
	conn, err := fs.sess.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.ChangeDir(netfs.Join(fs.root, dir)); err != nil {
		return nil, fs.fail(err)
	}
	return conn, nil
}

// fail drops the session when err indicates a lost connection and maps
// "file unavailable" replies to ErrNotExist.
func (fs *FileSystem) fail(err error) error {
	if isClosed(err) {
		fs.sess.Invalidate()
		return fmt.Errorf("%w: %v", netfs.ErrConnection, err)
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %v", netfs.ErrNotExist, err)
	}
	return err
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

// List implements netfs.FileSystem
func (fs *FileSystem) List(ctx context.Context, dir string, filter netfs.NameFilter) ([]string, error) {
	return fs.list(ctx, "list", dir, filter, false)
}

// ListDirs implements netfs.FileSystem
func (fs *FileSystem) ListDirs(ctx context.Context, dir string, filter netfs.NameFilter) ([]string, error) {
	return fs.list(ctx, "listdirs", dir, filter, true)
}

func (fs *FileSystem) list(ctx context.Context, op, dir string, filter netfs.NameFilter, dirs bool) ([]string, error) {
	entries, err := fs.entries(ctx, dir)
	if err != nil {
		return nil, &netfs.PathError{Op: op, Path: dir, Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if (e.Type == ftp.EntryTypeFolder) != dirs {
			continue
		}
		if netfs.Accepts(filter, dir, e.Name) {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

func (fs *FileSystem) entries(ctx context.Context, dir string) ([]*ftp.Entry, error) {
	conn, err := fs.enter(ctx, dir)
	if err != nil {
		return nil, err
	}
	entries, err := conn.List("")
	if err != nil {
		return nil, fs.fail(err)
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

// File is an FTP netfs.File
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

// entry re-lists the parent directory and returns the matching file entry,
// or nil if there is none.
func (f *File) entry(ctx context.Context) (*ftp.Entry, error) {
	entries, err := f.fs.entries(ctx, f.dir)
	if err != nil {
		if netfs.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.Name == f.name && e.Type != ftp.EntryTypeFolder {
			return e, nil
		}
	}
	return nil, nil
}

// Exists implements netfs.File
func (f *File) Exists(ctx context.Context) (bool, error) {
	e, err := f.entry(ctx)
	if err != nil {
		return false, &netfs.PathError{Op: "exists", Path: f.rel(), Err: err}
	}
	return e != nil, nil
}

// Length implements netfs.File
func (f *File) Length(ctx context.Context) (int64, error) {
	e, err := f.entry(ctx)
	if err != nil {
		return 0, &netfs.PathError{Op: "length", Path: f.rel(), Err: err}
	}
	if e == nil {
		return 0, nil
	}
	return int64(e.Size), nil
}

// LastModified implements netfs.File
func (f *File) LastModified(ctx context.Context) (time.Time, error) {
	e, err := f.entry(ctx)
	if err != nil {
		return time.Time{}, &netfs.PathError{Op: "lastmodified", Path: f.rel(), Err: err}
	}
	if e == nil {
		return time.Time{}, nil
	}
	return e.Time, nil
}

// Read implements netfs.File. The control connection stays busy until the
// returned stream is closed.
func (f *File) Read(ctx context.Context) (io.ReadCloser, error) {
	conn, err := f.fs.enter(ctx, f.dir)
	if err != nil {
		return nil, &netfs.PathError{Op: "read", Path: f.rel(), Err: err}
	}
	rc, err := conn.Retr(f.name)
	if err != nil {
		return nil, &netfs.PathError{Op: "read", Path: f.rel(), Err: f.fs.fail(err)}
	}
	return rc, nil
}

// Write implements netfs.File. The upload runs while the caller writes and
// completes on Close.
func (f *File) Write(ctx context.Context) (io.WriteCloser, error) {
	conn, err := f.fs.enter(ctx, f.dir)
	if err != nil {
		return nil, &netfs.PathError{Op: "write", Path: f.rel(), Err: err}
	}

	pr, pw := io.Pipe()
	w := &uploadWriter{pw: pw, done: make(chan error, 1), file: f}
	go func() {
		err := conn.Stor(f.name, pr)
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

type uploadWriter struct {
	pw     *io.PipeWriter
	done   chan error
	file   *File
	closed bool
	err    error
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *uploadWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	_ = w.pw.Close()
	if err := <-w.done; err != nil {
		w.err = &netfs.PathError{Op: "write", Path: w.file.rel(), Err: w.file.fs.fail(err)}
	}
	return w.err
}

// Delete implements netfs.File
func (f *File) Delete(ctx context.Context) error {
	ok, err := f.Exists(ctx)
	if err != nil || !ok {
		return err
	}
	conn, err := f.fs.enter(ctx, f.dir)
	if err != nil {
		return &netfs.PathError{Op: "delete", Path: f.rel(), Err: err}
	}
	if err := conn.Delete(f.name); err != nil {
		return &netfs.PathError{Op: "delete", Path: f.rel(), Err: f.fs.fail(err)}
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

	conn, err := f.fs.enter(ctx, f.dir)
	if err != nil {
		return &netfs.PathError{Op: "rename", Path: f.rel(), Err: err}
	}
	if err := conn.Rename(f.name, newName); err != nil {
		return &netfs.PathError{Op: "rename", Path: f.rel(), Err: f.fs.fail(err)}
	}
	f.name = newName
	return nil
}

var _ netfs.FileSystem = (*FileSystem)(nil)
var _ netfs.File = (*File)(nil)
