package netfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"time"
)

// memFS is a minimal in-memory FileSystem for the package tests. Keys of
// files are base-relative paths.
type memFS struct {
	dirs  map[string]bool
	files map[string][]byte

	listErr  error
	writeErr error
	closeErr error

	readers int // open read streams
	writers int // open write streams
}

func newMemFS(dirs ...string) *memFS {
	fs := &memFS{dirs: map[string]bool{"": true}, files: map[string][]byte{}}
	for _, d := range dirs {
		fs.dirs[d] = true
	}
	return fs
}

func (fs *memFS) Kind() Kind                       { return "mem" }
func (fs *memFS) Base() string                     { return "" }
func (fs *memFS) Init(context.Context, *URI) error { return nil }
func (fs *memFS) Close() error                     { return nil }

func (fs *memFS) ListDirs(ctx context.Context, dir string, f NameFilter) ([]string, error) {
	return fs.list(dir, f, true)
}

func (fs *memFS) Create(_ context.Context, dir, name string) (File, error) {
	return &memFile{fs: fs, dir: Relative(dir), name: name}, nil
}

func (fs *memFS) List(_ context.Context, dir string, f NameFilter) ([]string, error) {
	if fs.listErr != nil {
		return nil, fs.listErr
	}
	return fs.list(dir, f, false)
}

func (fs *memFS) list(dir string, f NameFilter, dirs bool) ([]string, error) {
	dir = Relative(dir)
	if !fs.dirs[dir] {
		return nil, &PathError{Op: "list", Path: dir, Err: ErrNotExist}
	}
	names := []string{}
	parentOf := func(p string) string {
		if d := path.Dir(p); d != "." {
			return d
		}
		return ""
	}
	if dirs {
		for d := range fs.dirs {
			if d != "" && parentOf(d) == dir && Accepts(f, dir, path.Base(d)) {
				names = append(names, path.Base(d))
			}
		}
		return names, nil
	}
	for p := range fs.files {
		if parentOf(p) == dir && Accepts(f, dir, path.Base(p)) {
			names = append(names, path.Base(p))
		}
	}
	return names, nil
}

type memFile struct {
	fs   *memFS
	dir  string
	name string
}

func (f *memFile) key() string  { return Join(f.dir, f.name) }
func (f *memFile) Dir() string  { return f.dir }
func (f *memFile) Name() string { return f.name }

func (f *memFile) Exists(context.Context) (bool, error) {
	_, ok := f.fs.files[f.key()]
	return ok, nil
}

func (f *memFile) Length(context.Context) (int64, error) {
	return int64(len(f.fs.files[f.key()])), nil
}

func (f *memFile) LastModified(context.Context) (time.Time, error) {
	return time.Time{}, nil
}

type trackedReader struct {
	io.Reader
	fs *memFS
}

func (r *trackedReader) Close() error {
	r.fs.readers--
	return nil
}

func (f *memFile) Read(context.Context) (io.ReadCloser, error) {
	data, ok := f.fs.files[f.key()]
	if !ok {
		return nil, &PathError{Op: "read", Path: f.key(), Err: ErrNotExist}
	}
	f.fs.readers++
	return &trackedReader{Reader: bytes.NewReader(data), fs: f.fs}, nil
}

type trackedWriter struct {
	buf  bytes.Buffer
	file *memFile
}

func (w *trackedWriter) Write(p []byte) (int, error) {
	if w.file.fs.writeErr != nil {
		return 0, w.file.fs.writeErr
	}
	return w.buf.Write(p)
}

func (w *trackedWriter) Close() error {
	w.file.fs.writers--
	if w.file.fs.closeErr != nil {
		return w.file.fs.closeErr
	}
	w.file.fs.files[w.file.key()] = w.buf.Bytes()
	return nil
}

func (f *memFile) Write(context.Context) (io.WriteCloser, error) {
	f.fs.writers++
	return &trackedWriter{file: f}, nil
}

func (f *memFile) Delete(context.Context) error {
	delete(f.fs.files, f.key())
	return nil
}

func (f *memFile) Rename(_ context.Context, newName string) error {
	data, ok := f.fs.files[f.key()]
	if !ok {
		return &PathError{Op: "rename", Path: f.key(), Err: ErrNotExist}
	}
	delete(f.fs.files, f.key())
	f.name = newName
	f.fs.files[f.key()] = data
	return nil
}

// failingReader returns err after the first read.
type failingReader struct {
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, "partial"), nil
}

var errBoom = errors.New("boom")
